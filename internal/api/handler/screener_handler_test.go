package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmpcap/screener-be/internal/parcels"
	"github.com/rmpcap/screener-be/internal/screener"
)

type stubParcels struct {
	record *parcels.Record
}

func (s *stubParcels) Get(ctx context.Context, propertyID int64) (*parcels.Record, error) {
	if s.record == nil {
		return nil, parcels.ErrNoRecord
	}
	return s.record, nil
}

func (s *stubParcels) Put(ctx context.Context, record *parcels.Record) error {
	s.record = record
	return nil
}

func newTestHandler(store *stubParcels) *ScreenerHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewScreenerHandler(&Dependencies{
		Logger:  logger,
		Engine:  screener.NewEngine(screener.Dependencies{Logger: logger}),
		Parcels: store,
	})
}

func performRequest(t *testing.T, register func(*gin.Engine), method, path string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	register(r)

	req, err := http.NewRequest(method, path, nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetRun_Validation(t *testing.T) {
	h := newTestHandler(&stubParcels{})
	register := func(r *gin.Engine) { r.GET("/runs/:run_id", h.GetRun) }

	t.Run("rejects malformed run id", func(t *testing.T) {
		w := performRequest(t, register, http.MethodGet, "/runs/not-a-uuid")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown run id returns 404", func(t *testing.T) {
		w := performRequest(t, register, http.MethodGet, "/runs/"+uuid.New().String())
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListRuns_EmptyHistory(t *testing.T) {
	h := newTestHandler(&stubParcels{})
	register := func(r *gin.Engine) { r.GET("/properties/:property_id/screener/runs", h.ListRuns) }

	w := performRequest(t, register, http.MethodGet, "/properties/7/screener/runs")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"runs":[]}`, w.Body.String())
}

func TestListRuns_RejectsBadLimit(t *testing.T) {
	h := newTestHandler(&stubParcels{})
	register := func(r *gin.Engine) { r.GET("/properties/:property_id/screener/runs", h.ListRuns) }

	w := performRequest(t, register, http.MethodGet, "/properties/7/screener/runs?limit=zero")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetParcel(t *testing.T) {
	register := func(h *ScreenerHandler) func(*gin.Engine) {
		return func(r *gin.Engine) { r.GET("/properties/:property_id/parcel", h.GetParcel) }
	}

	t.Run("missing record returns 404", func(t *testing.T) {
		h := newTestHandler(&stubParcels{})
		w := performRequest(t, register(h), http.MethodGet, "/properties/7/parcel")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid property id returns 400", func(t *testing.T) {
		h := newTestHandler(&stubParcels{})
		w := performRequest(t, register(h), http.MethodGet, "/properties/abc/parcel")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("stored record is returned", func(t *testing.T) {
		h := newTestHandler(&stubParcels{record: &parcels.Record{
			PropertyID: 7,
			Lat:        39.1,
			Lon:        -94.6,
			Zoom:       18,
			Provenance: parcels.ProvenanceManual,
		}})
		w := performRequest(t, register(h), http.MethodGet, "/properties/7/parcel")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"provenance":"manual"`)
	})
}
