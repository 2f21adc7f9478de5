package gis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmpcap/screener-be/internal/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestResolver(t *testing.T, entries []registry.Descriptor) *Resolver {
	t.Helper()
	reg, err := registry.New(entries)
	require.NoError(t, err)
	return NewResolver(reg, 2*time.Second, testLogger())
}

// squareResponse builds an ArcGIS JSON body with one square parcel around
// the given center, in lon/lat degrees.
func squareResponse(centerLat, centerLon, half float64) string {
	return fmt.Sprintf(`{
		"spatialReference": {"wkid": 4326},
		"features": [{
			"attributes": {"PARCEL_ID": "12-345"},
			"geometry": {"rings": [[
				[%f, %f], [%f, %f], [%f, %f], [%f, %f], [%f, %f]
			]]}
		}]
	}`,
		centerLon-half, centerLat-half,
		centerLon+half, centerLat-half,
		centerLon+half, centerLat+half,
		centerLon-half, centerLat+half,
		centerLon-half, centerLat-half,
	)
}

func TestResolve_PointDialect(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		fmt.Fprint(w, squareResponse(39.264217, -94.577417, 0.001))
	}))
	defer server.Close()

	resolver := newTestResolver(t, []registry.Descriptor{
		{Name: "Clay County, MO", State: "MO", County: "Clay", URL: server.URL, Dialect: registry.DialectPoint, WGS84Output: true},
	})

	parcel, err := resolver.Resolve(context.Background(), 39.264217, -94.577417, registry.Jurisdiction{State: "MO", County: "Clay"}, "")
	require.NoError(t, err)

	assert.Equal(t, "esriGeometryPoint", gotQuery["geometryType"])
	assert.Equal(t, "4326", gotQuery["inSR"])
	assert.Equal(t, "4326", gotQuery["outSR"])
	assert.Equal(t, "esriSpatialRelIntersects", gotQuery["spatialRel"])
	assert.Equal(t, "json", gotQuery["f"])

	assert.InDelta(t, 39.264217, parcel.Centroid.Lat, 0.01)
	assert.InDelta(t, -94.577417, parcel.Centroid.Lon, 0.01)
	assert.Len(t, parcel.Polygon, 5)
}

func TestResolve_EnvelopeDialect(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"geometry":     r.URL.Query().Get("geometry"),
			"geometryType": r.URL.Query().Get("geometryType"),
		}
		fmt.Fprint(w, squareResponse(39.0, -105.0, 0.001))
	}))
	defer server.Close()

	resolver := newTestResolver(t, []registry.Descriptor{
		{Name: "Colorado", State: "CO", URL: server.URL, Dialect: registry.DialectEnvelope, WGS84Output: true},
	})

	_, err := resolver.Resolve(context.Background(), 39.0, -105.0, registry.Jurisdiction{State: "CO", County: "Boulder"}, "")
	require.NoError(t, err)

	assert.Equal(t, "esriGeometryEnvelope", gotQuery["geometryType"])
	// Default buffer is 0.0005 degrees around the point
	assert.Equal(t,
		fmt.Sprintf("%f,%f,%f,%f", -105.0005, 38.9995, -104.9995, 39.0005),
		gotQuery["geometry"],
	)
}

func TestResolve_NotRegistered(t *testing.T) {
	resolver := newTestResolver(t, nil)

	_, err := resolver.Resolve(context.Background(), 39.0, -95.0, registry.Jurisdiction{State: "KS", County: "Johnson"}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, registry.ErrNotRegistered)
}

func TestResolve_SoftFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "<html>not json</html>")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			resolver := newTestResolver(t, []registry.Descriptor{
				{Name: "CO", State: "CO", URL: server.URL, Dialect: registry.DialectPoint},
			})

			_, err := resolver.Resolve(context.Background(), 39.0, -105.0, registry.Jurisdiction{State: "CO"}, "")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, err, ErrUpstream)
		})
	}
}

func TestResolve_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, squareResponse(39.0, -105.0, 0.001))
	}))
	defer server.Close()

	reg, err := registry.New([]registry.Descriptor{
		{Name: "CO", State: "CO", URL: server.URL, Dialect: registry.DialectPoint},
	})
	require.NoError(t, err)
	resolver := NewResolver(reg, 50*time.Millisecond, testLogger())

	_, err = resolver.Resolve(context.Background(), 39.0, -105.0, registry.Jurisdiction{State: "CO"}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestResolve_EmptyFeatures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"features": []}`)
	}))
	defer server.Close()

	resolver := newTestResolver(t, []registry.Descriptor{
		{Name: "CO", State: "CO", URL: server.URL, Dialect: registry.DialectPoint},
	})

	_, err := resolver.Resolve(context.Background(), 39.0, -105.0, registry.Jurisdiction{State: "CO"}, "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrUpstream)
}

func TestResolve_MercatorResponseConverted(t *testing.T) {
	// Denver-ish parcel in Web Mercator meters; service ignored outSR
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"spatialReference": {"wkid": 102100, "latestWkid": 3857},
			"features": [{
				"attributes": {},
				"geometry": {"rings": [[
					[-11688546, 4770489], [-11688446, 4770489],
					[-11688446, 4770589], [-11688546, 4770589],
					[-11688546, 4770489]
				]]}
			}]
		}`)
	}))
	defer server.Close()

	resolver := newTestResolver(t, []registry.Descriptor{
		{Name: "CO", State: "CO", URL: server.URL, Dialect: registry.DialectPoint, WGS84Output: true},
	})

	parcel, err := resolver.Resolve(context.Background(), 39.4, -105.0, registry.Jurisdiction{State: "CO"}, "")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, parcel.Centroid.Lat, -90.0)
	assert.LessOrEqual(t, parcel.Centroid.Lat, 90.0)
	assert.GreaterOrEqual(t, parcel.Centroid.Lon, -180.0)
	assert.LessOrEqual(t, parcel.Centroid.Lon, 180.0)
	for _, p := range parcel.Polygon {
		assert.True(t, inGeographicRange(p.Lat, p.Lon), "vertex out of geographic range: %+v", p)
	}
	assert.InDelta(t, -105.0, parcel.Centroid.Lon, 0.5)
	assert.InDelta(t, 39.4, parcel.Centroid.Lat, 0.5)
}

func TestSelectFeature_Containment(t *testing.T) {
	// Two parcels; the query point sits inside the second
	body := `{
		"spatialReference": {"wkid": 4326},
		"features": [
			{"attributes": {}, "geometry": {"rings": [[
				[-94.60, 39.20], [-94.59, 39.20], [-94.59, 39.21], [-94.60, 39.21], [-94.60, 39.20]
			]]}},
			{"attributes": {}, "geometry": {"rings": [[
				[-94.58, 39.26], [-94.57, 39.26], [-94.57, 39.27], [-94.58, 39.27], [-94.58, 39.26]
			]]}}
		]
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	resolver := newTestResolver(t, []registry.Descriptor{
		{Name: "Clay", State: "MO", County: "Clay", URL: server.URL, Dialect: registry.DialectEnvelope, EnvelopeBuffer: 0.002},
	})

	parcel, err := resolver.Resolve(context.Background(), 39.265, -94.575, registry.Jurisdiction{State: "MO", County: "Clay"}, "")
	require.NoError(t, err)
	assert.InDelta(t, 39.265, parcel.Centroid.Lat, 0.01)
	assert.InDelta(t, -94.575, parcel.Centroid.Lon, 0.01)
}

func TestSelectFeature_AddressMatch(t *testing.T) {
	features := []arcgisFeature{
		{
			Attributes: map[string]interface{}{"SITUS_ADDR": "100 OAK STREET"},
			Geometry:   arcgisGeometry{Rings: [][][2]float64{{{-94.60, 39.20}, {-94.59, 39.20}, {-94.59, 39.21}}}},
		},
		{
			Attributes: map[string]interface{}{"SITUS_ADDR": "4510 N BRIGHTON AVENUE"},
			Geometry:   arcgisGeometry{Rings: [][][2]float64{{{-94.58, 39.26}, {-94.57, 39.26}, {-94.57, 39.27}}}},
		},
	}

	picked := selectFeature(features, 39.0, -94.0, "4510 North Brighton Ave.")
	require.NotNil(t, picked)
	assert.Equal(t, "4510 N BRIGHTON AVENUE", picked.Attributes["SITUS_ADDR"])
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"4510 N. Brighton Avenue", "4510 N BRIGHTON AVE"},
		{"123  Main   Street", "123 MAIN ST"},
		{"55 Streetman Road", "55 STREETMAN RD"}, // word boundary: STREETMAN untouched
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeAddress(tt.in))
	}
}
