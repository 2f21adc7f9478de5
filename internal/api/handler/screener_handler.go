package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rmpcap/screener-be/internal/api/dto"
	"github.com/rmpcap/screener-be/internal/api/storage"
	"github.com/rmpcap/screener-be/internal/parcels"
	"github.com/rmpcap/screener-be/internal/screener"
)

func propertyID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("property_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "property_id must be a positive integer",
		})
		return 0, false
	}
	return id, true
}

func runToDTO(run screener.Run) dto.RunResponse {
	resp := dto.RunResponse{
		RunID:           run.ID,
		PropertyID:      run.PropertyID,
		Status:          run.Status,
		CurrentStep:     run.CurrentStep,
		ProgressPercent: run.ProgressPercent,
		ReportPath:      run.ReportPath,
		ErrorMessage:    run.ErrorMessage,
		StartedAt:       run.StartedAt.Format(time.RFC3339),
	}
	if !run.CompletedAt.IsZero() {
		resp.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

// StartRun handles POST /api/v1/properties/:property_id/screener/run
// Admits one screener run; a second request while one is in flight is
// rejected with 409 rather than queued.
func (h *ScreenerHandler) StartRun(c *gin.Context) {
	id, ok := propertyID(c)
	if !ok {
		return
	}

	h.logger.Info("StartRun called",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Int64("property_id", id),
	)

	// Reject unknown properties before taking the engine gate
	if _, err := h.storage.GetProperty(c.Request.Context(), id); err != nil {
		if errors.Is(err, screener.ErrPropertyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Property not found",
			})
			return
		}
		h.logger.Error("Failed to load property", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load property",
		})
		return
	}

	runID, err := h.engine.Start(id)
	if err != nil {
		if errors.Is(err, screener.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "A screener run is already in progress",
			})
			return
		}
		h.logger.Error("Failed to start run", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to start run",
		})
		return
	}

	run, err := h.engine.Status(runID)
	if err != nil {
		h.logger.Error("Failed to load run snapshot", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load run",
		})
		return
	}

	c.JSON(http.StatusAccepted, runToDTO(run))
}

// GetRun handles GET /api/v1/screener/runs/:run_id
// Polling endpoint for run progress and terminal state
func (h *ScreenerHandler) GetRun(c *gin.Context) {
	runID := c.Param("run_id")

	if _, err := uuid.Parse(runID); err != nil {
		h.logger.Error("Invalid run_id format", slog.String("run_id", runID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "run_id must be a valid UUID",
		})
		return
	}

	run, err := h.engine.Status(runID)
	if err != nil {
		if errors.Is(err, screener.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Run not found",
			})
			return
		}
		h.logger.Error("Failed to get run", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get run",
		})
		return
	}

	c.JSON(http.StatusOK, runToDTO(run))
}

// ListRuns handles GET /api/v1/properties/:property_id/screener/runs
// Returns the property's run history, newest first
func (h *ScreenerHandler) ListRuns(c *gin.Context) {
	id, ok := propertyID(c)
	if !ok {
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = min(parsed, 100)
	}

	runs := h.engine.Runs(id, limit)
	resp := dto.ListRunsResponse{Runs: make([]dto.RunResponse, len(runs))}
	for i, run := range runs {
		resp.Runs[i] = runToDTO(run)
	}

	c.JSON(http.StatusOK, resp)
}

// ListProperties handles GET /api/v1/properties
// Lists properties with optional filtering and cursor pagination
func (h *ScreenerHandler) ListProperties(c *gin.Context) {
	var req dto.ListPropertiesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodePropertyCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.PropertyFilter{
		State:          req.State,
		NeedsManualFix: req.NeedsManualFix,
		PageSize:       req.PageSize,
		Cursor:         cursor,
	}

	properties, err := h.storage.ListProperties(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list properties", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list properties",
		})
		return
	}

	hasMore := len(properties) > req.PageSize
	if hasMore {
		properties = properties[:req.PageSize]
	}

	resp := dto.ListPropertiesResponse{
		Properties: make([]dto.PropertyDTO, len(properties)),
	}
	for i, p := range properties {
		item := dto.PropertyDTO{
			ID:             p.ID,
			Name:           p.Name,
			Address:        p.Address,
			City:           p.City,
			State:          p.State,
			Zip:            p.Zip,
			NeedsManualFix: p.NeedsManualFix,
			CreatedAt:      p.CreatedAt.Format(time.RFC3339),
			UpdatedAt:      p.UpdatedAt.Format(time.RFC3339),
		}
		if p.Lat.Valid && p.Lon.Valid {
			lat, lon := p.Lat.Float64, p.Lon.Float64
			item.Lat = &lat
			item.Lon = &lon
		}
		resp.Properties[i] = item
	}

	if hasMore {
		last := properties[len(properties)-1]
		nextCursor, err := EncodePropertyCursor(&storage.PropertyCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode next cursor",
			})
			return
		}
		resp.NextCursor = nextCursor
	}

	c.JSON(http.StatusOK, resp)
}

// GetParcel handles GET /api/v1/properties/:property_id/parcel
// Returns the stored parcel geometry, automated or manual
func (h *ScreenerHandler) GetParcel(c *gin.Context) {
	id, ok := propertyID(c)
	if !ok {
		return
	}

	record, err := h.parcels.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, parcels.ErrNoRecord) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "No parcel record for property",
			})
			return
		}
		h.logger.Error("Failed to get parcel record", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get parcel record",
		})
		return
	}

	c.JSON(http.StatusOK, dto.ParcelResponse{
		PropertyID: record.PropertyID,
		Lat:        record.Lat,
		Lon:        record.Lon,
		Zoom:       record.Zoom,
		Polygon:    record.Polygon,
		Provenance: record.Provenance,
	})
}

// PutParcel handles POST /api/v1/properties/:property_id/parcel
// Stores an operator-captured boundary as the manual record and clears
// the property's manual-fix flag
func (h *ScreenerHandler) PutParcel(c *gin.Context) {
	id, ok := propertyID(c)
	if !ok {
		return
	}

	var req dto.ManualParcelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	record, err := h.fixer.Apply(c.Request.Context(), id, &screener.CaptureResult{
		Lat:     req.Lat,
		Lon:     req.Lon,
		Zoom:    req.Zoom,
		Polygon: req.Polygon,
	})
	if err != nil {
		h.logger.Error("Failed to store manual parcel", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to store manual parcel",
		})
		return
	}

	if err := h.storage.SetManualFixRequested(c.Request.Context(), id, false); err != nil {
		// The record is stored; a stale flag only means a redundant prompt
		h.logger.Warn("Failed to clear manual fix flag",
			slog.Int64("property_id", id),
			slog.String("error", err.Error()),
		)
	}

	c.JSON(http.StatusOK, dto.ParcelResponse{
		PropertyID: record.PropertyID,
		Lat:        record.Lat,
		Lon:        record.Lon,
		Zoom:       record.Zoom,
		Polygon:    record.Polygon,
		Provenance: record.Provenance,
	})
}

// RequestManualFix handles POST /api/v1/properties/:property_id/manual-fix
// Flags the property so the next resolution miss fails the run instead of
// degrading to a centroid-only report
func (h *ScreenerHandler) RequestManualFix(c *gin.Context) {
	id, ok := propertyID(c)
	if !ok {
		return
	}

	if err := h.storage.SetManualFixRequested(c.Request.Context(), id, true); err != nil {
		if errors.Is(err, screener.ErrPropertyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Property not found",
			})
			return
		}
		h.logger.Error("Failed to set manual fix flag", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to set manual fix flag",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"property_id": id,
		"status":      "manual fix requested",
	})
}
