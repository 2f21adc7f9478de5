package screener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rmpcap/screener-be/internal/parcels"
)

// Capture is the interactive boundary-capture collaborator: a human pans a
// map, confirms a centroid/zoom and optionally traces a polygon. Returning
// (nil, nil) means the user aborted.
type Capture interface {
	Capture(ctx context.Context, propertyID int64, hint *parcels.Record) (*CaptureResult, error)
}

// CaptureResult is the human-confirmed geometry.
type CaptureResult struct {
	Lat     float64
	Lon     float64
	Zoom    int
	Polygon [][2]float64
}

// ManualFixer is the operator-initiated fallback when automated resolution
// misses. It is never entered from inside a screener run; the pipeline
// degrades to centroid-only output instead.
type ManualFixer struct {
	parcels ParcelStore
	capture Capture
	logger  *slog.Logger
}

// NewManualFixer wires the manual override workflow.
func NewManualFixer(store ParcelStore, capture Capture, logger *slog.Logger) *ManualFixer {
	return &ManualFixer{
		parcels: store,
		capture: capture,
		logger:  logger,
	}
}

// Apply stores an already-captured geometry as the property's manual
// record, bypassing the interactive capture round. Used by the HTTP
// surface, where the client did the capturing.
func (m *ManualFixer) Apply(ctx context.Context, propertyID int64, result *CaptureResult) (*parcels.Record, error) {
	return m.store(ctx, propertyID, result)
}

// RequestFix runs one manual correction round for a property. The stored
// record, if any, is passed to the capture UI as the auto-detected hint.
// Returns the written record, or (nil, nil) when the user aborted.
func (m *ManualFixer) RequestFix(ctx context.Context, propertyID int64) (*parcels.Record, error) {
	if m.capture == nil {
		return nil, errors.New("no boundary capture configured")
	}

	hint, err := m.parcels.Get(ctx, propertyID)
	if err != nil && !errors.Is(err, parcels.ErrNoRecord) {
		return nil, fmt.Errorf("failed to load parcel hint: %w", err)
	}

	result, err := m.capture.Capture(ctx, propertyID, hint)
	if err != nil {
		return nil, fmt.Errorf("boundary capture failed: %w", err)
	}
	if result == nil {
		m.logger.Info("Manual fix aborted by user",
			slog.Int64("property_id", propertyID),
		)
		return nil, nil
	}

	return m.store(ctx, propertyID, result)
}

func (m *ManualFixer) store(ctx context.Context, propertyID int64, result *CaptureResult) (*parcels.Record, error) {
	zoom := result.Zoom
	if zoom <= 0 {
		zoom = parcels.DefaultZoom
	}

	record := &parcels.Record{
		PropertyID: propertyID,
		Lat:        result.Lat,
		Lon:        result.Lon,
		Zoom:       zoom,
		Polygon:    result.Polygon,
		Provenance: parcels.ProvenanceManual,
	}

	if err := m.parcels.Put(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store manual parcel record: %w", err)
	}

	m.logger.Info("Manual parcel fix stored",
		slog.Int64("property_id", propertyID),
		slog.Bool("has_boundary", record.HasBoundary()),
	)

	return record, nil
}
