package screener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rmpcap/screener-be/internal/gis"
	"github.com/rmpcap/screener-be/internal/parcels"
	"github.com/rmpcap/screener-be/internal/registry"
	"github.com/rmpcap/screener-be/internal/report"
)

// execute runs the screener pipeline for one admitted run. Runs on its own
// goroutine; the engine offers no mid-run cancellation, so the context here
// only bounds individual upstream calls through their clients.
func (e *Engine) execute(runID string, propertyID int64) {
	defer e.recoverPanic(runID)

	ctx := context.Background()

	e.setProgress(runID, "Loading property", 5)
	property, err := e.deps.Properties.GetProperty(ctx, propertyID)
	if err != nil {
		e.fail(runID, fmt.Sprintf("failed to load property %d: %v", propertyID, err))
		return
	}

	lat, lon, err := e.geocodeIfNeeded(ctx, runID, property)
	if err != nil {
		e.fail(runID, err.Error())
		return
	}

	record, err := e.resolveGeometry(ctx, runID, property, lat, lon)
	if err != nil {
		e.fail(runID, err.Error())
		return
	}

	e.setProgress(runID, "Rendering report", 80)
	reportPath, err := e.deps.Reporter.Render(ctx, report.Property{
		ID:      property.ID,
		Name:    property.Name,
		Address: property.Address,
		City:    property.City,
		State:   property.State,
	}, record)
	if err != nil {
		e.fail(runID, fmt.Sprintf("report rendering failed: %v", err))
		return
	}

	e.complete(runID, reportPath)
}

// geocodeIfNeeded returns the property's coordinates, geocoding the address
// and persisting the result when none are stored yet.
func (e *Engine) geocodeIfNeeded(ctx context.Context, runID string, property *Property) (float64, float64, error) {
	if property.Lat != nil && property.Lon != nil {
		return *property.Lat, *property.Lon, nil
	}

	e.setProgress(runID, "Geocoding address", 15)
	lat, lon, err := e.deps.Geocoder.Geocode(ctx, property.FullAddress())
	if err != nil {
		return 0, 0, fmt.Errorf("could not geocode address %q: %v", property.FullAddress(), err)
	}

	if err := e.deps.Properties.UpdateGeocode(ctx, property.ID, lat, lon); err != nil {
		// The run can still finish on in-memory coordinates
		e.deps.Logger.Warn("Failed to persist geocode",
			slog.Int64("property_id", property.ID),
			slog.String("error", err.Error()),
		)
	}

	return lat, lon, nil
}

// resolveGeometry produces the parcel record for the run: cached record if
// present, otherwise a fresh resolution. A resolver miss degrades to a
// centroid-only record unless the property is flagged for manual fixing.
func (e *Engine) resolveGeometry(ctx context.Context, runID string, property *Property, lat, lon float64) (*parcels.Record, error) {
	e.setProgress(runID, "Checking parcel cache", 30)
	cached, err := e.deps.Parcels.Get(ctx, property.ID)
	if err == nil {
		e.deps.Logger.Info("Using cached parcel geometry",
			slog.Int64("property_id", property.ID),
			slog.String("provenance", cached.Provenance),
		)
		return cached, nil
	}
	if !errors.Is(err, parcels.ErrNoRecord) {
		return nil, fmt.Errorf("parcel store lookup failed: %v", err)
	}

	e.setProgress(runID, "Locating jurisdiction", 40)
	jurisdiction, haveJurisdiction := e.locate(ctx, lat, lon)

	e.setProgress(runID, "Resolving parcel boundary", 55)
	parcel, err := e.deps.Resolver.Resolve(ctx, lat, lon, jurisdiction, property.Address)
	if err != nil {
		if !errors.Is(err, gis.ErrNotFound) {
			return nil, fmt.Errorf("parcel resolution failed: %v", err)
		}
		return e.handleResolverMiss(runID, property, jurisdiction, haveJurisdiction, lat, lon)
	}

	record := &parcels.Record{
		PropertyID: property.ID,
		Lat:        parcel.Centroid.Lat,
		Lon:        parcel.Centroid.Lon,
		Zoom:       parcels.DefaultZoom,
		Polygon:    polygonPairs(parcel.Polygon),
		Provenance: parcels.ProvenanceAuto,
	}

	if err := e.deps.Parcels.Put(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store parcel record: %v", err)
	}

	return record, nil
}

// handleResolverMiss records the jurisdiction for registry growth and
// degrades to a centroid-only record. The record is deliberately not
// persisted so the next run retries once an endpoint is registered.
func (e *Engine) handleResolverMiss(runID string, property *Property, j registry.Jurisdiction, haveJurisdiction bool, lat, lon float64) (*parcels.Record, error) {
	if haveJurisdiction {
		if err := e.deps.Ledger.Record(j, lat, lon); err != nil {
			e.deps.Logger.Warn("Failed to record missing jurisdiction",
				slog.String("jurisdiction", j.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	if property.ManualFixRequested {
		return nil, fmt.Errorf("no parcel boundary found for property %d - manual fix required", property.ID)
	}

	e.deps.Logger.Info("No parcel boundary - continuing with centroid only",
		slog.String("run_id", runID),
		slog.Int64("property_id", property.ID),
		slog.String("jurisdiction", j.String()),
	)

	return &parcels.Record{
		PropertyID: property.ID,
		Lat:        lat,
		Lon:        lon,
		Zoom:       parcels.DefaultZoom,
		Provenance: parcels.ProvenanceAuto,
	}, nil
}

// locate wraps the FCC lookup; a miss leaves the jurisdiction unknown and
// the run proceeds without ledger bookkeeping.
func (e *Engine) locate(ctx context.Context, lat, lon float64) (registry.Jurisdiction, bool) {
	jurisdiction, err := e.deps.Locator.Locate(ctx, lat, lon)
	if err != nil {
		e.deps.Logger.Warn("Jurisdiction lookup failed - resolving without registry key",
			slog.Float64("lat", lat),
			slog.Float64("lon", lon),
			slog.String("error", err.Error()),
		)
		return registry.Jurisdiction{}, false
	}
	return jurisdiction, true
}

func polygonPairs(points []gis.Point) [][2]float64 {
	if len(points) == 0 {
		return nil
	}
	pairs := make([][2]float64, len(points))
	for i, p := range points {
		pairs[i] = [2]float64{p.Lat, p.Lon}
	}
	return pairs
}
