package gis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rmpcap/screener-be/internal/registry"
)

var (
	// ErrNotFound is the single soft-failure outcome of parcel resolution.
	// Unregistered jurisdictions, upstream errors, timeouts and empty or
	// malformed responses all collapse to it; the caller decides what a
	// miss means.
	ErrNotFound = errors.New("parcel not found")

	// ErrUpstream marks transport-level failures for observability. Always
	// wrapped together with ErrNotFound.
	ErrUpstream = errors.New("upstream GIS service error")
)

// Point is a WGS-84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Parcel is a resolved parcel boundary with its map-centering point.
type Parcel struct {
	Centroid Point
	Polygon  []Point // closed outer ring, lat/lon order
}

// Resolver answers parcel boundary queries against the endpoint registry.
// It has no side effects: a miss is reported, never recorded.
type Resolver struct {
	registry *registry.Registry
	client   *http.Client
	logger   *slog.Logger
}

// NewResolver creates a resolver with a bounded per-request timeout so an
// unresponsive county service cannot hang a screener run.
func NewResolver(reg *registry.Registry, timeout time.Duration, logger *slog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Resolver{
		registry: reg,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Resolve looks up the parcel containing (lat, lon) within a jurisdiction.
// addressHint, when non-empty, is the property's street address and is used
// to pick between multiple candidate parcels.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64, j registry.Jurisdiction, addressHint string) (*Parcel, error) {
	descriptor, err := r.registry.Resolve(j)
	if err != nil {
		// No network call for unknown jurisdictions
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	r.logger.Debug("Querying parcel service",
		slog.String("service", descriptor.Name),
		slog.String("dialect", descriptor.Dialect),
		slog.Float64("lat", lat),
		slog.Float64("lon", lon),
	)

	collection, err := r.query(ctx, descriptor, lat, lon)
	if err != nil {
		r.logger.Warn("Parcel service query failed",
			slog.String("service", descriptor.Name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w: %w", ErrNotFound, ErrUpstream, err)
	}

	parcel, ok := extractParcel(collection, lat, lon, addressHint)
	if !ok {
		r.logger.Debug("No parcel feature in response",
			slog.String("service", descriptor.Name),
			slog.Int("feature_count", len(collection.Features)),
		)
		return nil, ErrNotFound
	}

	r.logger.Info("Parcel resolved",
		slog.String("service", descriptor.Name),
		slog.Float64("centroid_lat", parcel.Centroid.Lat),
		slog.Float64("centroid_lon", parcel.Centroid.Lon),
		slog.Int("vertices", len(parcel.Polygon)),
	)

	return parcel, nil
}

func (r *Resolver) query(ctx context.Context, d registry.Descriptor, lat, lon float64) (*featureCollection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.URL.RawQuery = buildQuery(d, lat, lon).Encode()

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var collection featureCollection
	if err := json.Unmarshal(body, &collection); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &collection, nil
}

// extractParcel normalizes a feature collection into a Parcel. Rings in Web
// Mercator are converted to WGS-84 before feature selection so containment
// tests run in the same coordinate space as the query point.
func extractParcel(collection *featureCollection, lat, lon float64, addressHint string) (*Parcel, bool) {
	if len(collection.Features) == 0 {
		return nil, false
	}

	if needsMercatorConversion(collection.SpatialReference) {
		for i := range collection.Features {
			convertFeatureRings(&collection.Features[i])
		}
	}

	best := selectFeature(collection.Features, lat, lon, addressHint)
	if best == nil {
		return nil, false
	}

	ring := best.Geometry.Rings[0]
	meanX, meanY := ringMean(ring)
	if !inGeographicRange(meanY, meanX) {
		// Service ignored outSR and responded in an unknown projection
		return nil, false
	}

	// ArcGIS rings are lon/lat order
	polygon := make([]Point, len(ring))
	for i, p := range ring {
		polygon[i] = Point{Lat: p[1], Lon: p[0]}
	}

	return &Parcel{
		Centroid: Point{Lat: meanY, Lon: meanX},
		Polygon:  polygon,
	}, true
}

func needsMercatorConversion(sr *spatialReference) bool {
	if sr == nil {
		return false
	}
	return isMercatorWKID(sr.WKID) || isMercatorWKID(sr.LatestWKID)
}

func convertFeatureRings(f *arcgisFeature) {
	for _, ring := range f.Geometry.Rings {
		for i, p := range ring {
			latDeg, lonDeg := mercatorToWGS84(p[0], p[1])
			ring[i] = [2]float64{lonDeg, latDeg}
		}
	}
}
