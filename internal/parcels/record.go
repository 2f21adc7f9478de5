package parcels

import "errors"

// Provenance of a parcel record
const (
	ProvenanceAuto   = "auto"   // resolved from a GIS service
	ProvenanceManual = "manual" // corrected by a human through the capture UI
)

// DefaultZoom is the map zoom used when no polygon is available to derive one.
const DefaultZoom = 18

var (
	// ErrNoRecord is returned when a property has no stored parcel geometry
	ErrNoRecord = errors.New("no parcel record for property")
)

// Record is the resolved (or manually corrected) parcel geometry for one
// property. Records are replaced wholesale, never partially mutated, so the
// automated and manual paths can share a single write contract.
type Record struct {
	PropertyID int64        `json:"property_id"`
	Lat        float64      `json:"lat"`
	Lon        float64      `json:"lon"`
	Zoom       int          `json:"zoom"`
	Polygon    [][2]float64 `json:"polygon,omitempty"` // (lat, lon) pairs, closed ring; nil means centroid only
	Provenance string       `json:"provenance"`
}

// HasBoundary reports whether the record carries a usable polygon.
func (r *Record) HasBoundary() bool {
	return len(r.Polygon) >= 3
}
