package screener

import (
	"context"
	"errors"
	"time"

	"github.com/rmpcap/screener-be/internal/gis"
	"github.com/rmpcap/screener-be/internal/parcels"
	"github.com/rmpcap/screener-be/internal/registry"
	"github.com/rmpcap/screener-be/internal/report"
)

// Run status constants
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

var (
	// ErrAlreadyRunning is returned by Start while another run holds the
	// engine. Callers retry after polling the active run to a terminal state.
	ErrAlreadyRunning = errors.New("a screener run is already in progress")

	// ErrRunNotFound is returned when polling an unknown run id
	ErrRunNotFound = errors.New("screener run not found")

	// ErrPropertyNotFound is returned when the target property does not exist
	ErrPropertyNotFound = errors.New("property not found")
)

// Property is the slice of the pipeline CRUD data the engine consumes.
type Property struct {
	ID      int64
	Name    string
	Address string
	City    string
	State   string
	Zip     string

	// Geocode, absent until first resolved
	Lat *float64
	Lon *float64

	// Set when an operator has flagged the property for manual boundary
	// correction; automated resolution misses then fail the run instead of
	// degrading silently.
	ManualFixRequested bool
}

// FullAddress renders the one-line address for geocoding.
func (p *Property) FullAddress() string {
	return p.Address + ", " + p.City + ", " + p.State + " " + p.Zip
}

// Run is a snapshot of one screener execution. Mutated only by the engine
// goroutine executing it; callers receive copies.
type Run struct {
	ID              string    `json:"run_id"`
	PropertyID      int64     `json:"property_id"`
	Status          string    `json:"status"`
	CurrentStep     string    `json:"current_step"`
	ProgressPercent int       `json:"progress_percent"`
	ReportPath      string    `json:"report_path,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at,omitzero"`
}

// Terminal reports whether the run has reached a final state.
func (r *Run) Terminal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}

// PropertyReader loads property data owned by the pipeline CRUD collaborator.
type PropertyReader interface {
	GetProperty(ctx context.Context, id int64) (*Property, error)
	UpdateGeocode(ctx context.Context, id int64, lat, lon float64) error
}

// Geocoder resolves a one-line address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (lat, lon float64, err error)
}

// Locator attributes coordinates to a jurisdiction.
type Locator interface {
	Locate(ctx context.Context, lat, lon float64) (registry.Jurisdiction, error)
}

// GeometryResolver resolves a parcel boundary for coordinates within a
// jurisdiction. Pure: misses are reported to the caller, never recorded.
type GeometryResolver interface {
	Resolve(ctx context.Context, lat, lon float64, j registry.Jurisdiction, addressHint string) (*gis.Parcel, error)
}

// ParcelStore persists resolved geometry per property.
type ParcelStore interface {
	Get(ctx context.Context, propertyID int64) (*parcels.Record, error)
	Put(ctx context.Context, record *parcels.Record) error
}

// MissingLedger records jurisdictions the resolver could not serve.
type MissingLedger interface {
	Record(j registry.Jurisdiction, lat, lon float64) error
}

// Reporter renders the screener artifact. Always succeeds or errors; any
// error becomes the run's failed terminal state.
type Reporter interface {
	Render(ctx context.Context, property report.Property, record *parcels.Record) (string, error)
}
