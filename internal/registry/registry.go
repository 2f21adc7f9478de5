package registry

import (
	"errors"
	"fmt"
	"strings"
)

// Query dialect constants
const (
	DialectPoint    = "point"
	DialectEnvelope = "envelope"
)

// DefaultEnvelopeBuffer is the bounding-box half-width in degrees (~50m)
// used when an envelope descriptor does not set its own buffer.
const DefaultEnvelopeBuffer = 0.0005

var (
	// ErrNotRegistered is returned when no GIS endpoint is known for a jurisdiction
	ErrNotRegistered = errors.New("jurisdiction not registered")

	// ErrDuplicateKey is returned at load time when two descriptors share a jurisdiction key
	ErrDuplicateKey = errors.New("duplicate jurisdiction key")
)

// Jurisdiction identifies a parcel data authority: either a whole state
// (County empty) or a single county within a state.
type Jurisdiction struct {
	State  string // two-letter code, e.g. "MO"
	County string // county name, empty for statewide
}

// Key returns the normalized registry key, e.g. "CO" or "clay|MO".
func (j Jurisdiction) Key() string {
	state := strings.ToUpper(strings.TrimSpace(j.State))
	county := strings.ToLower(strings.TrimSpace(j.County))
	if county == "" {
		return state
	}
	return county + "|" + state
}

// String renders the jurisdiction for logs and the missing-jurisdiction ledger.
func (j Jurisdiction) String() string {
	if strings.TrimSpace(j.County) == "" {
		return strings.ToUpper(strings.TrimSpace(j.State))
	}
	return fmt.Sprintf("%s, %s", strings.TrimSpace(j.County), strings.ToUpper(strings.TrimSpace(j.State)))
}

// Descriptor describes one ArcGIS REST parcel layer.
type Descriptor struct {
	Name           string  `yaml:"name"`
	State          string  `yaml:"state"`
	County         string  `yaml:"county"` // empty for statewide services
	URL            string  `yaml:"url"`
	Dialect        string  `yaml:"dialect"` // point or envelope
	WGS84Output    bool    `yaml:"wgs84_output"`
	EnvelopeBuffer float64 `yaml:"envelope_buffer"` // degrees, envelope dialect only
}

// Jurisdiction returns the descriptor's jurisdiction key source.
func (d Descriptor) Jurisdiction() Jurisdiction {
	return Jurisdiction{State: d.State, County: d.County}
}

// Buffer returns the envelope half-width, falling back to the default.
func (d Descriptor) Buffer() float64 {
	if d.EnvelopeBuffer > 0 {
		return d.EnvelopeBuffer
	}
	return DefaultEnvelopeBuffer
}

// Registry is the read-only catalog of known parcel GIS endpoints.
// Statewide entries take precedence over county entries so that a single
// statewide service covers every county within that state.
type Registry struct {
	states   map[string]Descriptor
	counties map[string]Descriptor
}

// New builds a registry from descriptors, validating that no two entries
// share a jurisdiction key and that each dialect is known.
func New(entries []Descriptor) (*Registry, error) {
	r := &Registry{
		states:   make(map[string]Descriptor),
		counties: make(map[string]Descriptor),
	}

	for _, d := range entries {
		if d.URL == "" {
			return nil, fmt.Errorf("descriptor %q: url is required", d.Name)
		}
		if strings.TrimSpace(d.State) == "" {
			return nil, fmt.Errorf("descriptor %q: state is required", d.Name)
		}
		switch d.Dialect {
		case DialectPoint, DialectEnvelope:
		default:
			return nil, fmt.Errorf("descriptor %q: unknown dialect %q", d.Name, d.Dialect)
		}

		j := d.Jurisdiction()
		key := j.Key()
		if j.County == "" {
			if _, exists := r.states[key]; exists {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, key)
			}
			r.states[key] = d
		} else {
			if _, exists := r.counties[key]; exists {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, key)
			}
			r.counties[key] = d
		}
	}

	return r, nil
}

// Resolve returns the descriptor covering the jurisdiction. The statewide
// entry wins when both a state and a county entry could apply.
func (r *Registry) Resolve(j Jurisdiction) (Descriptor, error) {
	stateKey := Jurisdiction{State: j.State}.Key()
	if d, ok := r.states[stateKey]; ok {
		return d, nil
	}

	if j.County != "" {
		if d, ok := r.counties[j.Key()]; ok {
			return d, nil
		}
	}

	return Descriptor{}, fmt.Errorf("%w: %s", ErrNotRegistered, j.Key())
}

// Len reports how many descriptors are registered.
func (r *Registry) Len() int {
	return len(r.states) + len(r.counties)
}

// DefaultEntries is the built-in endpoint catalog. Adding a jurisdiction is
// an out-of-band change: extend this list (or the endpoints section of the
// config file) and redeploy.
func DefaultEntries() []Descriptor {
	return []Descriptor{
		{
			Name: "Colorado Statewide Parcels",
			// Colorado cannot match bare points against parcel polygons reliably
			State:       "CO",
			URL:         "https://gis.colorado.gov/public/rest/services/Address_and_Parcel/Colorado_Public_Parcels/FeatureServer/0/query",
			Dialect:     DialectEnvelope,
			WGS84Output: true,
		},
		{
			Name:        "Wisconsin Statewide Parcels",
			State:       "WI",
			URL:         "https://services3.arcgis.com/n6uYoouQZW75n5WI/arcgis/rest/services/Wisconsin_Statewide_Parcels/FeatureServer/0/query",
			Dialect:     DialectPoint,
			WGS84Output: true,
		},
		{
			Name:           "Clay County, MO",
			State:          "MO",
			County:         "Clay",
			URL:            "https://services7.arcgis.com/3c8lLdmDNevrTlaV/ArcGIS/rest/services/ClayCountyParcelService/FeatureServer/0/query",
			Dialect:        DialectEnvelope,
			WGS84Output:    true,
			EnvelopeBuffer: 0.002,
		},
	}
}
