package gis

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rmpcap/screener-be/internal/registry"
)

// featureCollection is the subset of an ArcGIS REST query response we consume.
type featureCollection struct {
	Features         []arcgisFeature   `json:"features"`
	SpatialReference *spatialReference `json:"spatialReference"`
}

type arcgisFeature struct {
	Attributes map[string]interface{} `json:"attributes"`
	Geometry   arcgisGeometry         `json:"geometry"`
}

type arcgisGeometry struct {
	// Rings are polygon rings of [x, y] pairs; the first ring is the outer boundary
	Rings [][][2]float64 `json:"rings"`
}

type spatialReference struct {
	WKID       int `json:"wkid"`
	LatestWKID int `json:"latestWkid"`
}

// buildQuery assembles the ArcGIS REST query parameters for a descriptor.
// Envelope dialect sends a small bounding box around the point because some
// services cannot match a bare point against parcel polygons.
func buildQuery(d registry.Descriptor, lat, lon float64) url.Values {
	params := url.Values{}

	if d.Dialect == registry.DialectEnvelope {
		buffer := d.Buffer()
		params.Set("geometry", fmt.Sprintf("%f,%f,%f,%f", lon-buffer, lat-buffer, lon+buffer, lat+buffer))
		params.Set("geometryType", "esriGeometryEnvelope")
	} else {
		params.Set("geometry", fmt.Sprintf("%f,%f", lon, lat))
		params.Set("geometryType", "esriGeometryPoint")
	}

	params.Set("inSR", "4326")
	params.Set("spatialRel", "esriSpatialRelIntersects")
	params.Set("outFields", "*")
	params.Set("returnGeometry", "true")
	params.Set("f", "json")

	// Statewide services use state-plane projections natively
	if d.WGS84Output {
		params.Set("outSR", "4326")
	}

	return params
}

// situsFields are the attribute names counties use for the parcel's street address.
var situsFields = []string{
	"situsAdd", "SITUS_ADDR", "SITUS", "ADDRESS", "ADDR",
	"PHYADDR", "PHYSADDR", "STADDR", "PROPADDR", "situs_address",
	"situs_display", "SITUS_DISPLAY",
}

var suffixReplacements = []struct {
	pattern *regexp.Regexp
	abbrev  string
}{
	{regexp.MustCompile(`\bSTREET\b`), "ST"},
	{regexp.MustCompile(`\bAVENUE\b`), "AVE"},
	{regexp.MustCompile(`\bBOULEVARD\b`), "BLVD"},
	{regexp.MustCompile(`\bDRIVE\b`), "DR"},
	{regexp.MustCompile(`\bROAD\b`), "RD"},
	{regexp.MustCompile(`\bLANE\b`), "LN"},
	{regexp.MustCompile(`\bCOURT\b`), "CT"},
	{regexp.MustCompile(`\bPLACE\b`), "PL"},
	{regexp.MustCompile(`\bCIRCLE\b`), "CIR"},
	{regexp.MustCompile(`\bHIGHWAY\b`), "HWY"},
}

var directionWords = map[string]bool{
	"N": true, "S": true, "E": true, "W": true,
	"NE": true, "NW": true, "SE": true, "SW": true,
	"NORTH": true, "SOUTH": true, "EAST": true, "WEST": true,
}

// normalizeAddress uppercases, strips punctuation and abbreviates street
// suffixes so situs attributes from different counties compare equal.
func normalizeAddress(address string) string {
	if address == "" {
		return ""
	}
	addr := strings.ToUpper(strings.TrimSpace(address))
	addr = strings.NewReplacer(".", "", ",", "").Replace(addr)
	addr = strings.Join(strings.Fields(addr), " ")
	for _, r := range suffixReplacements {
		addr = r.pattern.ReplaceAllString(addr, r.abbrev)
	}
	return strings.TrimSpace(addr)
}

// matchesAddress reports whether a situs attribute matches the property
// address hint: street numbers must agree and at least one street-name
// token (direction prefixes excluded) must appear in the situs.
func matchesAddress(situs, hint string) bool {
	normalizedHint := normalizeAddress(hint)
	parts := strings.Fields(normalizedHint)
	if len(parts) == 0 {
		return false
	}

	number := ""
	if isDigits(parts[0]) {
		number = parts[0]
	}
	if number == "" {
		return false
	}

	var nameParts []string
	for _, p := range parts[1:] {
		if !directionWords[p] {
			nameParts = append(nameParts, p)
		}
	}

	normalizedSitus := normalizeAddress(situs)
	if !strings.HasPrefix(normalizedSitus, number+" ") {
		return false
	}
	for _, part := range nameParts {
		if strings.Contains(normalizedSitus, part) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// pointInRing tests (x, y) containment with the ray casting algorithm.
// Ring points are [x, y] pairs; closure of the ring is not required.
func pointInRing(x, y float64, ring [][2]float64) bool {
	inside := false
	j := len(ring) - 1
	for i := 0; i < len(ring); i++ {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}

// ringMean returns the arithmetic mean of ring vertices. Not a true area
// centroid, but close enough to center a map on the parcel.
func ringMean(ring [][2]float64) (x, y float64) {
	for _, p := range ring {
		x += p[0]
		y += p[1]
	}
	n := float64(len(ring))
	return x / n, y / n
}

// selectFeature picks the best candidate parcel from a multi-feature
// response. Preference order: situs address match against the hint, the
// only feature, the polygon containing the query point, then the polygon
// whose vertex mean is nearest the point.
func selectFeature(features []arcgisFeature, lat, lon float64, addressHint string) *arcgisFeature {
	if addressHint != "" && len(features) > 1 {
		for i := range features {
			if len(features[i].Geometry.Rings) == 0 || len(features[i].Geometry.Rings[0]) == 0 {
				continue
			}
			for _, field := range situsFields {
				situs, ok := features[i].Attributes[field].(string)
				if ok && situs != "" && matchesAddress(situs, addressHint) {
					return &features[i]
				}
			}
		}
	}

	var withRings []*arcgisFeature
	for i := range features {
		if len(features[i].Geometry.Rings) > 0 && len(features[i].Geometry.Rings[0]) > 0 {
			withRings = append(withRings, &features[i])
		}
	}
	if len(withRings) == 0 {
		return nil
	}
	if len(withRings) == 1 {
		return withRings[0]
	}

	for _, f := range withRings {
		if pointInRing(lon, lat, f.Geometry.Rings[0]) {
			return f
		}
	}

	var best *arcgisFeature
	minDist := -1.0
	for _, f := range withRings {
		cx, cy := ringMean(f.Geometry.Rings[0])
		dist := (cx-lon)*(cx-lon) + (cy-lat)*(cy-lat)
		if best == nil || dist < minDist {
			best = f
			minDist = dist
		}
	}
	return best
}
