package gis

// Web Mercator (EPSG:3857, Esri WKID 102100) → WGS-84 inverse.
// Statewide ArcGIS layers honor outSR=4326, but a few county services
// ignore it and return geometry in their native Mercator meters, so the
// resolver converts before anything downstream sees the rings.

import "math"

const earthRadiusM = 6378137.0 // WGS-84 semi-major axis

// mercatorToWGS84 converts Web Mercator meters to (lat, lon) decimal degrees.
func mercatorToWGS84(x, y float64) (lat, lon float64) {
	lon = x / earthRadiusM * 180 / math.Pi
	lat = (2*math.Atan(math.Exp(y/earthRadiusM)) - math.Pi/2) * 180 / math.Pi
	return lat, lon
}

// inGeographicRange reports whether (lat, lon) is a plausible WGS-84 coordinate.
func inGeographicRange(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// isMercatorWKID reports whether a spatial reference ID denotes Web Mercator.
func isMercatorWKID(wkid int) bool {
	return wkid == 3857 || wkid == 102100 || wkid == 900913
}
