// Package geo provides great-circle distance math for proximity ranking.
// All positions use the WGS84 coordinate system (same as GPS).
package geo

import "math"

// Constants for distance calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// EarthRadiusKm is the Earth's radius in kilometers (WGS84 mean radius)
	EarthRadiusKm = 6371.0
)

// DistanceKm returns the great-circle distance in kilometers between two
// points given in decimal degrees, using the haversine formula.
// The result is rounded half-up to two decimal places.
//
// Inputs are not validated; NaN or out-of-range coordinates produce NaN.
// Callers that accept external input should check ValidCoordinates first.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * DegreesToRadians
	lat2Rad := lat2 * DegreesToRadians
	deltaLat := (lat2 - lat1) * DegreesToRadians
	deltaLon := (lon2 - lon1) * DegreesToRadians

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return roundTwoDecimals(EarthRadiusKm * c)
}

// ValidCoordinates reports whether lat/lon fall within the valid WGS84
// ranges: latitude -90..90, longitude -180..180. NaN fails both checks.
func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// roundTwoDecimals rounds half-up at the second decimal place.
// Distances are non-negative, so half-away-from-zero equals half-up.
func roundTwoDecimals(v float64) float64 {
	return math.Round(v*100) / 100
}
