package domain

import "math"

// earthRadiusKm is the mean radius used by the great-circle formula.
const earthRadiusKm = 6371.0

// Coordinates is a WGS84 lat/lng pair.
type Coordinates struct {
	Lat float64
	Lng float64
}

// DistanceKm returns the great-circle distance between two points in
// kilometers. It is symmetric and zero iff both points are identical.
func DistanceKm(a, b Coordinates) float64 {
	if a == b {
		return 0
	}

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// RoundDistanceKm rounds a distance to one decimal place for display.
func RoundDistanceKm(km float64) float64 {
	return math.Round(km*10) / 10
}
