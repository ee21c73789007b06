package geo

import "math"

const (
	// earthRadiusKm is the mean Earth radius used for great-circle distance.
	earthRadiusKm = 6371.0

	// detourFactor inflates straight-line distance to approximate road distance.
	detourFactor = 1.3

	// avgSpeedKmh is the assumed average driving speed in an urban area.
	avgSpeedKmh = 30.0

	// stopOverheadMinutes covers parking and walking to the door per stop.
	stopOverheadMinutes = 5

	// fallbackTravelMinutes is the estimate used when a stop has no coordinates.
	fallbackTravelMinutes = 15
)

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Locatable is anything that may carry a geocoded position.
type Locatable interface {
	Coords() (Point, bool)
}

// DistanceKm returns the great-circle distance between a and b in kilometers
// using the haversine formula.
func DistanceKm(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// DistanceTo returns the distance from p to the target, or +Inf when the
// target has no coordinates. The infinite sentinel ranks such targets behind
// every reachable one.
func DistanceTo(p Point, target Locatable) float64 {
	tp, ok := target.Coords()
	if !ok {
		return math.Inf(1)
	}
	return DistanceKm(p, tp)
}

// TravelTimeMinutes estimates driving time for a straight-line distance.
// The distance is inflated by a detour factor, converted at an assumed
// average speed, and a fixed per-stop overhead is added. An infinite
// distance (unknown position) yields a flat fallback estimate.
func TravelTimeMinutes(distanceKm float64) int {
	if math.IsInf(distanceKm, 1) {
		return fallbackTravelMinutes
	}
	return int(math.Round(distanceKm*detourFactor/avgSpeedKmh*60)) + stopOverheadMinutes
}
