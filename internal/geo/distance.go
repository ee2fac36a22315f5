package geo

import (
	"math"
	"sort"
)

const earthRadiusMeters = 6_371_000

// Coordinate is an immutable lat/lon pair in degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Haversine returns the great-circle distance in meters between two lat/lon points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// DistanceTo returns the great-circle distance in meters to another coordinate.
func (c Coordinate) DistanceTo(other Coordinate) float64 {
	return Haversine(c.Lat, c.Lon, other.Lat, other.Lon)
}

// SortByDistance stably sorts items by distance from origin, closest first.
// Ties keep their original relative order.
func SortByDistance[T any](items []T, origin Coordinate, coord func(T) Coordinate) {
	sort.SliceStable(items, func(i, j int) bool {
		return origin.DistanceTo(coord(items[i])) < origin.DistanceTo(coord(items[j]))
	})
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
