// Package geo holds the great-circle math used to rank feed entries by
// distance from home.
package geo

import (
	"math"

	"github.com/thomaskoefod/quakereadr/pkg/models"
)

// EarthRadiusKm is the mean earth radius.
const EarthRadiusKm = 6371.0088

// Distance returns the haversine distance between a and b in kilometers.
// Inputs are not validated; NaN propagates to the result.
func Distance(a, b models.Coordinates) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := lat2 - lat1
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLon/2), 2)
	// rounding can push h marginally above 1 for antipodal points
	h = math.Min(h, 1)

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
