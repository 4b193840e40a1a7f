// Package geo holds the small amount of spherical geometry the tracker needs:
// camera bearing, straight-line distance and route path decoding.
package geo

import (
	"math"

	"dropoff-route-service/internal/domain"
)

// Bearing returns the initial great-circle bearing from one point to another,
// in degrees clockwise from north, normalized to [0, 360).
// Identical points yield 0.
func Bearing(from, to domain.Coordinates) float64 {
	if from == to {
		return 0
	}

	lat1 := toRadians(from.Lat)
	lat2 := toRadians(to.Lat)
	dLng := toRadians(to.Lng - from.Lng)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)

	deg := toDegrees(math.Atan2(y, x))
	return math.Mod(deg+360, 360)
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }
