package geo

import (
	"dropoff-route-service/internal/domain"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

const earthRadiusMeters = 6371000.0

// DistanceMeters returns the great-circle distance between two points.
func DistanceMeters(a, b domain.Coordinates) float64 {
	p1 := s2.PointFromLatLng(s2.LatLngFromDegrees(a.Lat, a.Lng))
	p2 := s2.PointFromLatLng(s2.LatLngFromDegrees(b.Lat, b.Lng))

	angle := s1.Angle(s2.ChordAngleBetweenPoints(p1, p2).Angle())
	return angle.Radians() * earthRadiusMeters
}
