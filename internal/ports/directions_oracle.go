package ports

import (
	"context"

	"dropoff-route-service/internal/domain"

	"github.com/paulmach/orb"
)

// Travel distance, duration and path geometry for a single leg.
type DirectionsResult struct {
	DistanceMeters  int
	DurationSeconds int
	Geometry        orb.LineString
}

// Contract for the external routing provider.
type DirectionsOracle interface {
	// Return distance, duration and geometry from origin to destination.
	Route(ctx context.Context, origin, destination domain.Coordinates) (DirectionsResult, error)
}
