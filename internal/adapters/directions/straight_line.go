package directions

import (
	"context"
	"math"

	"dropoff-route-service/internal/domain"
	"dropoff-route-service/internal/geo"
	"dropoff-route-service/internal/ports"

	"github.com/paulmach/orb"
)

// StraightLineOracle estimates a leg from great-circle distance and a fixed
// average speed. It needs no network and is used for replays and as a
// stand-in when no routing provider is configured.
type StraightLineOracle struct {
	// Average speed in meters per second.
	SpeedMPS float64
}

// 30 km/h, a typical urban drop-off pace.
const defaultSpeedMPS = 30.0 * 1000 / 3600

func NewStraightLineOracle() *StraightLineOracle {
	return &StraightLineOracle{SpeedMPS: defaultSpeedMPS}
}

func (s *StraightLineOracle) Route(
	ctx context.Context,
	origin domain.Coordinates,
	destination domain.Coordinates,
) (ports.DirectionsResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.DirectionsResult{}, err
	}

	speed := s.SpeedMPS
	if speed <= 0 {
		speed = defaultSpeedMPS
	}

	meters := geo.DistanceMeters(origin, destination)
	return ports.DirectionsResult{
		DistanceMeters:  int(math.Round(meters)),
		DurationSeconds: int(math.Ceil(meters / speed)),
		Geometry: orb.LineString{
			{origin.Lng, origin.Lat},
			{destination.Lng, destination.Lat},
		},
	}, nil
}
