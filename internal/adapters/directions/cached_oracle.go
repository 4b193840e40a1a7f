package directions

import (
	"context"
	"fmt"
	"log"
	"math"

	"dropoff-route-service/internal/domain"
	"dropoff-route-service/internal/ports"
)

// DirectionsCache stores recent oracle answers by leg key.
type DirectionsCache interface {
	Get(ctx context.Context, key string) (ports.DirectionsResult, bool, error)
	Put(ctx context.Context, key string, res ports.DirectionsResult) error
}

// CachedOracle answers repeated queries for the same leg from a cache, so a
// vehicle standing still does not hit the routing provider on every sample.
// Origins are snapped to a 1e-4 degree grid (about 11 m) before keying.
type CachedOracle struct {
	next  ports.DirectionsOracle
	cache DirectionsCache
}

func NewCachedOracle(next ports.DirectionsOracle, cache DirectionsCache) *CachedOracle {
	return &CachedOracle{next: next, cache: cache}
}

func (c *CachedOracle) Route(ctx context.Context, origin, destination domain.Coordinates) (ports.DirectionsResult, error) {
	key := LegKey(origin, destination)

	if res, ok, err := c.cache.Get(ctx, key); err != nil {
		log.Printf("directions cache read failed key=%s: %v", key, err)
	} else if ok {
		return res, nil
	}

	res, err := c.next.Route(ctx, origin, destination)
	if err != nil {
		return ports.DirectionsResult{}, err
	}

	if err := c.cache.Put(ctx, key, res); err != nil {
		log.Printf("directions cache write failed key=%s: %v", key, err)
	}
	return res, nil
}

// LegKey builds the cache key for a leg.
func LegKey(origin, destination domain.Coordinates) string {
	return fmt.Sprintf("%.4f,%.4f|%.6f,%.6f",
		snap(origin.Lat), snap(origin.Lng), destination.Lat, destination.Lng)
}

func snap(v float64) float64 { return math.Round(v*1e4) / 1e4 }
