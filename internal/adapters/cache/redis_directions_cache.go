package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dropoff-route-service/internal/ports"

	"github.com/paulmach/orb"
	"github.com/redis/go-redis/v9"
)

const directionsKeyPrefix = "directions:"

// RedisDirectionsCache keeps recent directions answers in Redis with a TTL.
type RedisDirectionsCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDirectionsCache(client *redis.Client, ttl time.Duration) *RedisDirectionsCache {
	return &RedisDirectionsCache{client: client, ttl: ttl}
}

type cachedLeg struct {
	DistanceMeters  int            `json:"distance_meters"`
	DurationSeconds int            `json:"duration_seconds"`
	Geometry        orb.LineString `json:"geometry,omitempty"`
}

func (c *RedisDirectionsCache) Get(ctx context.Context, key string) (ports.DirectionsResult, bool, error) {
	raw, err := c.client.Get(ctx, directionsKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ports.DirectionsResult{}, false, nil
	}
	if err != nil {
		return ports.DirectionsResult{}, false, fmt.Errorf("get directions cache: %w", err)
	}

	var leg cachedLeg
	if err := json.Unmarshal(raw, &leg); err != nil {
		return ports.DirectionsResult{}, false, fmt.Errorf("get directions cache: decode %q: %w", key, err)
	}

	return ports.DirectionsResult{
		DistanceMeters:  leg.DistanceMeters,
		DurationSeconds: leg.DurationSeconds,
		Geometry:        leg.Geometry,
	}, true, nil
}

func (c *RedisDirectionsCache) Put(ctx context.Context, key string, res ports.DirectionsResult) error {
	raw, err := json.Marshal(cachedLeg{
		DistanceMeters:  res.DistanceMeters,
		DurationSeconds: res.DurationSeconds,
		Geometry:        res.Geometry,
	})
	if err != nil {
		return fmt.Errorf("put directions cache: encode: %w", err)
	}

	if err := c.client.Set(ctx, directionsKeyPrefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("put directions cache: %w", err)
	}
	return nil
}
