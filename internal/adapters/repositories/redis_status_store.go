package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dropoff-route-service/internal/domain"
	"dropoff-route-service/internal/platform/obs"

	"github.com/redis/go-redis/v9"
)

// RedisStatusStore keeps each route's latest StatusRecord as a JSON value
// under route:<id>:status.
type RedisStatusStore struct {
	client *redis.Client
}

func NewRedisStatusStore(client *redis.Client) *RedisStatusStore {
	return &RedisStatusStore{client: client}
}

func statusKey(routeID string) string { return "route:" + routeID + ":status" }

func (s *RedisStatusStore) WriteRouteStatus(ctx context.Context, rec domain.StatusRecord) (err error) {
	defer obs.Time(obs.WithRouteID(ctx, rec.RouteID), "status.Write")(&err)

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("write route status: encode: %w", err)
	}
	if err := s.client.Set(ctx, statusKey(rec.RouteID), raw, 0).Err(); err != nil {
		return fmt.Errorf("write route status route_id=%s: %w", rec.RouteID, err)
	}
	return nil
}

func (s *RedisStatusStore) ReadRouteStatus(ctx context.Context, routeID string) (_ domain.StatusRecord, err error) {
	defer obs.Time(obs.WithRouteID(ctx, routeID), "status.Read")(&err)

	raw, err := s.client.Get(ctx, statusKey(routeID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.StatusRecord{}, fmt.Errorf("route status %q: %w", routeID, domain.ErrRouteNotFound)
	}
	if err != nil {
		return domain.StatusRecord{}, fmt.Errorf("read route status %q: %w", routeID, err)
	}

	var rec domain.StatusRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.StatusRecord{}, fmt.Errorf("read route status %q: decode: %w", routeID, err)
	}
	if !rec.Status.Valid() {
		return domain.StatusRecord{}, fmt.Errorf("read route status %q: unknown status %q: %w", routeID, rec.Status, domain.ErrInconsistentState)
	}
	return rec, nil
}
