// Package events publishes session events to Redis pub/sub so dashboards and
// other services can follow a drive.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"dropoff-route-service/internal/session"

	"github.com/redis/go-redis/v9"
)

// Channel returns the pub/sub channel carrying a route's events.
func Channel(routeID string) string { return "route:" + routeID + ":events" }

type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev session.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("publish event: encode: %w", err)
	}
	if err := p.client.Publish(ctx, Channel(ev.RouteID), raw).Err(); err != nil {
		return fmt.Errorf("publish event kind=%s route_id=%s: %w", ev.Kind, ev.RouteID, err)
	}
	return nil
}

// Subscribe decodes events for routeID until ctx is done. The returned
// channel is closed when the subscription ends.
func Subscribe(ctx context.Context, client *redis.Client, routeID string) (<-chan session.Event, error) {
	sub := client.Subscribe(ctx, Channel(routeID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe route_id=%s: %w", routeID, err)
	}

	out := make(chan session.Event)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev session.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
