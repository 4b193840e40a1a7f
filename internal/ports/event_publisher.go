package ports

import (
	"context"

	"dropoff-route-service/internal/session"
)

// Publishes session events to consumers outside the process.
type EventPublisher interface {
	Publish(ctx context.Context, ev session.Event) error
}
