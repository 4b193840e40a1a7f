package ports

import "dropoff-route-service/internal/domain"

// PositionSource pushes live position samples while subscribed.
type PositionSource interface {
	// Subscribe registers onSample and returns an unsubscribe function.
	// Calling unsubscribe more than once is a no-op.
	Subscribe(onSample func(domain.PositionSample)) (unsubscribe func())
}
