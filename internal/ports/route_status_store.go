package ports

import (
	"context"

	"dropoff-route-service/internal/domain"
)

// Port: durable store for route progress (the persistence gateway).
type RouteStatusStore interface {
	WriteRouteStatus(ctx context.Context, rec domain.StatusRecord) error
	// Return domain.ErrRouteNotFound when nothing was persisted for routeID.
	ReadRouteStatus(ctx context.Context, routeID string) (domain.StatusRecord, error)
}
