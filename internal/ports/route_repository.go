package ports

import (
	"context"

	"dropoff-route-service/internal/domain"
)

// Port: a boundary for retrieving Route aggregates (with their ordered
// waypoints) from a data source.
type RouteRepository interface {
	ListRoutes(ctx context.Context) ([]*domain.Route, error)
	// Return domain.ErrRouteNotFound when the route does not exist.
	GetRoute(ctx context.Context, routeID string) (*domain.Route, error)
}
