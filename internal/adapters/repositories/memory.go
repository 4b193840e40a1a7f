package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"dropoff-route-service/internal/domain"
)

// MemoryRouteRepository serves routes held in memory. Used by the replay
// tool and tests.
type MemoryRouteRepository struct {
	mu     sync.RWMutex
	routes map[string]*domain.Route
}

func NewMemoryRouteRepository(routes ...*domain.Route) *MemoryRouteRepository {
	m := &MemoryRouteRepository{routes: map[string]*domain.Route{}}
	for _, r := range routes {
		m.routes[r.ID] = r.Clone()
	}
	return m
}

func (m *MemoryRouteRepository) ListRoutes(ctx context.Context) ([]*domain.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.Route, 0, len(m.routes))
	for _, r := range m.routes {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRouteRepository) GetRoute(ctx context.Context, routeID string) (*domain.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.routes[routeID]
	if !ok {
		return nil, fmt.Errorf("route %q: %w", routeID, domain.ErrRouteNotFound)
	}
	return r.Clone(), nil
}

// MemoryStatusStore keeps the latest StatusRecord per route in memory.
type MemoryStatusStore struct {
	mu      sync.RWMutex
	records map[string]domain.StatusRecord
}

func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{records: map[string]domain.StatusRecord{}}
}

func (m *MemoryStatusStore) WriteRouteStatus(ctx context.Context, rec domain.StatusRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.Waypoints = append([]domain.WaypointStatusRecord(nil), rec.Waypoints...)
	m.records[rec.RouteID] = rec
	return nil
}

func (m *MemoryStatusStore) ReadRouteStatus(ctx context.Context, routeID string) (domain.StatusRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[routeID]
	if !ok {
		return domain.StatusRecord{}, fmt.Errorf("route status %q: %w", routeID, domain.ErrRouteNotFound)
	}
	rec.Waypoints = append([]domain.WaypointStatusRecord(nil), rec.Waypoints...)
	return rec, nil
}
