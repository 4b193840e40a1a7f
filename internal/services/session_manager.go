package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"dropoff-route-service/internal/domain"
	"dropoff-route-service/internal/ports"
	"dropoff-route-service/internal/session"
)

var (
	// ErrSessionActive is returned when a route already has a live session.
	ErrSessionActive = errors.New("route already has an active session")
	ErrNoSession     = errors.New("route has no session")
)

type SessionManagerDeps struct {
	Repo      ports.RouteRepository
	Store     ports.RouteStatusStore
	Oracle    ports.DirectionsOracle
	Notifier  *NotificationDispatcher
	Publisher ports.EventPublisher
	// Sources returns the position source for a route.
	Sources func(routeID string) ports.PositionSource
}

// SessionManager is the single-writer registry of drive sessions: at most
// one live Tracker exists per route.
type SessionManager struct {
	deps       SessionManagerDeps
	cfg        TrackerConfig
	thresholds session.Thresholds

	mu       sync.Mutex
	trackers map[string]*Tracker
}

func NewSessionManager(deps SessionManagerDeps, cfg TrackerConfig, thresholds session.Thresholds) *SessionManager {
	return &SessionManager{
		deps:       deps,
		cfg:        cfg,
		thresholds: thresholds,
		trackers:   map[string]*Tracker{},
	}
}

// Open loads the route and starts a session for it. A finished or aborted
// session for the same route is replaced. The registry lock is never held
// across repository calls or tracker shutdown.
func (m *SessionManager) Open(ctx context.Context, routeID string) (*Tracker, error) {
	if err := m.release(ctx, routeID); err != nil {
		return nil, fmt.Errorf("open session for route %q: %w", routeID, err)
	}

	route, err := m.deps.Repo.GetRoute(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("open session for route %q: %w", routeID, err)
	}

	sess, err := session.New(route, session.WithThresholds(m.thresholds))
	if err != nil {
		return nil, fmt.Errorf("open session for route %q: %w", routeID, err)
	}

	tracker, err := NewTracker(sess, TrackerDeps{
		Source:    m.deps.Sources(routeID),
		Oracle:    m.deps.Oracle,
		Store:     m.deps.Store,
		Notifier:  m.deps.Notifier,
		Publisher: m.deps.Publisher,
	}, m.cfg)
	if err != nil {
		return nil, fmt.Errorf("open session for route %q: %w", routeID, err)
	}

	m.mu.Lock()
	if _, ok := m.trackers[routeID]; ok {
		m.mu.Unlock()
		// A concurrent Open for the same route won.
		tracker.Close()
		return nil, fmt.Errorf("open session for route %q: %w", routeID, ErrSessionActive)
	}
	m.trackers[routeID] = tracker
	m.mu.Unlock()

	log.Printf("route_id=%s session_id=%s session opened stops=%d", routeID, tracker.ID(), len(route.Waypoints))

	return tracker, nil
}

// release removes a finished or aborted session for the route so a new one
// can be opened. It fails with ErrSessionActive when the session is live.
func (m *SessionManager) release(ctx context.Context, routeID string) error {
	m.mu.Lock()
	existing, ok := m.trackers[routeID]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	status, closed, err := existing.Status(ctx)
	switch {
	case errors.Is(err, ErrTrackerClosed):
	case err != nil:
		return err
	case !closed && status != domain.RouteFinished:
		return ErrSessionActive
	}

	m.mu.Lock()
	if m.trackers[routeID] == existing {
		delete(m.trackers, routeID)
	}
	m.mu.Unlock()

	existing.Close()
	return nil
}

func (m *SessionManager) Get(routeID string) (*Tracker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.trackers[routeID]
	if !ok {
		return nil, fmt.Errorf("route %q: %w", routeID, ErrNoSession)
	}
	return t, nil
}

// Resume continues a route's session. A session paused in memory resumes
// from its own state; otherwise the persisted status is read and the active
// waypoint reconstructed from it. A session is opened first if none exists.
func (m *SessionManager) Resume(ctx context.Context, routeID string) (*Tracker, error) {
	t, err := m.Get(routeID)
	if errors.Is(err, ErrNoSession) {
		t, err = m.Open(ctx, routeID)
	}
	if err != nil {
		return nil, err
	}

	status, _, err := t.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("resume route %q: %w", routeID, err)
	}
	if status == domain.RoutePaused {
		return t, t.Resume(ctx, nil)
	}

	rec, err := m.deps.Store.ReadRouteStatus(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("resume route %q: read persisted status: %w", routeID, err)
	}
	if err := t.Resume(ctx, &rec); err != nil {
		return nil, err
	}
	return t, nil
}

// Close aborts and discards the route's session.
func (m *SessionManager) Close(ctx context.Context, routeID string) error {
	m.mu.Lock()
	t, ok := m.trackers[routeID]
	delete(m.trackers, routeID)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("route %q: %w", routeID, ErrNoSession)
	}

	err := t.Abort(ctx)
	t.Close()
	if err != nil && !errors.Is(err, session.ErrSessionClosed) {
		return fmt.Errorf("close session for route %q: %w", routeID, err)
	}
	log.Printf("route_id=%s session_id=%s session closed", routeID, t.ID())
	return nil
}

// Shutdown closes every session without aborting it, draining pending writes.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	trackers := m.trackers
	m.trackers = map[string]*Tracker{}
	m.mu.Unlock()

	for id, t := range trackers {
		t.Close()
		log.Printf("route_id=%s session_id=%s session stopped", id, t.ID())
	}
}
