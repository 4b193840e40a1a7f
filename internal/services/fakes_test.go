package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"dropoff-route-service/internal/domain"
	"dropoff-route-service/internal/ports"
	"dropoff-route-service/internal/session"
)

func testRoute(stops int) *domain.Route {
	route := &domain.Route{
		ID:     "R1",
		Name:   "Morning drop-off",
		Driver: domain.Driver{ID: "d1", Name: "Dana", PushToken: "driver-token"},
	}
	for i := 0; i < stops; i++ {
		id := fmt.Sprintf("W%d", i)
		route.Waypoints = append(route.Waypoints, domain.Waypoint{
			ID:       id,
			Name:     "Stop " + id,
			Location: domain.Coordinates{Lat: 49.0 + float64(i)*0.01, Lng: -123.0},
			Riders: []domain.Rider{{
				ID:        "rider-" + id,
				Name:      "Rider " + id,
				Guardians: []domain.Guardian{{ID: "guardian-" + id, PushToken: "tok-" + id}},
			}},
		})
	}
	return route
}

type fakeSource struct {
	mu       sync.Mutex
	onSample func(domain.PositionSample)
}

func (f *fakeSource) Subscribe(onSample func(domain.PositionSample)) func() {
	f.mu.Lock()
	f.onSample = onSample
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.onSample = nil
			f.mu.Unlock()
		})
	}
}

func (f *fakeSource) active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.onSample != nil
}

func (f *fakeSource) push(lat, lng float64) {
	f.mu.Lock()
	cb := f.onSample
	f.mu.Unlock()
	if cb != nil {
		cb(domain.PositionSample{Coordinates: domain.Coordinates{Lat: lat, Lng: lng}, Timestamp: time.Now()})
	}
}

// fakeOracle returns a fixed answer. When gate is set, calls block until it
// is closed.
type fakeOracle struct {
	mu    sync.Mutex
	res   ports.DirectionsResult
	err   error
	gate  chan struct{}
	calls int
}

func (f *fakeOracle) set(meters, seconds int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.res = ports.DirectionsResult{DistanceMeters: meters, DurationSeconds: seconds}
}

// hold makes subsequent calls block until the returned channel is closed.
func (f *fakeOracle) hold() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	return f.gate
}

func (f *fakeOracle) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeOracle) Route(ctx context.Context, origin, destination domain.Coordinates) (ports.DirectionsResult, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ports.DirectionsResult{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.res, f.err
}

type memoryStore struct {
	mu      sync.Mutex
	records map[string]domain.StatusRecord
	writes  []domain.StatusRecord
	fail    bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[string]domain.StatusRecord{}}
}

func (m *memoryStore) WriteRouteStatus(ctx context.Context, rec domain.StatusRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("database unavailable")
	}
	m.records[rec.RouteID] = rec
	m.writes = append(m.writes, rec)
	return nil
}

func (m *memoryStore) ReadRouteStatus(ctx context.Context, routeID string) (domain.StatusRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[routeID]
	if !ok {
		return domain.StatusRecord{}, domain.ErrRouteNotFound
	}
	return rec, nil
}

func (m *memoryStore) written() []domain.StatusRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.StatusRecord(nil), m.writes...)
}

type message struct {
	token, title, body string
}

type recordingGateway struct {
	mu       sync.Mutex
	messages []message
	failFor  map[string]bool
}

func (g *recordingGateway) Send(ctx context.Context, token, title, body string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failFor[token] {
		return errors.New("push rejected")
	}
	g.messages = append(g.messages, message{token: token, title: title, body: body})
	return nil
}

func (g *recordingGateway) sent() []message {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]message(nil), g.messages...)
}

func (g *recordingGateway) countTo(token string) int {
	n := 0
	for _, m := range g.sent() {
		if m.token == token {
			n++
		}
	}
	return n
}

type memoryRepo struct {
	routes map[string]*domain.Route
}

func (r *memoryRepo) ListRoutes(ctx context.Context) ([]*domain.Route, error) {
	out := make([]*domain.Route, 0, len(r.routes))
	for _, route := range r.routes {
		out = append(out, route.Clone())
	}
	return out, nil
}

func (r *memoryRepo) GetRoute(ctx context.Context, id string) (*domain.Route, error) {
	route, ok := r.routes[id]
	if !ok {
		return nil, domain.ErrRouteNotFound
	}
	return route.Clone(), nil
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// nextEvent returns the next event of the given kind, skipping others.
func nextEvent(t *testing.T, events <-chan session.Event, kind session.EventKind) session.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event stream closed while waiting for %s", kind)
			}
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

type trackerFixture struct {
	tracker *Tracker
	source  *fakeSource
	oracle  *fakeOracle
	store   *memoryStore
	gateway *recordingGateway
}

func newTrackerFixture(t *testing.T, stops int, cfg TrackerConfig) *trackerFixture {
	t.Helper()

	sess, err := session.New(testRoute(stops))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	f := &trackerFixture{
		source:  &fakeSource{},
		oracle:  &fakeOracle{},
		store:   newMemoryStore(),
		gateway: &recordingGateway{},
	}
	f.tracker, err = NewTracker(sess, TrackerDeps{
		Source:   f.source,
		Oracle:   f.oracle,
		Store:    f.store,
		Notifier: NewNotificationDispatcher(f.gateway),
	}, cfg)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	t.Cleanup(f.tracker.Close)
	return f
}

// recordingPublisher records published event kinds. delays maps a 1-based
// call number to how long that call takes.
type recordingPublisher struct {
	mu     sync.Mutex
	calls  int
	kinds  []session.EventKind
	delays map[int]time.Duration
}

func (p *recordingPublisher) Publish(ctx context.Context, ev session.Event) error {
	p.mu.Lock()
	p.calls++
	delay := p.delays[p.calls]
	p.mu.Unlock()

	time.Sleep(delay)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.kinds = append(p.kinds, ev.Kind)
	return nil
}

func (p *recordingPublisher) published() []session.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]session.EventKind(nil), p.kinds...)
}

// blockingRepo holds GetRoute for one route id until release is closed.
type blockingRepo struct {
	memoryRepo
	blockID string
	entered chan struct{}
	release chan struct{}
}

func (r *blockingRepo) GetRoute(ctx context.Context, id string) (*domain.Route, error) {
	if id == r.blockID {
		close(r.entered)
		select {
		case <-r.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.memoryRepo.GetRoute(ctx, id)
}
