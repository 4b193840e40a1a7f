package session

import (
	"fmt"
	"testing"
	"time"

	"dropoff-route-service/internal/domain"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Add(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)}
}

func buildRoute(stops int) *domain.Route {
	route := &domain.Route{
		ID:     "R1",
		Driver: domain.Driver{ID: "d1", Name: "Driver", PushToken: "driver-token"},
	}
	for i := 0; i < stops; i++ {
		id := fmt.Sprintf("W%d", i)
		route.Waypoints = append(route.Waypoints, domain.Waypoint{
			ID:       id,
			Location: domain.Coordinates{Lat: 49.0 + float64(i)*0.01, Lng: -123.0},
			Riders: []domain.Rider{{
				ID:        "rider-" + id,
				Guardians: []domain.Guardian{{ID: "guardian-" + id, PushToken: "tok-" + id}},
			}},
		})
	}
	return route
}

func newSession(t *testing.T, stops int) (*Session, *fakeClock) {
	t.Helper()
	clock := newClock()
	s, err := New(buildRoute(stops), WithClock(clock.Now))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s, clock
}

func mustConfirm(t *testing.T, s *Session) []Effect {
	t.Helper()
	effects, err := s.ConfirmDrive()
	if err != nil {
		t.Fatalf("confirm drive: %v", err)
	}
	return effects
}

// assertSingleActive checks the ordered-stop invariant on a live route.
func assertSingleActive(t *testing.T, s *Session) {
	t.Helper()
	snap := s.Snapshot()
	for i, w := range snap.Waypoints {
		var want domain.WaypointStatus
		switch {
		case i < snap.CurrentWaypointIndex:
			want = domain.WaypointFinished
		case i == snap.CurrentWaypointIndex:
			want = domain.WaypointInProgress
		default:
			want = domain.WaypointPending
		}
		if w.Status != want {
			t.Fatalf("waypoint %d status = %s, want %s (index=%d)", i, w.Status, want, snap.CurrentWaypointIndex)
		}
	}
}

func requestFrom(t *testing.T, effects []Effect) RequestDirections {
	t.Helper()
	for _, e := range effects {
		if r, ok := e.(RequestDirections); ok {
			return r
		}
	}
	t.Fatalf("no RequestDirections effect in %v", effects)
	return RequestDirections{}
}

func countEffects[T Effect](effects []Effect) int {
	n := 0
	for _, e := range effects {
		if _, ok := e.(T); ok {
			n++
		}
	}
	return n
}

func eventKinds(effects []Effect) []EventKind {
	var kinds []EventKind
	for _, e := range effects {
		if em, ok := e.(Emit); ok {
			kinds = append(kinds, em.Event.Kind)
		}
	}
	return kinds
}

// feed pushes one sample and answers its directions request with the given metrics.
func feed(t *testing.T, s *Session, meters, seconds int) []Effect {
	t.Helper()
	req := requestFrom(t, s.ObserveSample(domain.PositionSample{
		Coordinates: domain.Coordinates{Lat: 48.9, Lng: -123.0},
	}))
	effects, applied := s.ApplyDirections(req.Ticket, ProximityResult{DistanceMeters: meters, DurationSeconds: seconds})
	if !applied {
		t.Fatalf("response for ticket %+v was discarded", req.Ticket)
	}
	return effects
}
