package session

import (
	"fmt"

	"dropoff-route-service/internal/domain"
)

// Sequencer owns the ordered waypoint list of a route and the index of the
// active waypoint. Every waypoint before the index is FINISHED, every one
// after it is PENDING, and the one at the index is IN_PROGRESS until the
// index reaches the end of the list.
type Sequencer struct {
	route *domain.Route
}

func NewSequencer(route *domain.Route) *Sequencer {
	return &Sequencer{route: route}
}

func (s *Sequencer) Index() int { return s.route.CurrentWaypointIndex }

func (s *Sequencer) Len() int { return len(s.route.Waypoints) }

// Finished reports whether every waypoint has been advanced past.
func (s *Sequencer) Finished() bool { return s.route.CurrentWaypointIndex >= len(s.route.Waypoints) }

// Current returns the active waypoint, or false once the sequence is finished.
func (s *Sequencer) Current() (domain.Waypoint, bool) {
	w := s.current()
	if w == nil {
		return domain.Waypoint{}, false
	}
	return w.Clone(), true
}

// PeekNext returns the waypoint after the active one, or false at the last stop.
func (s *Sequencer) PeekNext() (domain.Waypoint, bool) {
	next := s.route.CurrentWaypointIndex + 1
	if next >= len(s.route.Waypoints) {
		return domain.Waypoint{}, false
	}
	return s.route.Waypoints[next].Clone(), true
}

// Activate makes waypoint i the active one and rewrites every other
// waypoint's status to match. Notification flags of the newly active
// waypoint are cleared.
func (s *Sequencer) Activate(i int) error {
	if i < 0 || i >= len(s.route.Waypoints) {
		return fmt.Errorf("activate waypoint: index %d out of range [0, %d)", i, len(s.route.Waypoints))
	}

	for j := range s.route.Waypoints {
		w := &s.route.Waypoints[j]
		switch {
		case j < i:
			w.Status = domain.WaypointFinished
		case j == i:
			w.Status = domain.WaypointInProgress
			w.NotifiedNear = false
			w.NotifiedArrived = false
		default:
			w.Status = domain.WaypointPending
		}
	}
	s.route.CurrentWaypointIndex = i

	return nil
}

// Advance finishes the active waypoint and moves the index forward by one.
// It reports whether the sequence is now finished.
func (s *Sequencer) Advance() (bool, error) {
	cur := s.current()
	if cur == nil {
		return true, domain.ErrAlreadyFinished
	}

	cur.Status = domain.WaypointFinished
	s.route.CurrentWaypointIndex++

	if s.Finished() {
		return true, nil
	}

	next := &s.route.Waypoints[s.route.CurrentWaypointIndex]
	next.Status = domain.WaypointInProgress
	next.NotifiedNear = false
	next.NotifiedArrived = false

	return false, nil
}

// Locate returns the index of the waypoint with the given id.
func (s *Sequencer) Locate(waypointID string) (int, error) {
	idx := s.route.WaypointIndex(waypointID)
	if idx < 0 {
		return -1, fmt.Errorf("locate waypoint %q in route %q: %w", waypointID, s.route.ID, domain.ErrInconsistentState)
	}
	return idx, nil
}

func (s *Sequencer) current() *domain.Waypoint {
	i := s.route.CurrentWaypointIndex
	if i < 0 || i >= len(s.route.Waypoints) {
		return nil
	}
	return &s.route.Waypoints[i]
}
