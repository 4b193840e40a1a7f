// Package session implements the drop-off route state machine.
//
// A Session owns one Route for the duration of a drive. Commands
// (ConfirmDrive, Advance, Finish, Pause, Resume, Abort) and inputs
// (ObserveSample, ApplyDirections) mutate the in-memory route and return the
// side effects the caller must run: persistence writes, notifications,
// directions requests and tracking subscription changes. A Session is not
// safe for concurrent use; exactly one goroutine drives it.
package session

import (
	"errors"
	"fmt"
	"time"

	"dropoff-route-service/internal/domain"
	"dropoff-route-service/internal/geo"
)

var ErrSessionClosed = errors.New("session closed")

type Option func(*Session)

func WithThresholds(t Thresholds) Option {
	return func(s *Session) { s.thresholds = t }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

type Session struct {
	route      *domain.Route
	seq        *Sequencer
	thresholds Thresholds
	now        func() time.Time
	closed     bool

	generation        uint64
	sampleSeq         uint64
	lastAppliedSample uint64

	lastSample    *domain.PositionSample
	lastBearing   float64
	lastProximity *Proximity
}

// Progress is the read-only view used for display.
type Progress struct {
	RouteID string
	Status  domain.RouteStatus
	Index   int
	Total   int
	Elapsed time.Duration
}

// New takes ownership of route. The route must have at least one waypoint.
func New(route *domain.Route, opts ...Option) (*Session, error) {
	if route == nil {
		return nil, errors.New("new session: route is nil")
	}
	if len(route.Waypoints) == 0 {
		return nil, fmt.Errorf("new session: route %q has no waypoints", route.ID)
	}
	if route.Status == "" {
		route.Status = domain.RouteWaitingToStart
	}
	if !route.Status.Valid() {
		return nil, fmt.Errorf("new session: route %q has unknown status %q", route.ID, route.Status)
	}

	s := &Session{
		route:      route,
		seq:        NewSequencer(route),
		thresholds: DefaultThresholds(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// ConfirmDrive starts the drive: WAITING_TO_START -> IN_PROGRESS.
func (s *Session) ConfirmDrive() ([]Effect, error) {
	if err := s.require(domain.RouteWaitingToStart); err != nil {
		return nil, fmt.Errorf("confirm drive: %w", err)
	}

	now := s.now()
	if err := s.seq.Activate(0); err != nil {
		return nil, fmt.Errorf("confirm drive: %w", err)
	}
	s.route.Status = domain.RouteInProgress
	s.route.DepartTime = &now
	s.bumpGeneration()

	return []Effect{
		PersistStatus{Record: s.statusRecord(now)},
		StartTracking{},
		NotifyDeparture{Route: s.route.Clone()},
		Emit{Event: s.event(EventDeparted, now)},
	}, nil
}

// Advance finishes the active waypoint and activates the next one. Advancing
// past the last waypoint finishes the route.
func (s *Session) Advance() ([]Effect, error) {
	if err := s.require(domain.RouteInProgress); err != nil {
		return nil, fmt.Errorf("advance: %w", err)
	}

	now := s.now()
	done, err := s.seq.Advance()
	if err != nil {
		return nil, fmt.Errorf("advance: %w", err)
	}
	s.bumpGeneration()

	effects := []Effect{Emit{Event: s.event(EventAdvanced, now)}}
	if done {
		return append(effects, s.finish(now)...), nil
	}

	return append(effects, PersistStatus{Record: s.statusRecord(now)}), nil
}

// Finish ends the drive: IN_PROGRESS -> FINISHED. Finishing before the last
// stop leaves the active waypoint IN_PROGRESS and later ones PENDING.
func (s *Session) Finish() ([]Effect, error) {
	if err := s.require(domain.RouteInProgress); err != nil {
		return nil, fmt.Errorf("finish: %w", err)
	}
	return s.finish(s.now()), nil
}

func (s *Session) finish(now time.Time) []Effect {
	s.route.Status = domain.RouteFinished
	s.route.FinishedTime = &now
	s.bumpGeneration()

	return []Effect{
		PersistStatus{Record: s.statusRecord(now)},
		StopTracking{},
		Emit{Event: s.event(EventFinished, now)},
	}
}

// Pause interrupts the drive: IN_PROGRESS -> PAUSED.
func (s *Session) Pause() ([]Effect, error) {
	if err := s.require(domain.RouteInProgress); err != nil {
		return nil, fmt.Errorf("pause: %w", err)
	}

	now := s.now()
	s.route.Status = domain.RoutePaused
	s.bumpGeneration()

	return []Effect{
		PersistStatus{Record: s.statusRecord(now)},
		StopTracking{},
		Emit{Event: s.event(EventPaused, now)},
	}, nil
}

// Resume continues an interrupted drive.
//
// With a nil record the session resumes from its own PAUSED state. With a
// persisted record the active waypoint is reconstructed from the record's
// current destination id; if that id is not in the waypoint list the resume
// fails with domain.ErrInconsistentState and the session is left unchanged.
func (s *Session) Resume(rec *domain.StatusRecord) ([]Effect, error) {
	if rec == nil {
		if err := s.require(domain.RoutePaused); err != nil {
			return nil, fmt.Errorf("resume: %w", err)
		}
		return s.resumed(s.now()), nil
	}

	if err := s.require(domain.RouteWaitingToStart, domain.RoutePaused); err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}
	if rec.RouteID != s.route.ID {
		return nil, fmt.Errorf("resume: record for route %q applied to route %q: %w", rec.RouteID, s.route.ID, domain.ErrInconsistentState)
	}

	switch rec.Status {
	case domain.RouteInProgress, domain.RoutePaused:
	case domain.RouteFinished:
		return nil, fmt.Errorf("resume: persisted route %q: %w", rec.RouteID, domain.ErrAlreadyFinished)
	default:
		return nil, fmt.Errorf("resume: persisted route %q has status %s: %w", rec.RouteID, rec.Status, domain.ErrInvalidTransition)
	}

	idx, err := s.seq.Locate(rec.CurrentDestinationID)
	if err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}

	now := s.now()
	if err := s.seq.Activate(idx); err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}
	if rec.DepartTime != nil {
		t := *rec.DepartTime
		s.route.DepartTime = &t
	} else if s.route.DepartTime == nil {
		s.route.DepartTime = &now
	}

	return s.resumed(now), nil
}

func (s *Session) resumed(now time.Time) []Effect {
	s.route.Status = domain.RouteInProgress
	s.bumpGeneration()

	return []Effect{
		PersistStatus{Record: s.statusRecord(now)},
		StartTracking{},
		Emit{Event: s.event(EventResumed, now)},
	}
}

// Abort ends the session without finishing the route. The durable status is
// left untouched so a later session can resume.
func (s *Session) Abort() ([]Effect, error) {
	if s.closed {
		return nil, fmt.Errorf("abort: %w", ErrSessionClosed)
	}

	now := s.now()
	tracking := s.route.Status == domain.RouteInProgress
	s.closed = true
	s.bumpGeneration()

	effects := make([]Effect, 0, 2)
	if tracking {
		effects = append(effects, StopTracking{})
	}
	return append(effects, Emit{Event: s.event(EventAborted, now)}), nil
}

// ObserveSample records a new position and requests a directions evaluation
// for the active leg. Samples are ignored unless the route is IN_PROGRESS.
func (s *Session) ObserveSample(sample domain.PositionSample) []Effect {
	if s.closed || s.route.Status != domain.RouteInProgress {
		return nil
	}
	cur := s.seq.current()
	if cur == nil {
		return nil
	}

	if s.lastSample != nil && s.lastSample.Coordinates != sample.Coordinates {
		s.lastBearing = geo.Bearing(s.lastSample.Coordinates, sample.Coordinates)
	} else {
		s.lastBearing = geo.Bearing(sample.Coordinates, cur.Location)
	}
	latest := sample
	s.lastSample = &latest
	s.sampleSeq++

	return []Effect{RequestDirections{
		Ticket: Ticket{
			Generation:    s.generation,
			WaypointIndex: s.seq.Index(),
			Sample:        s.sampleSeq,
		},
		WaypointID:  cur.ID,
		Origin:      sample.Coordinates,
		Destination: cur.Location,
	}}
}

// ApplyDirections feeds an oracle response back into the session. Responses
// whose ticket no longer matches the active waypoint activation are
// discarded and reported as not applied.
func (s *Session) ApplyDirections(ticket Ticket, res ProximityResult) ([]Effect, bool) {
	if s.stale(ticket) {
		return nil, false
	}
	cur := s.seq.current()
	if cur == nil {
		return nil, false
	}

	now := s.now()
	near, arrived := s.thresholds.Evaluate(res)
	s.lastAppliedSample = ticket.Sample
	s.lastProximity = &Proximity{
		ProximityResult: res,
		WaypointID:      cur.ID,
		Near:            near,
		Arrived:         arrived,
		At:              now,
	}

	var effects []Effect
	if near && !cur.NotifiedNear {
		cur.NotifiedNear = true
		ev := s.event(EventNear, now)
		ev.DistanceMeters, ev.DurationSeconds = res.DistanceMeters, res.DurationSeconds
		effects = append(effects,
			NotifyApproaching{RouteID: s.route.ID, Waypoint: cur.Clone(), DurationSeconds: res.DurationSeconds},
			Emit{Event: ev},
		)
	}
	if arrived && !cur.NotifiedArrived {
		cur.NotifiedArrived = true
		ev := s.event(EventArrived, now)
		ev.DistanceMeters, ev.DurationSeconds = res.DistanceMeters, res.DurationSeconds
		effects = append(effects,
			NotifyDriverArrived{RouteID: s.route.ID, Driver: s.route.Driver, Waypoint: cur.Clone()},
			Emit{Event: ev},
		)
	}

	return effects, true
}

func (s *Session) RouteID() string { return s.route.ID }

func (s *Session) Status() domain.RouteStatus { return s.route.Status }

func (s *Session) Closed() bool { return s.closed }

func (s *Session) Generation() uint64 { return s.generation }

// Snapshot returns a deep copy of the route.
func (s *Session) Snapshot() *domain.Route { return s.route.Clone() }

func (s *Session) CurrentWaypoint() (domain.Waypoint, bool) { return s.seq.Current() }

func (s *Session) PeekNext() (domain.Waypoint, bool) { return s.seq.PeekNext() }

// LastProximity returns the last accepted evaluation for the active waypoint.
func (s *Session) LastProximity() (Proximity, bool) {
	if s.lastProximity == nil {
		return Proximity{}, false
	}
	return *s.lastProximity, true
}

// LastPosition returns the most recent sample and the camera bearing derived from it.
func (s *Session) LastPosition() (domain.PositionSample, float64, bool) {
	if s.lastSample == nil {
		return domain.PositionSample{}, 0, false
	}
	return *s.lastSample, s.lastBearing, true
}

func (s *Session) Progress() Progress {
	p := Progress{
		RouteID: s.route.ID,
		Status:  s.route.Status,
		Index:   s.seq.Index(),
		Total:   s.seq.Len(),
	}
	if s.route.DepartTime != nil {
		end := s.now()
		if s.route.FinishedTime != nil {
			end = *s.route.FinishedTime
		}
		p.Elapsed = end.Sub(*s.route.DepartTime)
	}
	return p
}

func (s *Session) require(allowed ...domain.RouteStatus) error {
	if s.closed {
		return ErrSessionClosed
	}
	for _, st := range allowed {
		if s.route.Status == st {
			return nil
		}
	}
	if s.route.Status == domain.RouteFinished {
		return domain.ErrAlreadyFinished
	}
	return fmt.Errorf("route %q is %s: %w", s.route.ID, s.route.Status, domain.ErrInvalidTransition)
}

// bumpGeneration invalidates every directions request issued so far.
func (s *Session) bumpGeneration() {
	s.generation++
	s.lastProximity = nil
}

func (s *Session) statusRecord(now time.Time) domain.StatusRecord {
	rec := domain.StatusRecord{
		RouteID:   s.route.ID,
		Status:    s.route.Status,
		Waypoints: make([]domain.WaypointStatusRecord, 0, len(s.route.Waypoints)),
		UpdatedAt: now,
	}
	if cur := s.seq.current(); cur != nil {
		rec.CurrentDestinationID = cur.ID
	}
	if s.route.DepartTime != nil {
		t := *s.route.DepartTime
		rec.DepartTime = &t
	}
	if s.route.FinishedTime != nil {
		t := *s.route.FinishedTime
		rec.FinishedTime = &t
	}
	for _, w := range s.route.Waypoints {
		rec.Waypoints = append(rec.Waypoints, domain.WaypointStatusRecord{WaypointID: w.ID, Status: w.Status})
	}
	return rec
}

func (s *Session) event(kind EventKind, now time.Time) Event {
	ev := Event{
		Kind:          kind,
		RouteID:       s.route.ID,
		WaypointIndex: s.seq.Index(),
		At:            now,
	}
	if cur := s.seq.current(); cur != nil {
		ev.WaypointID = cur.ID
	}
	return ev
}
