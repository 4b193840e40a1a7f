package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"dropoff-route-service/internal/domain"
	"dropoff-route-service/internal/platform/obs"
	"dropoff-route-service/internal/ports"
	"dropoff-route-service/internal/session"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"
)

var ErrTrackerClosed = errors.New("tracker closed")

const (
	mailboxSize     = 64
	persistQueueLen = 64
	eventQueueLen   = 64
	subscriberBuf   = 32
)

type TrackerConfig struct {
	// MaxInFlightDirections bounds concurrent oracle calls. A sample that
	// arrives while the bound is reached is not evaluated; the next one is.
	MaxInFlightDirections int64
	DirectionsTimeout     time.Duration
	PersistTimeout        time.Duration
	NotifyTimeout         time.Duration
}

func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		MaxInFlightDirections: 4,
		DirectionsTimeout:     10 * time.Second,
		PersistTimeout:        5 * time.Second,
		NotifyTimeout:         10 * time.Second,
	}
}

type TrackerDeps struct {
	Source    ports.PositionSource
	Oracle    ports.DirectionsOracle
	Store     ports.RouteStatusStore
	Notifier  *NotificationDispatcher
	Publisher ports.EventPublisher // optional
}

// Stats are cumulative counters for side effects that failed or were skipped.
// Persistence failures mean durable state may lag behind the session.
type Stats struct {
	PersistFailures    int64 `json:"persist_failures"`
	OracleFailures     int64 `json:"oracle_failures"`
	DroppedEvaluations int64 `json:"dropped_evaluations"`
	DroppedSamples     int64 `json:"dropped_samples"`
	StaleResponses     int64 `json:"stale_responses"`
	DroppedEvents      int64 `json:"dropped_events"`
}

// View is a consistent read of a session for display.
type View struct {
	SessionID string
	Route     *domain.Route
	Progress  session.Progress
	Current   *domain.Waypoint
	Next      *domain.Waypoint
	Position  *domain.PositionSample
	Bearing   float64
	Proximity *session.Proximity
	Stats     Stats
}

// Tracker runs one Session: it serializes commands, position samples and
// oracle responses onto a single goroutine and executes the effects the
// session returns. Oracle calls, persistence writes and notifications run in
// the background and never block the session loop.
type Tracker struct {
	id      string
	routeID string
	sess    *session.Session
	deps    TrackerDeps
	cfg     TrackerConfig

	ctx       context.Context
	cancel    context.CancelFunc
	mailbox   chan func()
	done      chan struct{}
	inflight  *semaphore.Weighted
	persistQ  chan domain.StatusRecord
	eventQ    chan session.Event
	pubDone   chan struct{}
	bg        sync.WaitGroup
	closeOnce sync.Once

	unsubscribe func()

	subsMu  sync.Mutex
	subs    map[int]chan session.Event
	nextSub int

	persistFailures    atomic.Int64
	oracleFailures     atomic.Int64
	droppedEvaluations atomic.Int64
	droppedSamples     atomic.Int64
	staleResponses     atomic.Int64
	droppedEvents      atomic.Int64
}

// NewTracker starts the session loop and the persistence writer.
func NewTracker(sess *session.Session, deps TrackerDeps, cfg TrackerConfig) (*Tracker, error) {
	if sess == nil {
		return nil, errors.New("new tracker: session is nil")
	}
	if deps.Source == nil || deps.Oracle == nil || deps.Store == nil || deps.Notifier == nil {
		return nil, errors.New("new tracker: source, oracle, store and notifier are required")
	}
	if cfg.MaxInFlightDirections <= 0 {
		cfg.MaxInFlightDirections = DefaultTrackerConfig().MaxInFlightDirections
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		id:       uuid.NewString(),
		routeID:  sess.RouteID(),
		sess:     sess,
		deps:     deps,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		mailbox:  make(chan func(), mailboxSize),
		done:     make(chan struct{}),
		inflight: semaphore.NewWeighted(cfg.MaxInFlightDirections),
		persistQ: make(chan domain.StatusRecord, persistQueueLen),
		subs:     map[int]chan session.Event{},
	}

	go t.loop()

	t.bg.Add(1)
	go t.persistWorker()

	if deps.Publisher != nil {
		t.eventQ = make(chan session.Event, eventQueueLen)
		t.pubDone = make(chan struct{})
		go t.publishWorker()
	}

	return t, nil
}

func (t *Tracker) ID() string { return t.id }

func (t *Tracker) RouteID() string { return t.routeID }

func (t *Tracker) ConfirmDrive(ctx context.Context) error {
	return t.do(ctx, "confirm_drive", (*session.Session).ConfirmDrive)
}

func (t *Tracker) Advance(ctx context.Context) error {
	return t.do(ctx, "advance", (*session.Session).Advance)
}

func (t *Tracker) Finish(ctx context.Context) error {
	return t.do(ctx, "finish", (*session.Session).Finish)
}

func (t *Tracker) Pause(ctx context.Context) error {
	return t.do(ctx, "pause", (*session.Session).Pause)
}

// Resume resumes from the session's own PAUSED state when rec is nil,
// otherwise from the persisted record.
func (t *Tracker) Resume(ctx context.Context, rec *domain.StatusRecord) error {
	return t.do(ctx, "resume", func(s *session.Session) ([]session.Effect, error) {
		return s.Resume(rec)
	})
}

// Abort ends the session without finishing the route.
func (t *Tracker) Abort(ctx context.Context) error {
	return t.do(ctx, "abort", (*session.Session).Abort)
}

// Status returns the route status as seen by the session loop.
func (t *Tracker) Status(ctx context.Context) (domain.RouteStatus, bool, error) {
	var (
		status domain.RouteStatus
		closed bool
	)
	err := t.read(ctx, func(s *session.Session) {
		status, closed = s.Status(), s.Closed()
	})
	return status, closed, err
}

func (t *Tracker) View(ctx context.Context) (View, error) {
	var v View
	err := t.read(ctx, func(s *session.Session) {
		v = View{
			SessionID: t.id,
			Route:     s.Snapshot(),
			Progress:  s.Progress(),
			Stats:     t.Stats(),
		}
		if w, ok := s.CurrentWaypoint(); ok {
			v.Current = &w
		}
		if w, ok := s.PeekNext(); ok {
			v.Next = &w
		}
		if p, b, ok := s.LastPosition(); ok {
			v.Position = &p
			v.Bearing = b
		}
		if p, ok := s.LastProximity(); ok {
			v.Proximity = &p
		}
	})
	return v, err
}

func (t *Tracker) Stats() Stats {
	return Stats{
		PersistFailures:    t.persistFailures.Load(),
		OracleFailures:     t.oracleFailures.Load(),
		DroppedEvaluations: t.droppedEvaluations.Load(),
		DroppedSamples:     t.droppedSamples.Load(),
		StaleResponses:     t.staleResponses.Load(),
		DroppedEvents:      t.droppedEvents.Load(),
	}
}

// Subscribe returns a channel of session events. Slow subscribers miss
// events rather than stall the session. The channel is closed by cancel or
// when the tracker closes.
func (t *Tracker) Subscribe() (<-chan session.Event, func()) {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()

	ch := make(chan session.Event, subscriberBuf)
	if t.subs == nil {
		close(ch)
		return ch, func() {}
	}

	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.subsMu.Lock()
			defer t.subsMu.Unlock()
			if c, ok := t.subs[id]; ok {
				delete(t.subs, id)
				close(c)
			}
		})
	}
}

// Close stops the session loop, tears down tracking, waits for in-flight
// background work and drains pending persistence writes.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		t.cancel()
		<-t.done

		if t.unsubscribe != nil {
			t.unsubscribe()
			t.unsubscribe = nil
		}

		close(t.persistQ)
		t.bg.Wait()

		// The persistence writer may still emit, so the publisher drains last.
		if t.eventQ != nil {
			close(t.eventQ)
			<-t.pubDone
		}

		t.subsMu.Lock()
		for id, c := range t.subs {
			close(c)
			delete(t.subs, id)
		}
		t.subs = nil
		t.subsMu.Unlock()
	})
}

func (t *Tracker) loop() {
	defer close(t.done)
	for {
		select {
		case fn := <-t.mailbox:
			fn()
		case <-t.ctx.Done():
			return
		}
	}
}

func (t *Tracker) post(ctx context.Context, fn func()) error {
	select {
	case t.mailbox <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.ctx.Done():
		return ErrTrackerClosed
	}
}

func (t *Tracker) do(
	ctx context.Context,
	op string,
	cmd func(*session.Session) ([]session.Effect, error),
) (err error) {
	ctx = obs.WithRouteID(ctx, t.routeID)
	defer obs.Time(ctx, "session."+op)(&err)

	errCh := make(chan error, 1)
	if err := t.post(ctx, func() {
		// Skip commands whose caller stopped waiting.
		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}
		effects, err := cmd(t.sess)
		if err == nil {
			t.run(effects)
		}
		errCh <- err
	}); err != nil {
		return fmt.Errorf("%s route %q: %w", op, t.RouteID(), err)
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return ErrTrackerClosed
	}
}

func (t *Tracker) read(ctx context.Context, fn func(*session.Session)) error {
	ready := make(chan struct{})
	if err := t.post(ctx, func() {
		fn(t.sess)
		close(ready)
	}); err != nil {
		return err
	}

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return ErrTrackerClosed
	}
}

// onSample is called by the position source from its own goroutine.
func (t *Tracker) onSample(sample domain.PositionSample) {
	fn := func() { t.run(t.sess.ObserveSample(sample)) }
	select {
	case t.mailbox <- fn:
	case <-t.ctx.Done():
	default:
		t.droppedSamples.Inc()
		log.Printf("route_id=%s position sample dropped: session loop busy", t.RouteID())
	}
}

// run executes effects in order. It is only called on the loop goroutine.
func (t *Tracker) run(effects []session.Effect) {
	for _, e := range effects {
		switch e := e.(type) {
		case session.PersistStatus:
			t.enqueuePersist(e.Record)
		case session.StartTracking:
			if t.unsubscribe == nil {
				t.unsubscribe = t.deps.Source.Subscribe(t.onSample)
			}
		case session.StopTracking:
			if t.unsubscribe != nil {
				t.unsubscribe()
				t.unsubscribe = nil
			}
		case session.RequestDirections:
			t.requestDirections(e)
		case session.NotifyDeparture:
			t.background("notify_departure", func(ctx context.Context) error {
				return t.deps.Notifier.NotifyDeparture(ctx, e.Route)
			})
		case session.NotifyApproaching:
			t.background("notify_approaching", func(ctx context.Context) error {
				return t.deps.Notifier.NotifyApproaching(ctx, e.RouteID, e.Waypoint, e.DurationSeconds)
			})
		case session.NotifyDriverArrived:
			t.background("notify_driver_arrived", func(ctx context.Context) error {
				return t.deps.Notifier.NotifyDriverArrived(ctx, e.RouteID, e.Driver, e.Waypoint)
			})
		case session.Emit:
			t.emit(e.Event)
		default:
			log.Printf("route_id=%s unknown effect %T", t.RouteID(), e)
		}
	}
}

func (t *Tracker) requestDirections(req session.RequestDirections) {
	if !t.inflight.TryAcquire(1) {
		t.droppedEvaluations.Inc()
		log.Printf("route_id=%s waypoint_id=%s directions skipped: %d requests in flight",
			t.RouteID(), req.WaypointID, t.cfg.MaxInFlightDirections)
		return
	}

	t.bg.Add(1)
	go func() {
		defer t.bg.Done()
		defer t.inflight.Release(1)

		ctx, cancel := context.WithTimeout(obs.WithRouteID(t.ctx, t.routeID), t.cfg.DirectionsTimeout)
		defer cancel()

		res, err := t.deps.Oracle.Route(ctx, req.Origin, req.Destination)
		if err != nil {
			if t.ctx.Err() != nil {
				return
			}
			t.oracleFailures.Inc()
			log.Printf("route_id=%s waypoint_id=%s directions failed: %v", t.RouteID(), req.WaypointID, err)
			return
		}

		result := session.ProximityResult{
			DistanceMeters:  res.DistanceMeters,
			DurationSeconds: res.DurationSeconds,
			Geometry:        res.Geometry,
		}
		_ = t.post(t.ctx, func() {
			effects, applied := t.sess.ApplyDirections(req.Ticket, result)
			if !applied {
				t.staleResponses.Inc()
				return
			}
			t.run(effects)
		})
	}()
}

func (t *Tracker) enqueuePersist(rec domain.StatusRecord) {
	select {
	case t.persistQ <- rec:
	default:
		t.persistFailed(rec, errors.New("persist queue full"))
	}
}

// persistWorker writes status records in the order they were produced.
// Writes are single-attempt.
func (t *Tracker) persistWorker() {
	defer t.bg.Done()
	for rec := range t.persistQ {
		ctx, cancel := context.WithTimeout(context.Background(), t.cfg.PersistTimeout)
		err := t.deps.Store.WriteRouteStatus(ctx, rec)
		cancel()
		if err != nil {
			t.persistFailed(rec, err)
		}
	}
}

func (t *Tracker) persistFailed(rec domain.StatusRecord, err error) {
	t.persistFailures.Inc()
	log.Printf("route_id=%s status=%s destination_id=%s persist failed: %v",
		rec.RouteID, rec.Status, rec.CurrentDestinationID, err)

	t.emit(session.Event{
		Kind:       session.EventPersistFailed,
		RouteID:    rec.RouteID,
		WaypointID: rec.CurrentDestinationID,
		Error:      err.Error(),
		At:         rec.UpdatedAt,
	})
}

func (t *Tracker) background(op string, fn func(ctx context.Context) error) {
	t.bg.Add(1)
	go func() {
		defer t.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), t.cfg.NotifyTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Printf("route_id=%s op=%s err=%v", t.RouteID(), op, err)
		}
	}()
}

func (t *Tracker) emit(ev session.Event) {
	t.subsMu.Lock()
	for _, c := range t.subs {
		select {
		case c <- ev:
		default:
		}
	}
	t.subsMu.Unlock()

	if t.eventQ == nil {
		return
	}
	select {
	case t.eventQ <- ev:
	default:
		t.droppedEvents.Inc()
		log.Printf("route_id=%s event=%s publish dropped: queue full", ev.RouteID, ev.Kind)
	}
}

// publishWorker publishes events in the order they were emitted.
func (t *Tracker) publishWorker() {
	defer close(t.pubDone)
	for ev := range t.eventQ {
		ctx, cancel := context.WithTimeout(context.Background(), t.cfg.NotifyTimeout)
		err := t.deps.Publisher.Publish(ctx, ev)
		cancel()
		if err != nil {
			log.Printf("route_id=%s event=%s publish failed: %v", ev.RouteID, ev.Kind, err)
		}
	}
}
