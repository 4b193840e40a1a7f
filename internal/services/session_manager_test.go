package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"dropoff-route-service/internal/domain"
	"dropoff-route-service/internal/ports"
	"dropoff-route-service/internal/session"
)

type managerFixture struct {
	manager *SessionManager
	store   *memoryStore
	source  *fakeSource
}

func newManagerFixture(t *testing.T, stops int) *managerFixture {
	t.Helper()

	f := &managerFixture{store: newMemoryStore(), source: &fakeSource{}}
	f.manager = NewSessionManager(SessionManagerDeps{
		Repo:     &memoryRepo{routes: map[string]*domain.Route{"R1": testRoute(stops)}},
		Store:    f.store,
		Oracle:   &fakeOracle{},
		Notifier: NewNotificationDispatcher(&recordingGateway{}),
		Sources:  func(string) ports.PositionSource { return f.source },
	}, DefaultTrackerConfig(), session.DefaultThresholds())
	t.Cleanup(f.manager.Shutdown)
	return f
}

func TestSessionManagerOpenRejectsSecondLiveSession(t *testing.T) {
	f := newManagerFixture(t, 2)
	ctx := context.Background()

	if _, err := f.manager.Open(ctx, "R1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	_, err := f.manager.Open(ctx, "R1")
	if !errors.Is(err, ErrSessionActive) {
		t.Fatalf("second open = %v, want ErrSessionActive", err)
	}
}

func TestSessionManagerOpenUnknownRoute(t *testing.T) {
	f := newManagerFixture(t, 2)

	_, err := f.manager.Open(context.Background(), "nope")
	if !errors.Is(err, domain.ErrRouteNotFound) {
		t.Fatalf("open = %v, want ErrRouteNotFound", err)
	}
}

func TestSessionManagerResumeFromPersistedStatus(t *testing.T) {
	f := newManagerFixture(t, 4)
	ctx := context.Background()

	depart := time.Date(2026, 1, 1, 7, 45, 0, 0, time.UTC)
	_ = f.store.WriteRouteStatus(ctx, domain.StatusRecord{
		RouteID:              "R1",
		Status:               domain.RouteInProgress,
		CurrentDestinationID: "W2",
		DepartTime:           &depart,
	})

	tracker, err := f.manager.Resume(ctx, "R1")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}

	v, err := tracker.View(ctx)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if v.Current == nil || v.Current.ID != "W2" {
		t.Fatalf("current = %+v, want W2", v.Current)
	}
	if v.Progress.Index != 2 {
		t.Fatalf("index = %d, want 2", v.Progress.Index)
	}
	if v.Route.DepartTime == nil || !v.Route.DepartTime.Equal(depart) {
		t.Fatalf("depart time = %v, want %v", v.Route.DepartTime, depart)
	}
	if !f.source.active() {
		t.Fatalf("tracking should be running after resume")
	}
}

func TestSessionManagerResumeWithoutPersistedStatus(t *testing.T) {
	f := newManagerFixture(t, 2)

	_, err := f.manager.Resume(context.Background(), "R1")
	if !errors.Is(err, domain.ErrRouteNotFound) {
		t.Fatalf("resume = %v, want ErrRouteNotFound", err)
	}
}

func TestSessionManagerResumePausedSession(t *testing.T) {
	f := newManagerFixture(t, 2)
	ctx := context.Background()

	tracker, err := f.manager.Open(ctx, "R1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := tracker.ConfirmDrive(ctx); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := tracker.Pause(ctx); err != nil {
		t.Fatalf("pause: %v", err)
	}

	resumed, err := f.manager.Resume(ctx, "R1")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed != tracker {
		t.Fatalf("resume should continue the existing session")
	}

	status, _, err := resumed.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != domain.RouteInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS", status)
	}
}

func TestSessionManagerCloseThenReopen(t *testing.T) {
	f := newManagerFixture(t, 2)
	ctx := context.Background()

	tracker, err := f.manager.Open(ctx, "R1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := tracker.ConfirmDrive(ctx); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if err := f.manager.Close(ctx, "R1"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if f.source.active() {
		t.Fatalf("tracking should stop when the session is closed")
	}
	if _, err := f.manager.Get("R1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("get after close = %v, want ErrNoSession", err)
	}
	if err := f.manager.Close(ctx, "R1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("second close = %v, want ErrNoSession", err)
	}

	if _, err := f.manager.Open(ctx, "R1"); err != nil {
		t.Fatalf("reopen: %v", err)
	}
}

func TestSessionManagerGetNotBlockedBySlowOpen(t *testing.T) {
	repo := &blockingRepo{
		memoryRepo: memoryRepo{routes: map[string]*domain.Route{
			"R1":   testRoute(2),
			"SLOW": testRoute(2),
		}},
		blockID: "SLOW",
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	manager := NewSessionManager(SessionManagerDeps{
		Repo:     repo,
		Store:    newMemoryStore(),
		Oracle:   &fakeOracle{},
		Notifier: NewNotificationDispatcher(&recordingGateway{}),
		Sources:  func(string) ports.PositionSource { return &fakeSource{} },
	}, DefaultTrackerConfig(), session.DefaultThresholds())
	t.Cleanup(manager.Shutdown)

	ctx := context.Background()
	if _, err := manager.Open(ctx, "R1"); err != nil {
		t.Fatalf("open R1: %v", err)
	}

	opened := make(chan error, 1)
	go func() {
		_, err := manager.Open(ctx, "SLOW")
		opened <- err
	}()
	<-repo.entered

	got := make(chan error, 1)
	go func() {
		_, err := manager.Get("R1")
		got <- err
	}()
	select {
	case err := <-got:
		if err != nil {
			t.Fatalf("get R1: %v", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("get R1 waited on another route's open")
	}

	close(repo.release)
	if err := <-opened; err != nil {
		t.Fatalf("open SLOW: %v", err)
	}
}

func TestSessionManagerShutdownEndsSubscriptions(t *testing.T) {
	f := newManagerFixture(t, 2)

	tracker, err := f.manager.Open(context.Background(), "R1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	events, cancel := tracker.Subscribe()
	defer cancel()

	f.manager.Shutdown()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatalf("unexpected event after shutdown")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("event stream still open after shutdown")
	}
	if _, err := f.manager.Get("R1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("get after shutdown = %v, want ErrNoSession", err)
	}
}
