// Command replay drives a seeded route through a recorded GPS track without
// a database, printing session events as JSON lines. The simulated driver
// advances as soon as each stop reports arrival.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"dropoff-route-service/internal/adapters/directions"
	"dropoff-route-service/internal/adapters/notify"
	"dropoff-route-service/internal/adapters/position"
	"dropoff-route-service/internal/adapters/repositories"
	"dropoff-route-service/internal/config"
	"dropoff-route-service/internal/domain"
	"dropoff-route-service/internal/ports"
	"dropoff-route-service/internal/services"
	"dropoff-route-service/internal/session"
)

func main() {
	config.LoadEnv()

	seedPath := flag.String("seed", config.Get("SEED_PATH", "data/seeds/routes.json"), "route seed file (.json or .yaml)")
	trackPath := flag.String("track", "", "recorded drive (.json or .geojson)")
	routeID := flag.String("route", "", "route id to drive")
	speedup := flag.Float64("speedup", 10, "replay speed multiplier")
	gap := flag.Duration("gap", 5*time.Second, "spacing for samples without timestamps")
	flag.Parse()

	if *trackPath == "" || *routeID == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *seedPath, *trackPath, *routeID, *speedup, *gap); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, seedPath, trackPath, routeID string, speedup float64, gap time.Duration) error {
	seeds, err := repositories.LoadSeeds(seedPath)
	if err != nil {
		return err
	}
	routes := make([]*domain.Route, 0, len(seeds))
	for _, s := range seeds {
		r, err := s.Route(nil)
		if err != nil {
			return err
		}
		routes = append(routes, r)
	}

	samples, err := position.LoadTrack(trackPath)
	if err != nil {
		return err
	}

	var oracle ports.DirectionsOracle = directions.NewStraightLineOracle()
	if key := config.Get("ORS_API_KEY", ""); key != "" {
		if oracle, err = directions.NewORSClient(key, directions.WithProfile(config.Get("ORS_PROFILE", ""))); err != nil {
			return err
		}
	}

	hub := position.NewHub()
	manager := services.NewSessionManager(services.SessionManagerDeps{
		Repo:     repositories.NewMemoryRouteRepository(routes...),
		Store:    repositories.NewMemoryStatusStore(),
		Oracle:   oracle,
		Notifier: services.NewNotificationDispatcher(notify.LogGateway{}),
		Sources:  func(id string) ports.PositionSource { return hub.Feed(id) },
	}, services.DefaultTrackerConfig(), session.DefaultThresholds())
	defer manager.Shutdown()

	tracker, err := manager.Open(ctx, routeID)
	if err != nil {
		return err
	}
	events, cancel := tracker.Subscribe()
	defer cancel()

	if err := tracker.ConfirmDrive(ctx); err != nil {
		return err
	}

	ctx, stopReplay := context.WithCancel(ctx)
	defer stopReplay()
	replayDone := make(chan error, 1)
	go func() { replayDone <- position.Replay(ctx, hub.Feed(routeID), samples, speedup, gap) }()

	var drain <-chan time.Time
	enc := json.NewEncoder(os.Stdout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := enc.Encode(ev); err != nil {
				return err
			}
			switch ev.Kind {
			case session.EventArrived:
				if err := tracker.Advance(ctx); err != nil {
					return err
				}
			case session.EventFinished:
				log.Printf("route_id=%s finished stats=%+v", routeID, tracker.Stats())
				return nil
			}
		case err := <-replayDone:
			replayDone = nil
			if err != nil && ctx.Err() == nil {
				return err
			}
			// Let in-flight evaluations land before giving up.
			drain = time.After(2 * time.Second)
		case <-drain:
			log.Printf("route_id=%s track exhausted before the route finished", routeID)
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}
