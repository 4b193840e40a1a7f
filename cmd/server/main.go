package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dropoff-route-service/internal/adapters/cache"
	"dropoff-route-service/internal/adapters/directions"
	"dropoff-route-service/internal/adapters/events"
	"dropoff-route-service/internal/adapters/notify"
	"dropoff-route-service/internal/adapters/position"
	"dropoff-route-service/internal/adapters/repositories"
	"dropoff-route-service/internal/api"
	"dropoff-route-service/internal/config"
	"dropoff-route-service/internal/platform/db"
	"dropoff-route-service/internal/platform/redisx"
	"dropoff-route-service/internal/ports"
	"dropoff-route-service/internal/services"
	"dropoff-route-service/internal/session"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

// main is the application composition root.
// It wires concrete adapters (Postgres, Redis, ORS, Expo) behind ports and starts the HTTP server.
func main() {
	config.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer sqlDB.Close()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		if rdb, err = redisx.Open(cfg.RedisURL); err != nil {
			log.Fatal(err)
		}
		defer rdb.Close()
	}

	oracle, err := newOracle(cfg, rdb)
	if err != nil {
		log.Fatal(err)
	}

	var store ports.RouteStatusStore = repositories.NewPostgresStatusStore(sqlDB)
	if cfg.StatusStore == "redis" {
		store = repositories.NewRedisStatusStore(rdb)
	}

	var gateway ports.NotificationGateway = notify.LogGateway{}
	if cfg.Notifier == "expo" {
		gateway = notify.NewExpoGateway(cfg.ExpoAccessToken)
	}

	var publisher ports.EventPublisher
	if rdb != nil {
		publisher = events.NewRedisPublisher(rdb)
	}

	repo := repositories.NewPostgresRouteRepository(sqlDB)
	hub := position.NewHub()

	trackerCfg := services.DefaultTrackerConfig()
	trackerCfg.MaxInFlightDirections = cfg.MaxInFlightDirections

	manager := services.NewSessionManager(services.SessionManagerDeps{
		Repo:      repo,
		Store:     store,
		Oracle:    oracle,
		Notifier:  services.NewNotificationDispatcher(gateway),
		Publisher: publisher,
		Sources:   func(routeID string) ports.PositionSource { return hub.Feed(routeID) },
	}, trackerCfg, session.Thresholds{
		ArrivalRadiusMeters: cfg.ArrivalRadiusMeters,
		NearDurationSeconds: cfg.NearThresholdSeconds,
	})
	defer manager.Shutdown()

	router := api.NewRouter(repo, manager, hub, healthChecks(sqlDB, rdb))

	// WriteTimeout is left unset so the event stream can stay open.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	// Closing the sessions ends open event streams, which never go idle.
	srv.RegisterOnShutdown(manager.Shutdown)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server listening addr=:%s status_store=%s notifier=%s", cfg.Port, cfg.StatusStore, cfg.Notifier)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}

// newOracle uses OpenRouteService when a key is configured and falls back
// to straight-line estimates otherwise. Answers are cached in Redis when
// available.
func newOracle(cfg *config.Config, rdb *redis.Client) (ports.DirectionsOracle, error) {
	var oracle ports.DirectionsOracle
	if cfg.ORSAPIKey != "" {
		ors, err := directions.NewORSClient(cfg.ORSAPIKey,
			directions.WithBaseURL(cfg.ORSBaseURL),
			directions.WithProfile(cfg.ORSProfile),
		)
		if err != nil {
			return nil, err
		}
		oracle = ors
	} else {
		log.Println("ORS_API_KEY not set; using straight-line directions estimates")
		oracle = directions.NewStraightLineOracle()
	}

	if rdb != nil && cfg.DirectionsCacheTTL > 0 {
		oracle = directions.NewCachedOracle(oracle, cache.NewRedisDirectionsCache(rdb, cfg.DirectionsCacheTTL))
	}
	return oracle, nil
}

func healthChecks(sqlDB *sql.DB, rdb *redis.Client) map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"db": sqlDB.PingContext,
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}
