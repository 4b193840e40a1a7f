package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"dropoff-route-service/internal/adapters/cache"
	"dropoff-route-service/internal/adapters/directions"
	"dropoff-route-service/internal/adapters/repositories"
	"dropoff-route-service/internal/config"
	"dropoff-route-service/internal/domain"
	"dropoff-route-service/internal/platform/db"
	"dropoff-route-service/internal/ports"
	"dropoff-route-service/internal/services"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	config.LoadEnv()

	seedPath := flag.String("seed", config.Get("SEED_PATH", "data/seeds/routes.json"), "route seed file (.json or .yaml)")
	depot := flag.String("depot", config.Get("DEPOT", ""), "lat,lng start point used when ordering stops")
	schemaOnly := flag.Bool("schema-only", false, "create tables and exit")
	flag.Parse()

	databaseURL := config.Get("DATABASE_URL", "")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	conn, err := db.Open(databaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	ctx := context.Background()

	log.Println("Initializing database schema...")
	if err := repositories.InitSchema(ctx, conn); err != nil {
		log.Fatalf("schema initialization failed: %v", err)
	}
	log.Println("Schema ready.")
	if *schemaOnly {
		return
	}

	log.Println("Seeding database...")
	if err := seed(ctx, conn, *seedPath, *depot); err != nil {
		log.Fatalf("seeding failed: %v", err)
	}
	log.Println("Seeding complete.")
}

func seed(ctx context.Context, conn *sql.DB, seedPath, depot string) error {
	seeds, err := repositories.LoadSeeds(seedPath)
	if err != nil {
		return err
	}

	var ors *directions.ORSClient
	if key := config.Get("ORS_API_KEY", ""); key != "" {
		ors, err = directions.NewORSClient(key,
			directions.WithBaseURL(config.Get("ORS_BASE_URL", "")),
			directions.WithProfile(config.Get("ORS_PROFILE", "")),
			directions.WithGeocodeCache(cache.NewSQLGeocodeCache(conn)),
		)
		if err != nil {
			return err
		}
	}

	located := map[string]domain.Coordinates{}
	if missing := repositories.MissingAddresses(seeds); len(missing) > 0 {
		if ors == nil {
			return fmt.Errorf("%d waypoints need geocoding but ORS_API_KEY is not set", len(missing))
		}
		log.Printf("Geocoding %d addresses...", len(missing))
		if located, err = ors.Geocode(ctx, missing); err != nil {
			return err
		}
	}

	var oracle ports.DirectionsOracle = directions.NewStraightLineOracle()
	if ors != nil {
		oracle = ors
	}

	routes := make([]*domain.Route, 0, len(seeds))
	for _, s := range seeds {
		route, err := s.Route(located)
		if err != nil {
			return err
		}

		if s.OrderStops {
			origin := route.Waypoints[0].Location
			if depot != "" {
				if origin, err = parseLatLng(depot); err != nil {
					return err
				}
			}
			plan, err := services.OrderStops(ctx, route, origin, time.Now(), oracle)
			if err != nil {
				return err
			}
			log.Printf("route_id=%s ordered stops=%d total_distance_m=%d total_duration_s=%d",
				route.ID, len(plan.Stops), plan.TotalDistanceMeters, plan.TotalDurationSeconds)
		}

		routes = append(routes, route)
	}

	return repositories.SaveRoutes(ctx, conn, routes)
}

func parseLatLng(s string) (domain.Coordinates, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return domain.Coordinates{}, fmt.Errorf("invalid lat,lng %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("invalid latitude in %q: %w", s, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("invalid longitude in %q: %w", s, err)
	}
	c := domain.Coordinates{Lat: lat, Lng: lng}
	return c, c.Validate()
}
