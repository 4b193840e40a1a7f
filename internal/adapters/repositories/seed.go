package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dropoff-route-service/internal/domain"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type GuardianSeed struct {
	ID        string `json:"id" yaml:"id" validate:"required"`
	Name      string `json:"name" yaml:"name"`
	PushToken string `json:"push_token" yaml:"push_token"`
}

type RiderSeed struct {
	ID        string         `json:"id" yaml:"id" validate:"required"`
	Name      string         `json:"name" yaml:"name"`
	Guardians []GuardianSeed `json:"guardians" yaml:"guardians" validate:"dive"`
}

// WaypointSeed may omit coordinates when Address is set; they are then
// resolved by geocoding before the route is stored.
type WaypointSeed struct {
	ID      string      `json:"id" yaml:"id" validate:"required"`
	Name    string      `json:"name" yaml:"name"`
	Address string      `json:"address" yaml:"address" validate:"required_without_all=Lat Lng"`
	Lat     *float64    `json:"lat" yaml:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lng     *float64    `json:"lng" yaml:"lng" validate:"omitempty,gte=-180,lte=180"`
	Riders  []RiderSeed `json:"riders" yaml:"riders" validate:"dive"`
}

type DriverSeed struct {
	ID        string `json:"id" yaml:"id" validate:"required"`
	Name      string `json:"name" yaml:"name"`
	PushToken string `json:"push_token" yaml:"push_token"`
}

type RouteSeed struct {
	ID        string         `json:"id" yaml:"id" validate:"required"`
	Name      string         `json:"name" yaml:"name"`
	Driver    DriverSeed     `json:"driver" yaml:"driver"`
	Waypoints []WaypointSeed `json:"waypoints" yaml:"waypoints" validate:"min=1,dive"`
	// OrderStops asks the seeding tool to reorder waypoints by travel time.
	OrderStops bool `json:"order_stops" yaml:"order_stops"`
}

// LoadSeeds reads route seeds from a .json, .yaml or .yml file.
func LoadSeeds(path string) ([]RouteSeed, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load seeds: read %q: %w", path, err)
	}

	var seeds []RouteSeed
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(bytes, &seeds)
	default:
		err = json.Unmarshal(bytes, &seeds)
	}
	if err != nil {
		return nil, fmt.Errorf("load seeds: parse %q: %w", path, err)
	}

	v := validator.New()
	seen := map[string]struct{}{}
	for i := range seeds {
		if err := v.Struct(&seeds[i]); err != nil {
			return nil, fmt.Errorf("load seeds: route at index %d: %w", i, err)
		}
		if _, dup := seen[seeds[i].ID]; dup {
			return nil, fmt.Errorf("load seeds: duplicate route id %q", seeds[i].ID)
		}
		seen[seeds[i].ID] = struct{}{}
	}

	return seeds, nil
}

// MissingAddresses lists the addresses of waypoints without coordinates.
func MissingAddresses(seeds []RouteSeed) []string {
	var out []string
	for _, r := range seeds {
		for _, w := range r.Waypoints {
			if w.Lat == nil || w.Lng == nil {
				out = append(out, w.Address)
			}
		}
	}
	return out
}

// Route converts a seed into a domain route. located supplies coordinates,
// keyed by whitespace-normalized address, for waypoints that have none.
func (s RouteSeed) Route(located map[string]domain.Coordinates) (*domain.Route, error) {
	route := &domain.Route{
		ID:   s.ID,
		Name: s.Name,
		Driver: domain.Driver{
			ID:        s.Driver.ID,
			Name:      s.Driver.Name,
			PushToken: s.Driver.PushToken,
		},
		Status: domain.RouteWaitingToStart,
	}

	seen := map[string]struct{}{}
	for _, w := range s.Waypoints {
		if _, dup := seen[w.ID]; dup {
			return nil, fmt.Errorf("route %q: duplicate waypoint id %q", s.ID, w.ID)
		}
		seen[w.ID] = struct{}{}

		var loc domain.Coordinates
		if w.Lat != nil && w.Lng != nil {
			loc = domain.Coordinates{Lat: *w.Lat, Lng: *w.Lng}
		} else {
			c, ok := located[strings.Join(strings.Fields(w.Address), " ")]
			if !ok {
				return nil, fmt.Errorf("route %q waypoint %q: no coordinates for address %q", s.ID, w.ID, w.Address)
			}
			loc = c
		}

		wp := domain.Waypoint{
			ID:       w.ID,
			Name:     w.Name,
			Address:  w.Address,
			Location: loc,
			Status:   domain.WaypointPending,
		}
		for _, r := range w.Riders {
			rider := domain.Rider{ID: r.ID, Name: r.Name}
			for _, g := range r.Guardians {
				rider.Guardians = append(rider.Guardians, domain.Guardian{ID: g.ID, Name: g.Name, PushToken: g.PushToken})
			}
			wp.Riders = append(wp.Riders, rider)
		}
		route.Waypoints = append(route.Waypoints, wp)
	}

	return route, nil
}

// SaveRoutes replaces the stored definition of each route.
func SaveRoutes(ctx context.Context, db *sql.DB, routes []*domain.Route) error {
	if db == nil {
		return errors.New("seed routes: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed routes: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range routes {
		if err := saveRoute(ctx, tx, r); err != nil {
			return fmt.Errorf("seed routes: route_id=%s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed routes: commit tx: %w", err)
	}

	return nil
}

func saveRoute(ctx context.Context, tx *sql.Tx, r *domain.Route) error {
	// Cascades to waypoints, riders and guardians.
	if _, err := tx.ExecContext(ctx, `DELETE FROM routes WHERE route_id = $1;`, r.ID); err != nil {
		return fmt.Errorf("delete previous definition: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO routes (route_id, name, driver_id, driver_name, driver_push_token)
	VALUES ($1, $2, $3, $4, $5);
	`, r.ID, r.Name, r.Driver.ID, r.Driver.Name, r.Driver.PushToken); err != nil {
		return fmt.Errorf("insert route: %w", err)
	}

	for pos, w := range r.Waypoints {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO waypoints (route_id, waypoint_id, position, name, address, lat, lng)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
		`, r.ID, w.ID, pos, w.Name, w.Address, w.Location.Lat, w.Location.Lng); err != nil {
			return fmt.Errorf("insert waypoint_id=%s: %w", w.ID, err)
		}

		for _, rider := range w.Riders {
			if _, err := tx.ExecContext(ctx, `
			INSERT INTO riders (route_id, waypoint_id, rider_id, name)
			VALUES ($1, $2, $3, $4);
			`, r.ID, w.ID, rider.ID, rider.Name); err != nil {
				return fmt.Errorf("insert rider_id=%s: %w", rider.ID, err)
			}

			for _, g := range rider.Guardians {
				if _, err := tx.ExecContext(ctx, `
				INSERT INTO guardians (route_id, rider_id, guardian_id, name, push_token)
				VALUES ($1, $2, $3, $4, $5);
				`, r.ID, rider.ID, g.ID, g.Name, g.PushToken); err != nil {
					return fmt.Errorf("insert guardian_id=%s: %w", g.ID, err)
				}
			}
		}
	}

	return nil
}
