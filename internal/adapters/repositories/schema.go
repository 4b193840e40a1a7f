package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// InitSchema creates the route, status and cache tables if they do not exist.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createRoutesQuery := `
	CREATE TABLE IF NOT EXISTS routes (
		route_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		driver_id TEXT NOT NULL,
		driver_name TEXT NOT NULL DEFAULT '',
		driver_push_token TEXT NOT NULL DEFAULT ''
	);
	`

	createWaypointsQuery := `
	CREATE TABLE IF NOT EXISTS waypoints (
		route_id TEXT NOT NULL REFERENCES routes(route_id) ON DELETE CASCADE,
		waypoint_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		lat DOUBLE PRECISION NOT NULL,
		lng DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (route_id, waypoint_id),
		UNIQUE (route_id, position)
	);
	`

	createRidersQuery := `
	CREATE TABLE IF NOT EXISTS riders (
		route_id TEXT NOT NULL,
		waypoint_id TEXT NOT NULL,
		rider_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (route_id, rider_id),
		FOREIGN KEY (route_id, waypoint_id) REFERENCES waypoints(route_id, waypoint_id) ON DELETE CASCADE
	);
	`

	createGuardiansQuery := `
	CREATE TABLE IF NOT EXISTS guardians (
		route_id TEXT NOT NULL,
		rider_id TEXT NOT NULL,
		guardian_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		push_token TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (route_id, rider_id, guardian_id),
		FOREIGN KEY (route_id, rider_id) REFERENCES riders(route_id, rider_id) ON DELETE CASCADE
	);
	`

	createRouteStatusQuery := `
	CREATE TABLE IF NOT EXISTS route_status (
		route_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		current_destination_id TEXT NOT NULL DEFAULT '',
		depart_time TIMESTAMPTZ,
		finished_time TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL
	);
	`

	createWaypointStatusQuery := `
	CREATE TABLE IF NOT EXISTS waypoint_status (
		route_id TEXT NOT NULL REFERENCES route_status(route_id) ON DELETE CASCADE,
		waypoint_id TEXT NOT NULL,
		status TEXT NOT NULL,
		PRIMARY KEY (route_id, waypoint_id)
	);
	`

	createGeocodeCacheQuery := `
	CREATE TABLE IF NOT EXISTS geocode_cache (
		address TEXT PRIMARY KEY,
		lng DOUBLE PRECISION NOT NULL,
		lat DOUBLE PRECISION NOT NULL
	);
	`

	statements := []string{
		createRoutesQuery,
		createWaypointsQuery,
		createRidersQuery,
		createGuardiansQuery,
		createRouteStatusQuery,
		createWaypointStatusQuery,
		createGeocodeCacheQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
