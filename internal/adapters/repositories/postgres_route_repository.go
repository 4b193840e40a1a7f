package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dropoff-route-service/internal/domain"
	"dropoff-route-service/internal/platform/obs"
)

// Postgres-backed implementation of the RouteRepository port.
type PostgresRouteRepository struct{ DB *sql.DB }

func NewPostgresRouteRepository(db *sql.DB) *PostgresRouteRepository {
	return &PostgresRouteRepository{DB: db}
}

// ListRoutes returns every stored route with its waypoints in order.
func (p *PostgresRouteRepository) ListRoutes(ctx context.Context) (_ []*domain.Route, err error) {
	defer obs.Time(ctx, "routes.List")(&err)

	if p.DB == nil {
		return nil, errors.New("postgres route repository: DB is nil")
	}

	rows, err := p.DB.QueryContext(ctx, `SELECT route_id FROM routes ORDER BY route_id;`)
	if err != nil {
		return nil, fmt.Errorf("list routes: query routes table: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("list routes: scan row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list routes: row iteration: %w", err)
	}
	rows.Close()

	routes := make([]*domain.Route, 0, len(ids))
	for _, id := range ids {
		r, err := p.load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("list routes: %w", err)
		}
		routes = append(routes, r)
	}
	return routes, nil
}

func (p *PostgresRouteRepository) GetRoute(ctx context.Context, routeID string) (_ *domain.Route, err error) {
	defer obs.Time(ctx, "routes.Get")(&err)

	if p.DB == nil {
		return nil, errors.New("postgres route repository: DB is nil")
	}
	return p.load(ctx, routeID)
}

func (p *PostgresRouteRepository) load(ctx context.Context, routeID string) (*domain.Route, error) {
	r := &domain.Route{ID: routeID, Status: domain.RouteWaitingToStart}

	err := p.DB.QueryRowContext(ctx, `
	SELECT name, driver_id, driver_name, driver_push_token
	FROM routes
	WHERE route_id = $1;
	`, routeID).Scan(&r.Name, &r.Driver.ID, &r.Driver.Name, &r.Driver.PushToken)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("route %q: %w", routeID, domain.ErrRouteNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get route %q: %w", routeID, err)
	}

	wpRows, err := p.DB.QueryContext(ctx, `
	SELECT waypoint_id, name, address, lat, lng
	FROM waypoints
	WHERE route_id = $1
	ORDER BY position;
	`, routeID)
	if err != nil {
		return nil, fmt.Errorf("get route %q: query waypoints: %w", routeID, err)
	}
	defer wpRows.Close()

	index := map[string]int{}
	for wpRows.Next() {
		w := domain.Waypoint{Status: domain.WaypointPending}
		if err := wpRows.Scan(&w.ID, &w.Name, &w.Address, &w.Location.Lat, &w.Location.Lng); err != nil {
			return nil, fmt.Errorf("get route %q: scan waypoint: %w", routeID, err)
		}
		index[w.ID] = len(r.Waypoints)
		r.Waypoints = append(r.Waypoints, w)
	}
	if err := wpRows.Err(); err != nil {
		return nil, fmt.Errorf("get route %q: waypoint iteration: %w", routeID, err)
	}

	riderRows, err := p.DB.QueryContext(ctx, `
	SELECT r.waypoint_id, r.rider_id, r.name, g.guardian_id, g.name, g.push_token
	FROM riders r
	LEFT JOIN guardians g ON g.route_id = r.route_id AND g.rider_id = r.rider_id
	WHERE r.route_id = $1
	ORDER BY r.waypoint_id, r.rider_id, g.guardian_id;
	`, routeID)
	if err != nil {
		return nil, fmt.Errorf("get route %q: query riders: %w", routeID, err)
	}
	defer riderRows.Close()

	for riderRows.Next() {
		var (
			waypointID, riderID, riderName string
			guardianID, guardianName, token sql.NullString
		)
		if err := riderRows.Scan(&waypointID, &riderID, &riderName, &guardianID, &guardianName, &token); err != nil {
			return nil, fmt.Errorf("get route %q: scan rider: %w", routeID, err)
		}

		i, ok := index[waypointID]
		if !ok {
			return nil, fmt.Errorf("get route %q: rider %q references unknown waypoint %q: %w",
				routeID, riderID, waypointID, domain.ErrInconsistentState)
		}
		w := &r.Waypoints[i]
		if n := len(w.Riders); n == 0 || w.Riders[n-1].ID != riderID {
			w.Riders = append(w.Riders, domain.Rider{ID: riderID, Name: riderName})
		}
		if guardianID.Valid {
			rider := &w.Riders[len(w.Riders)-1]
			rider.Guardians = append(rider.Guardians, domain.Guardian{
				ID:        guardianID.String,
				Name:      guardianName.String,
				PushToken: token.String,
			})
		}
	}
	if err := riderRows.Err(); err != nil {
		return nil, fmt.Errorf("get route %q: rider iteration: %w", routeID, err)
	}

	return r, nil
}
