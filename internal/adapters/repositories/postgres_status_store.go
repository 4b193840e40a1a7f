package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dropoff-route-service/internal/domain"
	"dropoff-route-service/internal/platform/obs"
)

// Postgres-backed implementation of the RouteStatusStore port.
type PostgresStatusStore struct{ DB *sql.DB }

func NewPostgresStatusStore(db *sql.DB) *PostgresStatusStore {
	return &PostgresStatusStore{DB: db}
}

// WriteRouteStatus upserts the route row and every waypoint row in one
// transaction.
func (p *PostgresStatusStore) WriteRouteStatus(ctx context.Context, rec domain.StatusRecord) (err error) {
	defer obs.Time(obs.WithRouteID(ctx, rec.RouteID), "status.Write")(&err)

	if p.DB == nil {
		return errors.New("postgres status store: DB is nil")
	}

	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write route status: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO route_status (route_id, status, current_destination_id, depart_time, finished_time, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (route_id) DO UPDATE
	SET status = EXCLUDED.status,
		current_destination_id = EXCLUDED.current_destination_id,
		depart_time = EXCLUDED.depart_time,
		finished_time = EXCLUDED.finished_time,
		updated_at = EXCLUDED.updated_at;
	`, rec.RouteID, string(rec.Status), rec.CurrentDestinationID,
		nullTime(rec.DepartTime), nullTime(rec.FinishedTime), rec.UpdatedAt); err != nil {
		return fmt.Errorf("write route status: upsert route_id=%s: %w", rec.RouteID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO waypoint_status (route_id, waypoint_id, status)
	VALUES ($1, $2, $3)
	ON CONFLICT (route_id, waypoint_id) DO UPDATE
	SET status = EXCLUDED.status;
	`)
	if err != nil {
		return fmt.Errorf("write route status: prepare: %w", err)
	}
	defer stmt.Close()

	for _, w := range rec.Waypoints {
		if _, err := stmt.ExecContext(ctx, rec.RouteID, w.WaypointID, string(w.Status)); err != nil {
			return fmt.Errorf("write route status: waypoint_id=%s: %w", w.WaypointID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write route status: commit tx: %w", err)
	}
	return nil
}

func (p *PostgresStatusStore) ReadRouteStatus(ctx context.Context, routeID string) (_ domain.StatusRecord, err error) {
	defer obs.Time(obs.WithRouteID(ctx, routeID), "status.Read")(&err)

	if p.DB == nil {
		return domain.StatusRecord{}, errors.New("postgres status store: DB is nil")
	}

	rec := domain.StatusRecord{RouteID: routeID}
	var (
		status           string
		depart, finished sql.NullTime
	)
	err = p.DB.QueryRowContext(ctx, `
	SELECT status, current_destination_id, depart_time, finished_time, updated_at
	FROM route_status
	WHERE route_id = $1;
	`, routeID).Scan(&status, &rec.CurrentDestinationID, &depart, &finished, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StatusRecord{}, fmt.Errorf("route status %q: %w", routeID, domain.ErrRouteNotFound)
	}
	if err != nil {
		return domain.StatusRecord{}, fmt.Errorf("read route status %q: %w", routeID, err)
	}

	rec.Status = domain.RouteStatus(status)
	if !rec.Status.Valid() {
		return domain.StatusRecord{}, fmt.Errorf("read route status %q: unknown status %q: %w", routeID, status, domain.ErrInconsistentState)
	}
	if depart.Valid {
		t := depart.Time
		rec.DepartTime = &t
	}
	if finished.Valid {
		t := finished.Time
		rec.FinishedTime = &t
	}

	rows, err := p.DB.QueryContext(ctx, `
	SELECT ws.waypoint_id, ws.status
	FROM waypoint_status ws
	LEFT JOIN waypoints w ON w.route_id = ws.route_id AND w.waypoint_id = ws.waypoint_id
	WHERE ws.route_id = $1
	ORDER BY w.position NULLS LAST, ws.waypoint_id;
	`, routeID)
	if err != nil {
		return domain.StatusRecord{}, fmt.Errorf("read route status %q: query waypoints: %w", routeID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var w domain.WaypointStatusRecord
		var ws string
		if err := rows.Scan(&w.WaypointID, &ws); err != nil {
			return domain.StatusRecord{}, fmt.Errorf("read route status %q: scan waypoint: %w", routeID, err)
		}
		w.Status = domain.WaypointStatus(ws)
		rec.Waypoints = append(rec.Waypoints, w)
	}
	if err := rows.Err(); err != nil {
		return domain.StatusRecord{}, fmt.Errorf("read route status %q: waypoint iteration: %w", routeID, err)
	}

	return rec, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
