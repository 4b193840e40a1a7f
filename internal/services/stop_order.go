package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"dropoff-route-service/internal/domain"
	"dropoff-route-service/internal/ports"
)

// PlannedStop is a waypoint with its projected arrival.
type PlannedStop struct {
	WaypointID string
	ArriveAt   time.Time
}

type StopPlan struct {
	DepartAt             time.Time
	Stops                []PlannedStop
	TotalDistanceMeters  int
	TotalDurationSeconds int
}

// OrderStops orders a route's waypoints with a greedy nearest-neighbor pass
// starting from origin, and reorders route.Waypoints in place to match.
//
// Each step picks the stop with the shortest travel duration from the
// previous one. It does not attempt global optimization. Ties go to the
// lower waypoint id so the result is deterministic.
func OrderStops(
	ctx context.Context,
	route *domain.Route,
	origin domain.Coordinates,
	departAt time.Time,
	oracle ports.DirectionsOracle,
) (*StopPlan, error) {
	if route == nil {
		return nil, errors.New("order stops: route is nil")
	}

	plan := &StopPlan{DepartAt: departAt, Stops: []PlannedStop{}}
	if len(route.Waypoints) == 0 {
		return plan, nil
	}

	remaining := make(map[string]domain.Waypoint, len(route.Waypoints))
	for _, w := range route.Waypoints {
		if _, dup := remaining[w.ID]; dup {
			return nil, fmt.Errorf("order stops: duplicate waypoint id %q", w.ID)
		}
		remaining[w.ID] = w
	}

	ordered := make([]domain.Waypoint, 0, len(route.Waypoints))
	current := origin
	currentTime := departAt

	for len(remaining) > 0 {
		var (
			best       string
			bestResult ports.DirectionsResult
		)
		minDuration := math.MaxInt64

		for id, w := range remaining {
			res, err := oracle.Route(ctx, current, w.Location)
			if err != nil {
				return nil, fmt.Errorf("order stops: leg %s -> %q: %w", current, id, err)
			}
			if res.DurationSeconds < minDuration || (res.DurationSeconds == minDuration && id < best) {
				minDuration = res.DurationSeconds
				best = id
				bestResult = res
			}
		}

		next := remaining[best]
		delete(remaining, best)

		currentTime = currentTime.Add(time.Duration(bestResult.DurationSeconds) * time.Second)
		plan.TotalDurationSeconds += bestResult.DurationSeconds
		plan.TotalDistanceMeters += bestResult.DistanceMeters
		plan.Stops = append(plan.Stops, PlannedStop{WaypointID: best, ArriveAt: currentTime})

		ordered = append(ordered, next)
		current = next.Location
	}

	route.Waypoints = ordered
	return plan, nil
}
