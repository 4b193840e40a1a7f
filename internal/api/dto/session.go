package dto

import (
	"encoding/json"
	"time"
)

type PositionRequest struct {
	Lat       *float64   `json:"lat"`
	Lng       *float64   `json:"lng"`
	Timestamp *time.Time `json:"timestamp"`
}

type PositionAccepted struct {
	Delivered int `json:"delivered"`
}

type PositionResponse struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Bearing   float64   `json:"bearing"`
	Timestamp time.Time `json:"timestamp"`
}

type ProximityResponse struct {
	WaypointID      string    `json:"waypoint_id"`
	DistanceMeters  int       `json:"distance_meters"`
	DurationSeconds int       `json:"duration_seconds"`
	Near            bool      `json:"near"`
	Arrived         bool      `json:"arrived"`
	At              time.Time `json:"at"`
}

type StatsResponse struct {
	PersistFailures    int64 `json:"persist_failures"`
	OracleFailures     int64 `json:"oracle_failures"`
	DroppedEvaluations int64 `json:"dropped_evaluations"`
	DroppedSamples     int64 `json:"dropped_samples"`
	StaleResponses     int64 `json:"stale_responses"`
	DroppedEvents      int64 `json:"dropped_events"`
}

type ProgressResponse struct {
	SessionID      string             `json:"session_id"`
	RouteID        string             `json:"route_id"`
	Status         string             `json:"status"`
	CurrentIndex   int                `json:"current_index"`
	Total          int                `json:"total"`
	ElapsedSeconds int64              `json:"elapsed_seconds"`
	Current        *WaypointResponse  `json:"current"`
	Next           *WaypointResponse  `json:"next"`
	Position       *PositionResponse  `json:"position"`
	Proximity      *ProximityResponse `json:"proximity"`
	// GeoJSON Feature of the remaining leg, when the oracle returned one.
	Path  json.RawMessage `json:"path,omitempty"`
	Stats StatsResponse   `json:"stats"`
}
