package domain

import "time"

// StatusRecord is the durable shape of a route's progress. It is what the
// persistence gateway writes on every transition and reads back on resume.
type StatusRecord struct {
	RouteID              string                 `json:"route_id"`
	Status               RouteStatus            `json:"status"`
	CurrentDestinationID string                 `json:"current_destination_id,omitempty"`
	DepartTime           *time.Time             `json:"depart_time,omitempty"`
	FinishedTime         *time.Time             `json:"finished_time,omitempty"`
	Waypoints            []WaypointStatusRecord `json:"waypoints"`
	UpdatedAt            time.Time              `json:"updated_at"`
}

type WaypointStatusRecord struct {
	WaypointID string         `json:"waypoint_id"`
	Status     WaypointStatus `json:"status"`
}
