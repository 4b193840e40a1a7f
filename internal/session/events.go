package session

import "time"

type EventKind string

const (
	EventDeparted      EventKind = "departed"
	EventNear          EventKind = "near"
	EventArrived       EventKind = "arrived"
	EventAdvanced      EventKind = "advanced"
	EventPaused        EventKind = "paused"
	EventResumed       EventKind = "resumed"
	EventFinished      EventKind = "finished"
	EventAborted       EventKind = "aborted"
	EventPersistFailed EventKind = "persist_failed"
)

// Event is what the UI layer sees of a session's progress.
type Event struct {
	Kind            EventKind `json:"kind"`
	RouteID         string    `json:"route_id"`
	WaypointID      string    `json:"waypoint_id,omitempty"`
	WaypointIndex   int       `json:"waypoint_index"`
	DistanceMeters  int       `json:"distance_meters,omitempty"`
	DurationSeconds int       `json:"duration_seconds,omitempty"`
	Error           string    `json:"error,omitempty"`
	At              time.Time `json:"at"`
}
