package domain

import "time"

// A single live position reported by the vehicle while tracking is active.
// Only the most recent sample is retained by a session.
type PositionSample struct {
	Coordinates
	Timestamp time.Time `json:"timestamp"`
}
