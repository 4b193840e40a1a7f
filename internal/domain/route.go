package domain

import "time"

type RouteStatus string

const (
	RouteWaitingToStart RouteStatus = "WAITING_TO_START"
	RouteInProgress     RouteStatus = "IN_PROGRESS"
	RoutePaused         RouteStatus = "PAUSED"
	RouteFinished       RouteStatus = "FINISHED"
)

// Valid reports whether s is one of the known route statuses.
func (s RouteStatus) Valid() bool {
	switch s {
	case RouteWaitingToStart, RouteInProgress, RoutePaused, RouteFinished:
		return true
	}
	return false
}

type WaypointStatus string

const (
	WaypointPending    WaypointStatus = "PENDING"
	WaypointInProgress WaypointStatus = "IN_PROGRESS"
	WaypointFinished   WaypointStatus = "FINISHED"
)

// A guardian receives departure and approaching notifications for a rider.
type Guardian struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PushToken string `json:"push_token"`
}

// A rider is dropped off at exactly one waypoint.
type Rider struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Guardians []Guardian `json:"guardians"`
}

// The staff member driving the route. Arrival notifications go to the driver.
type Driver struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PushToken string `json:"push_token"`
}

// Represents a single stop in the ordered drop-off sequence.
//
// NotifiedNear and NotifiedArrived are cleared together whenever the waypoint
// becomes the active waypoint and are set at most once while it stays active.
type Waypoint struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Address         string         `json:"address"`
	Location        Coordinates    `json:"location"`
	Riders          []Rider        `json:"riders"`
	Status          WaypointStatus `json:"status"`
	NotifiedNear    bool           `json:"notified_near"`
	NotifiedArrived bool           `json:"notified_arrived"`
}

// Route is the drive session aggregate: an ordered list of waypoints plus
// route-level status and the index of the active waypoint.
type Route struct {
	ID                   string      `json:"id"`
	Name                 string      `json:"name"`
	Driver               Driver      `json:"driver"`
	Status               RouteStatus `json:"status"`
	Waypoints            []Waypoint  `json:"waypoints"`
	CurrentWaypointIndex int         `json:"current_waypoint_index"`
	DepartTime           *time.Time  `json:"depart_time,omitempty"`
	FinishedTime         *time.Time  `json:"finished_time,omitempty"`
}

// Clone returns a deep copy so snapshots handed to other goroutines never
// alias the session's own state.
func (r *Route) Clone() *Route {
	if r == nil {
		return nil
	}
	out := *r
	out.Waypoints = make([]Waypoint, len(r.Waypoints))
	for i, w := range r.Waypoints {
		out.Waypoints[i] = w.Clone()
	}
	if r.DepartTime != nil {
		t := *r.DepartTime
		out.DepartTime = &t
	}
	if r.FinishedTime != nil {
		t := *r.FinishedTime
		out.FinishedTime = &t
	}
	return &out
}

func (w Waypoint) Clone() Waypoint {
	out := w
	out.Riders = make([]Rider, len(w.Riders))
	for i, r := range w.Riders {
		rc := r
		rc.Guardians = append([]Guardian(nil), r.Guardians...)
		out.Riders[i] = rc
	}
	return out
}

// WaypointIndex returns the position of the waypoint with the given id, or -1.
func (r *Route) WaypointIndex(id string) int {
	for i := range r.Waypoints {
		if r.Waypoints[i].ID == id {
			return i
		}
	}
	return -1
}

// Guardians returns every guardian of every rider on the route, deduplicated by id.
func (r *Route) Guardians() []Guardian {
	seen := map[string]struct{}{}
	out := make([]Guardian, 0)
	for _, w := range r.Waypoints {
		out = appendGuardians(out, seen, w)
	}
	return out
}

// Guardians returns the guardians of the riders dropped off at this waypoint.
func (w Waypoint) Guardians() []Guardian {
	return appendGuardians(make([]Guardian, 0), map[string]struct{}{}, w)
}

func appendGuardians(out []Guardian, seen map[string]struct{}, w Waypoint) []Guardian {
	for _, rider := range w.Riders {
		for _, g := range rider.Guardians {
			key := g.ID
			if key == "" {
				key = g.PushToken
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, g)
		}
	}
	return out
}
