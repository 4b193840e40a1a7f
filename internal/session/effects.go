package session

import "dropoff-route-service/internal/domain"

// Effect is a side-effect request produced by a session command. Sessions
// never perform I/O themselves; an effect runner executes these in order.
type Effect interface {
	effect()
}

// Write the route's durable status.
type PersistStatus struct {
	Record domain.StatusRecord
}

// Subscribe to the position source.
type StartTracking struct{}

// Tear down the position source subscription.
type StopTracking struct{}

// Ask the directions oracle for the leg from the latest position to the
// active waypoint. The ticket must be handed back with the response.
type RequestDirections struct {
	Ticket      Ticket
	WaypointID  string
	Origin      domain.Coordinates
	Destination domain.Coordinates
}

// Tell every guardian on the route that the drive has started.
type NotifyDeparture struct {
	Route *domain.Route
}

// Tell the guardians of the active waypoint's riders that the vehicle is close.
type NotifyApproaching struct {
	RouteID         string
	Waypoint        domain.Waypoint
	DurationSeconds int
}

// Tell the driver that the active waypoint has been reached.
type NotifyDriverArrived struct {
	RouteID  string
	Driver   domain.Driver
	Waypoint domain.Waypoint
}

// Publish an event to UI consumers.
type Emit struct {
	Event Event
}

func (PersistStatus) effect()       {}
func (StartTracking) effect()       {}
func (StopTracking) effect()        {}
func (RequestDirections) effect()   {}
func (NotifyDeparture) effect()     {}
func (NotifyApproaching) effect()   {}
func (NotifyDriverArrived) effect() {}
func (Emit) effect()                {}
