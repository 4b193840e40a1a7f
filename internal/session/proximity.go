package session

import (
	"time"

	"dropoff-route-service/internal/domain"

	"github.com/paulmach/orb"
)

const (
	// Arrival: the vehicle is within 100 m (0.1 km) of the active waypoint.
	DefaultArrivalRadiusMeters = 100
	// Near: the vehicle is 5 minutes or less from the active waypoint.
	DefaultNearDurationSeconds = 300
)

type Thresholds struct {
	ArrivalRadiusMeters int
	NearDurationSeconds int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		ArrivalRadiusMeters: DefaultArrivalRadiusMeters,
		NearDurationSeconds: DefaultNearDurationSeconds,
	}
}

// Ticket tags a directions request with the activation it was issued for.
// Generation changes on every activation and on pause, finish and abort;
// Sample orders requests issued within one activation.
type Ticket struct {
	Generation    uint64
	WaypointIndex int
	Sample        uint64
}

// ProximityResult is the directions oracle's answer for the current leg.
type ProximityResult struct {
	DistanceMeters  int
	DurationSeconds int
	Geometry        orb.LineString
}

// Proximity is the last accepted evaluation of the active leg.
type Proximity struct {
	ProximityResult
	WaypointID string
	Near       bool
	Arrived    bool
	At         time.Time
}

// Evaluate applies the arrival and near thresholds to an oracle result.
func (t Thresholds) Evaluate(r ProximityResult) (near, arrived bool) {
	near = r.DurationSeconds <= t.NearDurationSeconds
	arrived = r.DistanceMeters <= t.ArrivalRadiusMeters
	return near, arrived
}

// stale reports whether a response for ticket must be discarded.
func (s *Session) stale(ticket Ticket) bool {
	if s.closed || s.route.Status != domain.RouteInProgress {
		return true
	}
	if ticket.Generation != s.generation || ticket.WaypointIndex != s.seq.Index() {
		return true
	}
	// A response for an older sample that lands after a newer one was applied
	// would move the displayed state backwards.
	return ticket.Sample < s.lastAppliedSample
}
