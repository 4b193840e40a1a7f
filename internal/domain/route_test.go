package domain

import (
	"testing"
	"time"
)

func TestRouteClone(t *testing.T) {
	// build test data
	depart := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	route := &Route{
		ID:         "R1",
		Status:     RouteInProgress,
		DepartTime: &depart,
		Waypoints: []Waypoint{
			{
				ID:     "A",
				Status: WaypointInProgress,
				Riders: []Rider{{ID: "r1", Guardians: []Guardian{{ID: "g1", PushToken: "tok1"}}}},
			},
		},
	}

	clone := route.Clone()

	// mutate the clone and verify the original is untouched
	clone.Waypoints[0].Status = WaypointFinished
	clone.Waypoints[0].Riders[0].Guardians[0].PushToken = "changed"
	*clone.DepartTime = depart.Add(time.Hour)

	if route.Waypoints[0].Status != WaypointInProgress {
		t.Errorf("original waypoint status = %s, want %s", route.Waypoints[0].Status, WaypointInProgress)
	}
	if route.Waypoints[0].Riders[0].Guardians[0].PushToken != "tok1" {
		t.Errorf("original guardian token changed to %q", route.Waypoints[0].Riders[0].Guardians[0].PushToken)
	}
	if !route.DepartTime.Equal(depart) {
		t.Errorf("original depart time = %v, want %v", *route.DepartTime, depart)
	}
}

func TestRouteGuardiansDeduplicated(t *testing.T) {
	shared := Guardian{ID: "g1", PushToken: "tok1"}
	route := &Route{
		Waypoints: []Waypoint{
			{ID: "A", Riders: []Rider{{ID: "r1", Guardians: []Guardian{shared}}}},
			{ID: "B", Riders: []Rider{
				{ID: "r2", Guardians: []Guardian{shared, {ID: "g2", PushToken: "tok2"}}},
			}},
		},
	}

	got := route.Guardians()
	if len(got) != 2 {
		t.Fatalf("guardians = %d, want 2", len(got))
	}
	if got[0].ID != "g1" || got[1].ID != "g2" {
		t.Fatalf("guardians = %+v, want g1 then g2", got)
	}

	if idx := route.WaypointIndex("B"); idx != 1 {
		t.Fatalf("WaypointIndex(B) = %d, want 1", idx)
	}
	if idx := route.WaypointIndex("Z"); idx != -1 {
		t.Fatalf("WaypointIndex(Z) = %d, want -1", idx)
	}
}
