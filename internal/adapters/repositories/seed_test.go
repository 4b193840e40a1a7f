package repositories

import (
	"os"
	"path/filepath"
	"testing"

	"dropoff-route-service/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const jsonSeed = `[
  {
    "id": "R1",
    "name": "Morning",
    "driver": {"id": "d1", "name": "Dana", "push_token": "driver-token"},
    "waypoints": [
      {"id": "W0", "name": "School", "lat": 49.0, "lng": -123.0,
       "riders": [{"id": "r1", "name": "Ada", "guardians": [{"id": "g1", "push_token": "tok-1"}]}]},
      {"id": "W1", "address": "  2  Elm St "}
    ]
  }
]`

func TestLoadSeedsJSON(t *testing.T) {
	seeds, err := LoadSeeds(writeFile(t, "routes.json", jsonSeed))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seeds) != 1 || len(seeds[0].Waypoints) != 2 {
		t.Fatalf("unexpected seeds: %+v", seeds)
	}

	missing := MissingAddresses(seeds)
	if len(missing) != 1 || missing[0] != "  2  Elm St " {
		t.Fatalf("missing = %q", missing)
	}

	route, err := seeds[0].Route(map[string]domain.Coordinates{"2 Elm St": {Lat: 49.01, Lng: -123.0}})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if route.Status != domain.RouteWaitingToStart {
		t.Fatalf("status = %s, want WAITING_TO_START", route.Status)
	}
	if route.Waypoints[1].Location.Lat != 49.01 {
		t.Fatalf("geocoded waypoint location = %+v", route.Waypoints[1].Location)
	}
	if got := route.Waypoints[0].Riders[0].Guardians[0].PushToken; got != "tok-1" {
		t.Fatalf("guardian token = %q, want tok-1", got)
	}
}

func TestLoadSeedsYAML(t *testing.T) {
	content := `
- id: R2
  driver:
    id: d2
  order_stops: true
  waypoints:
    - id: A
      lat: 49.1
      lng: -123.1
`
	seeds, err := LoadSeeds(writeFile(t, "routes.yaml", content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seeds[0].OrderStops {
		t.Fatalf("order_stops not parsed")
	}
	if *seeds[0].Waypoints[0].Lng != -123.1 {
		t.Fatalf("lng = %v, want -123.1", *seeds[0].Waypoints[0].Lng)
	}
}

func TestLoadSeedsRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "no waypoints", content: `[{"id":"R1","driver":{"id":"d"},"waypoints":[]}]`},
		{name: "no location or address", content: `[{"id":"R1","driver":{"id":"d"},"waypoints":[{"id":"W0"}]}]`},
		{name: "latitude out of range", content: `[{"id":"R1","driver":{"id":"d"},"waypoints":[{"id":"W0","lat":91,"lng":0}]}]`},
		{name: "missing driver", content: `[{"id":"R1","waypoints":[{"id":"W0","lat":1,"lng":1}]}]`},
		{name: "duplicate route", content: `[{"id":"R1","driver":{"id":"d"},"waypoints":[{"id":"W0","lat":1,"lng":1}]},{"id":"R1","driver":{"id":"d"},"waypoints":[{"id":"W0","lat":1,"lng":1}]}]`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadSeeds(writeFile(t, "routes.json", tc.content)); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestSeedRouteRejectsDuplicateWaypoint(t *testing.T) {
	lat, lng := 49.0, -123.0
	seed := RouteSeed{
		ID: "R1",
		Waypoints: []WaypointSeed{
			{ID: "W0", Lat: &lat, Lng: &lng},
			{ID: "W0", Lat: &lat, Lng: &lng},
		},
	}
	if _, err := seed.Route(nil); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestSeedRouteUnresolvedAddress(t *testing.T) {
	seed := RouteSeed{ID: "R1", Waypoints: []WaypointSeed{{ID: "W0", Address: "nowhere"}}}
	if _, err := seed.Route(map[string]domain.Coordinates{}); err == nil {
		t.Fatalf("expected an error")
	}
}
