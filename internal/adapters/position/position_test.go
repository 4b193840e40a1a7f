package position

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"dropoff-route-service/internal/domain"
)

func TestFeedDelivery(t *testing.T) {
	f := NewFeed()

	var mu sync.Mutex
	var got []domain.PositionSample
	unsubscribe := f.Subscribe(func(s domain.PositionSample) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})

	if n := f.Publish(domain.PositionSample{Coordinates: domain.Coordinates{Lat: 1, Lng: 2}}); n != 1 {
		t.Fatalf("delivered to %d subscribers, want 1", n)
	}

	unsubscribe()
	unsubscribe()

	if n := f.Publish(domain.PositionSample{Coordinates: domain.Coordinates{Lat: 3, Lng: 4}}); n != 0 {
		t.Fatalf("delivered to %d subscribers after unsubscribe, want 0", n)
	}
	if len(got) != 1 || got[0].Lat != 1 {
		t.Fatalf("got %+v", got)
	}
	if last, ok := f.Last(); !ok || last.Lat != 3 {
		t.Fatalf("last = %+v, %v", last, ok)
	}
}

func TestHubFeedPerRoute(t *testing.T) {
	h := NewHub()
	if h.Feed("R1") != h.Feed("R1") {
		t.Fatalf("same route should share a feed")
	}
	if h.Feed("R1") == h.Feed("R2") {
		t.Fatalf("routes should not share feeds")
	}
}

func TestLoadTrackJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drive.json")
	content := `[{"lat":49.0,"lng":-123.0,"timestamp":"2026-01-01T08:00:00Z"},{"lat":49.001,"lng":-123.0,"timestamp":"2026-01-01T08:00:05Z"}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	samples, err := LoadTrack(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 2 || samples[1].Timestamp.Sub(samples[0].Timestamp) != 5*time.Second {
		t.Fatalf("samples = %+v", samples)
	}
}

func TestLoadTrackGeoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drive.geojson")
	content := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","geometry":{"type":"Point","coordinates":[-123.0,49.0]},"properties":{"timestamp":"2026-01-01T08:00:00Z"}},
	  {"type":"Feature","geometry":{"type":"Point","coordinates":[-123.0,49.002]},"properties":{}}
	]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	samples, err := LoadTrack(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("samples = %d, want 2", len(samples))
	}
	if samples[1].Lat != 49.002 || samples[1].Lng != -123.0 {
		t.Fatalf("second sample = %+v", samples[1].Coordinates)
	}
	if !samples[1].Timestamp.IsZero() {
		t.Fatalf("missing timestamp should stay zero")
	}
}

func TestLoadTrackRejectsBadCoordinates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drive.json")
	if err := os.WriteFile(path, []byte(`[{"lat":120,"lng":0}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTrack(path); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestReplayPublishesInOrder(t *testing.T) {
	f := NewFeed()
	var got []float64
	f.Subscribe(func(s domain.PositionSample) { got = append(got, s.Lat) })

	samples := []domain.PositionSample{
		{Coordinates: domain.Coordinates{Lat: 1}},
		{Coordinates: domain.Coordinates{Lat: 2}},
		{Coordinates: domain.Coordinates{Lat: 3}},
	}
	if err := Replay(context.Background(), f, samples, 1, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("got %v", got)
	}
}

func TestReplayStopsOnCancel(t *testing.T) {
	f := NewFeed()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	samples := []domain.PositionSample{{}, {}}
	if err := Replay(ctx, f, samples, 1, time.Hour); err == nil {
		t.Fatalf("expected a cancellation error")
	}
}
