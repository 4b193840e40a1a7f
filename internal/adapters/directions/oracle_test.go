package directions

import (
	"context"
	"errors"
	"sync"
	"testing"

	"dropoff-route-service/internal/domain"
	"dropoff-route-service/internal/ports"
)

type mapDirectionsCache struct {
	mu   sync.Mutex
	data map[string]ports.DirectionsResult
}

func (m *mapDirectionsCache) Get(ctx context.Context, key string) (ports.DirectionsResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.data[key]
	return r, ok, nil
}

func (m *mapDirectionsCache) Put(ctx context.Context, key string, res ports.DirectionsResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = res
	return nil
}

func TestStraightLineOracle(t *testing.T) {
	o := &StraightLineOracle{SpeedMPS: 10}
	res, err := o.Route(context.Background(),
		domain.Coordinates{Lat: 0, Lng: 0},
		domain.Coordinates{Lat: 0, Lng: 0.01},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 0.01 degree of longitude at the equator is ~1112 m.
	if res.DistanceMeters < 1100 || res.DistanceMeters > 1125 {
		t.Fatalf("distance = %d, want about 1112", res.DistanceMeters)
	}
	if res.DurationSeconds != 112 {
		t.Fatalf("duration = %d, want 112", res.DurationSeconds)
	}
}

func TestCachedOracleSnapsOrigin(t *testing.T) {
	dest := domain.Coordinates{Lat: 49.01, Lng: -123.0}
	mock := NewMockOracle()
	mock.Set(dest, MockLeg{Meters: 900, Seconds: 120})

	o := NewCachedOracle(mock, &mapDirectionsCache{data: map[string]ports.DirectionsResult{}})
	ctx := context.Background()

	first, err := o.Route(ctx, domain.Coordinates{Lat: 49.00001, Lng: -123.00002}, dest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := o.Route(ctx, domain.Coordinates{Lat: 49.00003, Lng: -123.00001}, dest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mock.Calls() != 1 {
		t.Fatalf("oracle calls = %d, want 1", mock.Calls())
	}
	if first.DistanceMeters != second.DistanceMeters {
		t.Fatalf("cached answer differs: %d vs %d", first.DistanceMeters, second.DistanceMeters)
	}
}

func TestCachedOracleDoesNotCacheErrors(t *testing.T) {
	dest := domain.Coordinates{Lat: 49.01, Lng: -123.0}
	mock := NewMockOracle()
	mock.Set(dest, MockLeg{Err: errors.New("upstream down")})

	cache := &mapDirectionsCache{data: map[string]ports.DirectionsResult{}}
	o := NewCachedOracle(mock, cache)

	if _, err := o.Route(context.Background(), domain.Coordinates{Lat: 49, Lng: -123}, dest); err == nil {
		t.Fatalf("expected an error")
	}
	if len(cache.data) != 0 {
		t.Fatalf("errors should not be cached")
	}
}
