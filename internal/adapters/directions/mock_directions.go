package directions

import (
	"context"
	"fmt"
	"sync"

	"dropoff-route-service/internal/domain"
	"dropoff-route-service/internal/ports"
)

// MockLeg is a canned oracle answer for a destination.
type MockLeg struct {
	Meters  int
	Seconds int
	Err     error
}

// MockOracle answers by destination, ignoring the origin. Legs can be
// replaced while a session is running to script a drive.
type MockOracle struct {
	mu    sync.Mutex
	legs  map[domain.Coordinates]MockLeg
	calls int
}

func NewMockOracle() *MockOracle {
	return &MockOracle{legs: map[domain.Coordinates]MockLeg{}}
}

func (m *MockOracle) Set(destination domain.Coordinates, leg MockLeg) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.legs[destination] = leg
}

func (m *MockOracle) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockOracle) Route(ctx context.Context, origin, destination domain.Coordinates) (ports.DirectionsResult, error) {
	m.mu.Lock()
	m.calls++
	leg, ok := m.legs[destination]
	m.mu.Unlock()

	if !ok {
		return ports.DirectionsResult{}, fmt.Errorf("missing leg %s -> %s", origin, destination)
	}
	if leg.Err != nil {
		return ports.DirectionsResult{}, leg.Err
	}

	return ports.DirectionsResult{DistanceMeters: leg.Meters, DurationSeconds: leg.Seconds}, nil
}
