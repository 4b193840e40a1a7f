package directions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"dropoff-route-service/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *ORSClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewORSClient("test-key", WithBaseURL(srv.URL), WithProfile("driving-car"), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestORSRoute(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/directions/driving-car" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "test-key" {
			t.Errorf("missing api key header")
		}

		var req directionsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Coordinates) != 2 || req.Coordinates[0][0] != -123.0 || req.Coordinates[0][1] != 49.0 {
			t.Errorf("coordinates = %v, want [lng lat] pairs", req.Coordinates)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"routes":[{"summary":{"distance":1234.6,"duration":289.4},"geometry":"_p~iF~ps|U_ulLnnqC_mqNvxq` + "`" + `@"}]}`))
	})

	res, err := c.Route(context.Background(),
		domain.Coordinates{Lat: 49.0, Lng: -123.0},
		domain.Coordinates{Lat: 49.01, Lng: -123.0},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.DistanceMeters != 1235 {
		t.Fatalf("distance = %d, want 1235", res.DistanceMeters)
	}
	if res.DurationSeconds != 289 {
		t.Fatalf("duration = %d, want 289", res.DurationSeconds)
	}
	if len(res.Geometry) != 3 {
		t.Fatalf("geometry points = %d, want 3", len(res.Geometry))
	}
}

func TestORSRouteDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "busy", http.StatusServiceUnavailable)
	})

	_, err := c.Route(context.Background(), domain.Coordinates{Lat: 49, Lng: -123}, domain.Coordinates{Lat: 49.01, Lng: -123})
	var he *httpStatusError
	if !errors.As(err, &he) || he.Code != http.StatusServiceUnavailable {
		t.Fatalf("err = %v, want 503 status error", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestORSRouteRejectsInvalidCoordinates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected")
	})

	if _, err := c.Route(context.Background(), domain.Coordinates{Lat: 95}, domain.Coordinates{}); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestORSRouteNoRoutes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"routes":[]}`))
	})

	if _, err := c.Route(context.Background(), domain.Coordinates{Lat: 49, Lng: -123}, domain.Coordinates{Lat: 49.01, Lng: -123}); err == nil {
		t.Fatalf("expected an error")
	}
}

func TestNewORSClientRequiresKey(t *testing.T) {
	if _, err := NewORSClient(""); err == nil {
		t.Fatalf("expected an error")
	}
}
