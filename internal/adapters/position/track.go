package position

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dropoff-route-service/internal/domain"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type trackPoint struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// LoadTrack reads a recorded drive. A .geojson file is a FeatureCollection
// of Point features with a "timestamp" property (RFC 3339); anything else is
// a JSON array of {lat, lng, timestamp} objects.
func LoadTrack(path string) ([]domain.PositionSample, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load track: read %q: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".geojson") {
		return decodeGeoJSONTrack(raw)
	}

	var points []trackPoint
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil, fmt.Errorf("load track: parse %q: %w", path, err)
	}

	out := make([]domain.PositionSample, 0, len(points))
	for i, p := range points {
		c := domain.Coordinates{Lat: p.Lat, Lng: p.Lng}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("load track: point %d: %w", i, err)
		}
		out = append(out, domain.PositionSample{Coordinates: c, Timestamp: p.Timestamp})
	}
	return out, nil
}

func decodeGeoJSONTrack(raw []byte) ([]domain.PositionSample, error) {
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("load track: parse geojson: %w", err)
	}

	out := make([]domain.PositionSample, 0, len(fc.Features))
	for i, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("load track: feature %d is %s, want Point", i, f.Geometry.GeoJSONType())
		}

		var ts time.Time
		if s := f.Properties.MustString("timestamp", ""); s != "" {
			if ts, err = time.Parse(time.RFC3339, s); err != nil {
				return nil, fmt.Errorf("load track: feature %d timestamp: %w", i, err)
			}
		}

		c := domain.Coordinates{Lat: pt.Lat(), Lng: pt.Lon()}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("load track: feature %d: %w", i, err)
		}
		out = append(out, domain.PositionSample{Coordinates: c, Timestamp: ts})
	}
	return out, nil
}

// Replay publishes samples to feed, waiting between samples for the
// recorded gap divided by speedup. Samples without timestamps are spaced by
// fallbackGap. Published samples are re-stamped with the current time.
func Replay(
	ctx context.Context,
	feed *Feed,
	samples []domain.PositionSample,
	speedup float64,
	fallbackGap time.Duration,
) error {
	if speedup <= 0 {
		speedup = 1
	}

	for i, s := range samples {
		if i > 0 {
			gap := fallbackGap
			prev := samples[i-1].Timestamp
			if !s.Timestamp.IsZero() && !prev.IsZero() && s.Timestamp.After(prev) {
				gap = s.Timestamp.Sub(prev)
			}
			gap = time.Duration(float64(gap) / speedup)

			timer := time.NewTimer(gap)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		feed.Publish(domain.PositionSample{Coordinates: s.Coordinates, Timestamp: time.Now()})
	}
	return nil
}
