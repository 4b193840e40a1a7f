package geo

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// DecodePolyline converts an encoded polyline string into a line string.
// Google's Encoded Polyline Algorithm Format with 1e-5 precision is what
// OpenRouteService returns by default.
func DecodePolyline(encoded string) orb.LineString {
	return DecodePolylineWithPrecision(encoded, 1e-5)
}

// DecodePolylineWithPrecision decodes a polyline with a custom precision factor.
// Points are returned in orb order: [lng, lat].
func DecodePolylineWithPrecision(encoded string, precision float64) orb.LineString {
	ls := orb.LineString{}
	index, lat, lng := 0, 0, 0

	next := func() (int, bool) {
		shift, result := 0, 0
		for {
			if index >= len(encoded) {
				return 0, false
			}
			b := int(encoded[index]) - 63
			index++
			result |= (b & 0x1f) << shift
			shift += 5
			if b < 0x20 {
				break
			}
		}
		if result&1 != 0 {
			return ^(result >> 1), true
		}
		return result >> 1, true
	}

	for index < len(encoded) {
		dLat, ok := next()
		if !ok {
			return ls
		}
		dLng, ok := next()
		if !ok {
			return ls
		}
		lat += dLat
		lng += dLng

		ls = append(ls, orb.Point{float64(lng) * precision, float64(lat) * precision})
	}

	return ls
}

// PathGeoJSON renders a path as a GeoJSON Feature for map clients.
func PathGeoJSON(path orb.LineString, props map[string]any) (json.RawMessage, error) {
	f := geojson.NewFeature(path)
	for k, v := range props {
		f.Properties[k] = v
	}

	b, err := f.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal path geojson: %w", err)
	}
	return b, nil
}
