package directions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"dropoff-route-service/internal/domain"
	"dropoff-route-service/internal/geo"
	"dropoff-route-service/internal/platform/obs"
	"dropoff-route-service/internal/ports"
)

type directionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type directionsResponse struct {
	Routes []struct {
		Summary struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"summary"`
		Geometry string `json:"geometry"`
	} `json:"routes"`
}

// Route returns the driving leg from origin to destination using the
// OpenRouteService directions endpoint.
//
// Live tracking makes one attempt per call: the next position sample is the
// retry.
func (o *ORSClient) Route(
	ctx context.Context,
	origin domain.Coordinates,
	destination domain.Coordinates,
) (_ ports.DirectionsResult, err error) {
	defer obs.Time(ctx, "ors.Route")(&err)

	if err := origin.Validate(); err != nil {
		return ports.DirectionsResult{}, fmt.Errorf("ORS route: origin: %w", err)
	}
	if err := destination.Validate(); err != nil {
		return ports.DirectionsResult{}, fmt.Errorf("ORS route: destination: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/directions/%s", o.baseURL, o.profile)

	payload, err := json.Marshal(directionsRequest{
		Coordinates: [][]float64{origin.CoordsToList(), destination.CoordsToList()},
	})
	if err != nil {
		return ports.DirectionsResult{}, fmt.Errorf("marshal directions request: %w", err)
	}

	resp, err := o.doWithRetry(ctx, 1, func() (*http.Request, error) {
		return o.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return ports.DirectionsResult{}, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	var dr directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return ports.DirectionsResult{}, fmt.Errorf("decode directions response: %w", err)
	}

	if len(dr.Routes) == 0 {
		return ports.DirectionsResult{}, errors.New("directions response contained no routes")
	}
	r := dr.Routes[0]

	// ORS returns float metrics; round to nearest integer for domain consistency.
	return ports.DirectionsResult{
		DistanceMeters:  int(math.Round(r.Summary.Distance)),
		DurationSeconds: int(math.Round(r.Summary.Duration)),
		Geometry:        geo.DecodePolyline(r.Geometry),
	}, nil
}
