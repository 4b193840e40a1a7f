package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"dropoff-route-service/internal/api/dto"
	"dropoff-route-service/internal/domain"
	"dropoff-route-service/internal/geo"
	"dropoff-route-service/internal/services"
)

// PositionPublisher routes a live position sample to a route's session.
type PositionPublisher interface {
	Publish(routeID string, sample domain.PositionSample) int
}

// SessionHandler drives route sessions: open/close, the driver's commands,
// position ingestion and progress reads.
type SessionHandler struct {
	Manager   *services.SessionManager
	Positions PositionPublisher
}

func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	t, err := h.Manager.Open(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "open session", err)
		return
	}
	h.writeProgress(w, r, t, http.StatusCreated)
}

func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.Manager.Close(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, "close session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, "confirm drive", (*services.Tracker).ConfirmDrive)
}

func (h *SessionHandler) Advance(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, "advance", (*services.Tracker).Advance)
}

func (h *SessionHandler) Finish(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, "finish", (*services.Tracker).Finish)
}

func (h *SessionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, "pause", (*services.Tracker).Pause)
}

func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	t, err := h.Manager.Resume(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "resume", err)
		return
	}
	h.writeProgress(w, r, t, http.StatusOK)
}

func (h *SessionHandler) Progress(w http.ResponseWriter, r *http.Request) {
	t, err := h.Manager.Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "progress", err)
		return
	}
	h.writeProgress(w, r, t, http.StatusOK)
}

// Position accepts a live sample for the route. Samples for routes without a
// tracking session are accepted and dropped.
func (h *SessionHandler) Position(w http.ResponseWriter, r *http.Request) {
	var req dto.PositionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeError(w, r, http.StatusBadRequest, "lat and lng are required")
		return
	}

	sample := domain.PositionSample{
		Coordinates: domain.Coordinates{Lat: *req.Lat, Lng: *req.Lng},
		Timestamp:   time.Now(),
	}
	if err := sample.Coordinates.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Timestamp != nil {
		sample.Timestamp = *req.Timestamp
	}

	n := h.Positions.Publish(r.PathValue("id"), sample)
	writeJSON(w, r, http.StatusAccepted, dto.PositionAccepted{Delivered: n})
}

// Events streams session events as server-sent events until the client
// disconnects or the session closes.
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	t, err := h.Manager.Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "events", err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, cancel := t.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			raw, err := json.Marshal(ev)
			if err != nil {
				log.Printf("event encode failed route_id=%s: %v", ev.RouteID, err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, raw); err != nil {
				log.Printf("event stream write failed route_id=%s: %v", ev.RouteID, err)
				return
			}
			flusher.Flush()
		}
	}
}

func (h *SessionHandler) command(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	cmd func(*services.Tracker, context.Context) error,
) {
	t, err := h.Manager.Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	if err := cmd(t, r.Context()); err != nil {
		writeServiceError(w, r, op, err)
		return
	}
	h.writeProgress(w, r, t, http.StatusOK)
}

func (h *SessionHandler) writeProgress(w http.ResponseWriter, r *http.Request, t *services.Tracker, status int) {
	v, err := t.View(r.Context())
	if err != nil {
		writeServiceError(w, r, "progress", err)
		return
	}

	res := dto.ProgressResponse{
		SessionID:      v.SessionID,
		RouteID:        v.Progress.RouteID,
		Status:         string(v.Progress.Status),
		CurrentIndex:   v.Progress.Index,
		Total:          v.Progress.Total,
		ElapsedSeconds: int64(v.Progress.Elapsed / time.Second),
		Stats:          dto.StatsResponse(v.Stats),
	}
	if v.Current != nil {
		c := toWaypointResponse(*v.Current)
		res.Current = &c
	}
	if v.Next != nil {
		n := toWaypointResponse(*v.Next)
		res.Next = &n
	}
	if v.Position != nil {
		res.Position = &dto.PositionResponse{
			Lat:       v.Position.Lat,
			Lng:       v.Position.Lng,
			Bearing:   v.Bearing,
			Timestamp: v.Position.Timestamp,
		}
	}
	if p := v.Proximity; p != nil {
		res.Proximity = &dto.ProximityResponse{
			WaypointID:      p.WaypointID,
			DistanceMeters:  p.DistanceMeters,
			DurationSeconds: p.DurationSeconds,
			Near:            p.Near,
			Arrived:         p.Arrived,
			At:              p.At,
		}
		if len(p.Geometry) > 1 {
			path, err := geo.PathGeoJSON(p.Geometry, map[string]any{"waypoint_id": p.WaypointID})
			if err != nil {
				log.Printf("route_id=%s path encode failed: %v", v.Progress.RouteID, err)
			} else {
				res.Path = path
			}
		}
	}

	writeJSON(w, r, status, res)
}
