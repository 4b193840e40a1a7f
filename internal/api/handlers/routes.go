package handlers

import (
	"net/http"

	"dropoff-route-service/internal/api/dto"
	"dropoff-route-service/internal/domain"
	"dropoff-route-service/internal/ports"
)

// RouteHandler exposes read-only route definitions.
type RouteHandler struct {
	Repo ports.RouteRepository
}

func (h *RouteHandler) List(w http.ResponseWriter, r *http.Request) {
	routes, err := h.Repo.ListRoutes(r.Context())
	if err != nil {
		writeServiceError(w, r, "list routes", err)
		return
	}

	res := dto.ListRoutesResponse{Routes: make([]dto.RouteResponse, 0, len(routes))}
	for _, route := range routes {
		res.Routes = append(res.Routes, toRouteResponse(route))
	}

	writeJSON(w, r, http.StatusOK, res)
}

func (h *RouteHandler) Get(w http.ResponseWriter, r *http.Request) {
	route, err := h.Repo.GetRoute(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, "get route", err)
		return
	}
	writeJSON(w, r, http.StatusOK, toRouteResponse(route))
}

func toRouteResponse(route *domain.Route) dto.RouteResponse {
	res := dto.RouteResponse{
		ID:                   route.ID,
		Name:                 route.Name,
		DriverName:           route.Driver.Name,
		Status:               string(route.Status),
		CurrentWaypointIndex: route.CurrentWaypointIndex,
		DepartTime:           route.DepartTime,
		FinishedTime:         route.FinishedTime,
		Waypoints:            make([]dto.WaypointResponse, 0, len(route.Waypoints)),
	}
	for _, w := range route.Waypoints {
		res.Waypoints = append(res.Waypoints, toWaypointResponse(w))
	}
	return res
}

// Push tokens are never exposed.
func toWaypointResponse(w domain.Waypoint) dto.WaypointResponse {
	res := dto.WaypointResponse{
		ID:      w.ID,
		Name:    w.Name,
		Address: w.Address,
		Lat:     w.Location.Lat,
		Lng:     w.Location.Lng,
		Status:  string(w.Status),
		Riders:  make([]dto.RiderResponse, 0, len(w.Riders)),
	}
	for _, rider := range w.Riders {
		rr := dto.RiderResponse{ID: rider.ID, Name: rider.Name, Guardians: make([]dto.GuardianResponse, 0, len(rider.Guardians))}
		for _, g := range rider.Guardians {
			rr.Guardians = append(rr.Guardians, dto.GuardianResponse{ID: g.ID, Name: g.Name})
		}
		res.Riders = append(res.Riders, rr)
	}
	return res
}
