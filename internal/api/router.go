package api

import (
	"context"
	"net/http"

	"dropoff-route-service/internal/api/handlers"
	"dropoff-route-service/internal/ports"
	"dropoff-route-service/internal/services"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(
	repo ports.RouteRepository,
	manager *services.SessionManager,
	positions handlers.PositionPublisher,
	checks map[string]func(ctx context.Context) error,
) http.Handler {
	mux := http.NewServeMux()

	healthHandler := &handlers.HealthHandler{Checks: checks}
	routeHandler := &handlers.RouteHandler{Repo: repo}
	sessionHandler := &handlers.SessionHandler{Manager: manager, Positions: positions}

	mux.HandleFunc("GET /health", healthHandler.Health)

	mux.HandleFunc("GET /routes", routeHandler.List)
	mux.HandleFunc("GET /routes/{id}", routeHandler.Get)

	mux.HandleFunc("POST /routes/{id}/session", sessionHandler.Open)
	mux.HandleFunc("DELETE /routes/{id}/session", sessionHandler.Close)
	mux.HandleFunc("POST /routes/{id}/confirm", sessionHandler.Confirm)
	mux.HandleFunc("POST /routes/{id}/advance", sessionHandler.Advance)
	mux.HandleFunc("POST /routes/{id}/finish", sessionHandler.Finish)
	mux.HandleFunc("POST /routes/{id}/pause", sessionHandler.Pause)
	mux.HandleFunc("POST /routes/{id}/resume", sessionHandler.Resume)
	mux.HandleFunc("POST /routes/{id}/positions", sessionHandler.Position)
	mux.HandleFunc("GET /routes/{id}/progress", sessionHandler.Progress)
	mux.HandleFunc("GET /routes/{id}/events", sessionHandler.Events)

	return requestIDMiddleware(loggingMiddleware(mux))
}
