package repositories

import (
	"context"
	"errors"
	"testing"

	"dropoff-route-service/internal/domain"
)

func TestMemoryRouteRepositoryReturnsCopies(t *testing.T) {
	repo := NewMemoryRouteRepository(&domain.Route{ID: "B"}, &domain.Route{ID: "A", Waypoints: []domain.Waypoint{{ID: "W0"}}})
	ctx := context.Background()

	got, err := repo.GetRoute(ctx, "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got.Waypoints[0].ID = "mutated"

	again, _ := repo.GetRoute(ctx, "A")
	if again.Waypoints[0].ID != "W0" {
		t.Fatalf("repository state was mutated through a returned route")
	}

	list, _ := repo.ListRoutes(ctx)
	if len(list) != 2 || list[0].ID != "A" {
		t.Fatalf("list = %+v", list)
	}

	if _, err := repo.GetRoute(ctx, "Z"); !errors.Is(err, domain.ErrRouteNotFound) {
		t.Fatalf("err = %v, want ErrRouteNotFound", err)
	}
}

func TestMemoryStatusStore(t *testing.T) {
	store := NewMemoryStatusStore()
	ctx := context.Background()

	if _, err := store.ReadRouteStatus(ctx, "R1"); !errors.Is(err, domain.ErrRouteNotFound) {
		t.Fatalf("err = %v, want ErrRouteNotFound", err)
	}

	rec := domain.StatusRecord{RouteID: "R1", Status: domain.RoutePaused, CurrentDestinationID: "W3"}
	if err := store.WriteRouteStatus(ctx, rec); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := store.ReadRouteStatus(ctx, "R1")
	if err != nil || got.CurrentDestinationID != "W3" || got.Status != domain.RoutePaused {
		t.Fatalf("got %+v, err %v", got, err)
	}
}
