package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"dropoff-route-service/internal/domain"
	"dropoff-route-service/internal/ports"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// maxParallelSends bounds concurrent gateway calls for one fan-out.
const maxParallelSends = 8

// NotificationDispatcher turns session notification effects into push
// messages. Every message gets exactly one delivery attempt; failures are
// logged and counted, never retried.
type NotificationDispatcher struct {
	gateway  ports.NotificationGateway
	sent     atomic.Int64
	failures atomic.Int64
}

func NewNotificationDispatcher(gateway ports.NotificationGateway) *NotificationDispatcher {
	return &NotificationDispatcher{gateway: gateway}
}

// NotifyDeparture sends one message to every guardian on the route.
func (d *NotificationDispatcher) NotifyDeparture(ctx context.Context, route *domain.Route) error {
	title := "Drop-off started"
	body := fmt.Sprintf("%s has departed. We'll let you know when the vehicle is close.", routeLabel(route))

	return d.fanOut(ctx, route.ID, "", route.Guardians(), title, body)
}

// NotifyApproaching tells the guardians of the waypoint's riders that the
// vehicle is about durationSeconds away.
func (d *NotificationDispatcher) NotifyApproaching(
	ctx context.Context,
	routeID string,
	waypoint domain.Waypoint,
	durationSeconds int,
) error {
	minutes := (durationSeconds + 59) / 60
	if minutes < 1 {
		minutes = 1
	}

	title := "Almost there"
	body := fmt.Sprintf("%s will arrive at %s in about %d min.", riderNames(waypoint), stopLabel(waypoint), minutes)

	return d.fanOut(ctx, routeID, waypoint.ID, waypoint.Guardians(), title, body)
}

// NotifyDriverArrived tells the driver the active stop has been reached.
func (d *NotificationDispatcher) NotifyDriverArrived(
	ctx context.Context,
	routeID string,
	driver domain.Driver,
	waypoint domain.Waypoint,
) error {
	title := "Arrived at stop"
	body := fmt.Sprintf("You have arrived at %s. Drop off: %s.", stopLabel(waypoint), riderNames(waypoint))

	return d.send(ctx, routeID, waypoint.ID, driver.PushToken, title, body)
}

func (d *NotificationDispatcher) Sent() int64 { return d.sent.Load() }

func (d *NotificationDispatcher) Failures() int64 { return d.failures.Load() }

func (d *NotificationDispatcher) fanOut(
	ctx context.Context,
	routeID, waypointID string,
	guardians []domain.Guardian,
	title, body string,
) error {
	var g errgroup.Group
	g.SetLimit(maxParallelSends)

	for _, guardian := range guardians {
		token := guardian.PushToken
		g.Go(func() error {
			return d.send(ctx, routeID, waypointID, token, title, body)
		})
	}

	return g.Wait()
}

func (d *NotificationDispatcher) send(ctx context.Context, routeID, waypointID, token, title, body string) error {
	if strings.TrimSpace(token) == "" {
		log.Printf("route_id=%s waypoint_id=%s notification skipped: empty recipient token", routeID, waypointID)
		return nil
	}

	if err := d.gateway.Send(ctx, token, title, body); err != nil {
		d.failures.Inc()
		log.Printf("route_id=%s waypoint_id=%s notification failed title=%q err=%v", routeID, waypointID, title, err)
		return fmt.Errorf("send notification %q: %w", title, err)
	}

	d.sent.Inc()
	return nil
}

func routeLabel(route *domain.Route) string {
	if route.Name != "" {
		return route.Name
	}
	return "Route " + route.ID
}

func stopLabel(w domain.Waypoint) string {
	switch {
	case w.Name != "":
		return w.Name
	case w.Address != "":
		return w.Address
	default:
		return "stop " + w.ID
	}
}

func riderNames(w domain.Waypoint) string {
	names := make([]string, 0, len(w.Riders))
	for _, r := range w.Riders {
		if r.Name != "" {
			names = append(names, r.Name)
		}
	}
	if len(names) == 0 {
		return "Your rider"
	}
	return strings.Join(names, ", ")
}
