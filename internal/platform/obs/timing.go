package obs

import (
	"context"
	"log"
	"time"
)

type ctxKey string

const (
	RequestIDKey ctxKey = "req_id"
	RouteIDKey   ctxKey = "route_id"
)

// WithRouteID tags ctx so timings logged under it carry the route.
func WithRouteID(ctx context.Context, routeID string) context.Context {
	return context.WithValue(ctx, RouteIDKey, routeID)
}

func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	reqID, _ := ctx.Value(RequestIDKey).(string)
	routeID, _ := ctx.Value(RouteIDKey).(string)

	return func(errp *error) {
		dur := time.Since(start)

		if errp != nil && *errp != nil {
			log.Printf("req_id=%s route_id=%s op=%s dur=%dms err=%v", reqID, routeID, name, dur.Milliseconds(), *errp)
			return
		}
		log.Printf("req_id=%s route_id=%s op=%s dur=%dms", reqID, routeID, name, dur.Milliseconds())
	}
}
