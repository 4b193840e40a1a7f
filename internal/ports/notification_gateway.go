package ports

import "context"

// Fire-and-forget push delivery. Callers make a single attempt.
type NotificationGateway interface {
	Send(ctx context.Context, recipientToken, title, body string) error
}
