package notify

import (
	"context"
	"log"
)

// LogGateway writes notifications to the process log instead of delivering
// them. Used for local runs and replays.
type LogGateway struct{}

func (LogGateway) Send(ctx context.Context, recipientToken, title, body string) error {
	log.Printf("notify to=%s title=%q body=%q", recipientToken, title, body)
	return nil
}
