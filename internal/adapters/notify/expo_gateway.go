package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dropoff-route-service/internal/platform/obs"
)

const defaultExpoURL = "https://exp.host/--/api/v2/push/send"

// ExpoGateway delivers push notifications through the Expo push service.
// Each Send is a single HTTP attempt.
type ExpoGateway struct {
	session     *http.Client
	endpoint    string
	accessToken string
}

type ExpoOption func(*ExpoGateway)

func WithEndpoint(u string) ExpoOption {
	return func(g *ExpoGateway) {
		if u != "" {
			g.endpoint = u
		}
	}
}

func WithHTTPClient(c *http.Client) ExpoOption {
	return func(g *ExpoGateway) { g.session = c }
}

func NewExpoGateway(accessToken string, opts ...ExpoOption) *ExpoGateway {
	g := &ExpoGateway{
		session:     &http.Client{Timeout: 10 * time.Second},
		endpoint:    defaultExpoURL,
		accessToken: accessToken,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type expoMessage struct {
	To    string `json:"to"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound,omitempty"`
}

type expoResponse struct {
	Data struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (g *ExpoGateway) Send(ctx context.Context, recipientToken, title, body string) (err error) {
	defer obs.Time(ctx, "expo.Send")(&err)

	payload, err := json.Marshal(expoMessage{To: recipientToken, Title: title, Body: body, Sound: "default"})
	if err != nil {
		return fmt.Errorf("marshal push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+g.accessToken)
	}

	resp, err := g.session.Do(req)
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("push request failed: Code %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var decoded expoResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode push response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		return fmt.Errorf("push rejected: %s: %s", decoded.Errors[0].Code, decoded.Errors[0].Message)
	}
	if decoded.Data.Status == "error" {
		return fmt.Errorf("push rejected: %s", decoded.Data.Message)
	}

	return nil
}
