package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/goalsmith/goalsmith/internal/core/services"
)

// WebhookMessenger delivers outbound messages by POSTing them to a
// chat-bridge webhook. Delivery is best-effort from the caller's point
// of view; callers log failures and move on.
type WebhookMessenger struct {
	url    string
	client *http.Client
}

func NewWebhookMessenger(url string) *WebhookMessenger {
	return &WebhookMessenger{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (m *WebhookMessenger) Send(ctx context.Context, msg services.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("webhook: encoding message failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: building request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: delivery failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: delivery rejected with status %d", resp.StatusCode)
	}

	return nil
}

// LogMessenger is the fallback transport when no webhook is
// configured. Messages land in the service log instead of a chat.
type LogMessenger struct{}

func (LogMessenger) Send(_ context.Context, msg services.Message) error {
	log.Printf("message for %s: %s (%d buttons)", msg.Owner, msg.Text, len(msg.Buttons))
	return nil
}
