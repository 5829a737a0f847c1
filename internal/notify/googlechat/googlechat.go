// Package googlechat delivers alert events to Google Chat space webhooks.
package googlechat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/KLogicHQ/natswatch/internal/notify"
	"github.com/KLogicHQ/natswatch/internal/store"
)

// Sender posts alert events to a Google Chat webhook.
type Sender struct {
	httpClient *http.Client
}

// NewSender creates a Google Chat sender using the shared HTTP client.
func NewSender(client *http.Client) *Sender {
	return &Sender{
		httpClient: client,
	}
}

// Type returns the channel type this sender handles.
func (s *Sender) Type() string {
	return "google_chat"
}

type channelConfig struct {
	WebhookURL string `json:"webhook_url"`
}

type message struct {
	Text string `json:"text"`
}

// Send posts a text message for the event to the channel's webhook URL.
func (s *Sender) Send(ctx context.Context, channel store.Channel, event notify.Event) error {
	var cfg channelConfig
	if err := json.Unmarshal(channel.Config, &cfg); err != nil {
		return fmt.Errorf("failed to decode google chat channel config: %w", err)
	}
	if cfg.WebhookURL == "" {
		return fmt.Errorf("google chat webhook URL is required")
	}

	heading := "🔴 Alert firing"
	if event.Status == "resolved" {
		heading = "🟢 Alert resolved"
	}
	text := fmt.Sprintf("*%s: %s*\n%s\nSeverity: %s | Value: %.2f | Threshold: %.2f",
		heading, event.RuleName, event.Message, event.Severity, event.Value, event.Threshold)

	body, err := json.Marshal(message{Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal google chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send google chat notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("google chat webhook returned status %d", resp.StatusCode)
	}
	return nil
}
