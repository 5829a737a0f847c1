// Package webhook delivers alert events by HTTP POST with a JSON envelope.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/KLogicHQ/natswatch/internal/notify"
	"github.com/KLogicHQ/natswatch/internal/store"
)

// Sender posts alert events to a configured URL.
type Sender struct {
	httpClient *http.Client
}

// NewSender creates a webhook sender using the shared HTTP client.
func NewSender(client *http.Client) *Sender {
	return &Sender{
		httpClient: client,
	}
}

// Type returns the channel type this sender handles.
func (s *Sender) Type() string {
	return "webhook"
}

type channelConfig struct {
	URL string `json:"url"`
}

// envelope is the wire format posted to the webhook.
type envelope struct {
	Rule        string  `json:"rule"`
	Severity    string  `json:"severity"`
	Status      string  `json:"status"`
	MetricValue float64 `json:"metric_value"`
	Threshold   float64 `json:"threshold"`
	Message     string  `json:"message"`
	Timestamp   string  `json:"timestamp"`
}

func isValidURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Send posts the event envelope to the channel's URL. Non-2xx responses
// are errors.
func (s *Sender) Send(ctx context.Context, channel store.Channel, event notify.Event) error {
	var cfg channelConfig
	if err := json.Unmarshal(channel.Config, &cfg); err != nil {
		return fmt.Errorf("failed to decode webhook channel config: %w", err)
	}
	if cfg.URL == "" {
		return fmt.Errorf("webhook URL is required")
	}
	if !isValidURL(cfg.URL) {
		return fmt.Errorf("invalid webhook URL: %q", cfg.URL)
	}

	body, err := json.Marshal(envelope{
		Rule:        event.RuleName,
		Severity:    event.Severity,
		Status:      event.Status,
		MetricValue: event.Value,
		Threshold:   event.Threshold,
		Message:     event.Message,
		Timestamp:   event.At.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
