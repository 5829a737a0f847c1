// Package slack delivers alert events to Slack Incoming Webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/KLogicHQ/natswatch/internal/notify"
	"github.com/KLogicHQ/natswatch/internal/store"
)

// Sender posts alert events to a Slack incoming webhook.
type Sender struct {
	httpClient *http.Client
}

// NewSender creates a Slack sender using the shared HTTP client.
func NewSender(client *http.Client) *Sender {
	return &Sender{
		httpClient: client,
	}
}

// Type returns the channel type this sender handles.
func (s *Sender) Type() string {
	return "slack"
}

type channelConfig struct {
	WebhookURL string `json:"webhook_url"`
}

type payload struct {
	Attachments []attachment `json:"attachments"`
}

type attachment struct {
	Color  string  `json:"color,omitempty"`
	Title  string  `json:"title,omitempty"`
	Text   string  `json:"text,omitempty"`
	Fields []field `json:"fields,omitempty"`
}

type field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// severityColor maps an event to a Slack attachment color. Resolved events
// are always green.
func severityColor(event notify.Event) string {
	if event.Status == "resolved" {
		return "good"
	}
	switch strings.ToLower(event.Severity) {
	case "critical":
		return "danger"
	case "warning":
		return "warning"
	default:
		return "good"
	}
}

func buildPayload(event notify.Event) payload {
	title := fmt.Sprintf("Alert firing: %s", event.RuleName)
	if event.Status == "resolved" {
		title = fmt.Sprintf("Alert resolved: %s", event.RuleName)
	}
	return payload{
		Attachments: []attachment{
			{
				Color: severityColor(event),
				Title: title,
				Text:  event.Message,
				Fields: []field{
					{Title: "Severity", Value: event.Severity, Short: true},
					{Title: "Metric", Value: event.Metric, Short: true},
					{Title: "Value", Value: fmt.Sprintf("%.2f", event.Value), Short: true},
					{Title: "Threshold", Value: fmt.Sprintf("%.2f", event.Threshold), Short: true},
				},
			},
		},
	}
}

// Send posts the event to the channel's Slack webhook URL.
func (s *Sender) Send(ctx context.Context, channel store.Channel, event notify.Event) error {
	var cfg channelConfig
	if err := json.Unmarshal(channel.Config, &cfg); err != nil {
		return fmt.Errorf("failed to decode slack channel config: %w", err)
	}
	if cfg.WebhookURL == "" {
		return fmt.Errorf("slack webhook URL is required")
	}
	if !strings.HasPrefix(cfg.WebhookURL, "http://") && !strings.HasPrefix(cfg.WebhookURL, "https://") {
		return fmt.Errorf("invalid slack webhook URL: %q", cfg.WebhookURL)
	}

	body, err := json.Marshal(buildPayload(event))
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send slack notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}
