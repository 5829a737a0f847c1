// Package teams delivers alert events to Microsoft Teams incoming webhooks
// using the MessageCard format.
package teams

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

// Sender posts alert events to a Teams incoming webhook.
type Sender struct {
	httpClient *http.Client
}

// NewSender creates a Teams sender using the shared HTTP client.
func NewSender(client *http.Client) *Sender {
	return &Sender{
		httpClient: client,
	}
}

// Type returns the channel type this sender handles.
func (s *Sender) Type() string {
	return "teams"
}

type channelConfig struct {
	WebhookURL string `json:"webhook_url"`
}

type messageCard struct {
	Type       string    `json:"@type"`
	Context    string    `json:"@context"`
	ThemeColor string    `json:"themeColor"`
	Summary    string    `json:"summary"`
	Title      string    `json:"title"`
	Sections   []section `json:"sections"`
}

type section struct {
	Facts []fact `json:"facts"`
	Text  string `json:"text,omitempty"`
}

type fact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func themeColor(event notify.Event) string {
	if event.Status == "resolved" {
		return "2EB886"
	}
	switch strings.ToLower(event.Severity) {
	case "critical":
		return "CC0000"
	case "warning":
		return "FFA500"
	default:
		return "2EB886"
	}
}

// Send posts a MessageCard for the event to the channel's webhook URL.
func (s *Sender) Send(ctx context.Context, channel store.Channel, event notify.Event) error {
	var cfg channelConfig
	if err := json.Unmarshal(channel.Config, &cfg); err != nil {
		return fmt.Errorf("failed to decode teams channel config: %w", err)
	}
	if cfg.WebhookURL == "" {
		return fmt.Errorf("teams webhook URL is required")
	}

	title := fmt.Sprintf("Alert firing: %s", event.RuleName)
	if event.Status == "resolved" {
		title = fmt.Sprintf("Alert resolved: %s", event.RuleName)
	}

	card := messageCard{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		ThemeColor: themeColor(event),
		Summary:    title,
		Title:      title,
		Sections: []section{
			{
				Facts: []fact{
					{Name: "Severity", Value: event.Severity},
					{Name: "Metric", Value: event.Metric},
					{Name: "Value", Value: fmt.Sprintf("%.2f", event.Value)},
					{Name: "Threshold", Value: fmt.Sprintf("%.2f", event.Threshold)},
				},
				Text: event.Message,
			},
		},
	}

	body, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("failed to marshal teams payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send teams notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("teams webhook returned status %d", resp.StatusCode)
	}
	return nil
}
