// Package pagerduty delivers alert events to the PagerDuty Events API v2.
// The rule ID is used as the dedup key so a resolve event closes the
// incident its fire event opened.
package pagerduty

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

const defaultEndpoint = "https://events.pagerduty.com/v2/enqueue"

// Sender enqueues alert events with PagerDuty.
type Sender struct {
	httpClient *http.Client
	endpoint   string
}

// NewSender creates a PagerDuty sender using the shared HTTP client.
func NewSender(client *http.Client) *Sender {
	return &Sender{
		httpClient: client,
		endpoint:   defaultEndpoint,
	}
}

// Type returns the channel type this sender handles.
func (s *Sender) Type() string {
	return "pagerduty"
}

type channelConfig struct {
	RoutingKey string `json:"routing_key"`
}

type enqueueRequest struct {
	RoutingKey  string        `json:"routing_key"`
	EventAction string        `json:"event_action"`
	DedupKey    string        `json:"dedup_key"`
	Payload     *eventPayload `json:"payload,omitempty"`
}

type eventPayload struct {
	Summary       string            `json:"summary"`
	Source        string            `json:"source"`
	Severity      string            `json:"severity"`
	Timestamp     string            `json:"timestamp"`
	CustomDetails map[string]string `json:"custom_details,omitempty"`
}

// pdSeverity maps a rule severity onto PagerDuty's closed vocabulary.
func pdSeverity(severity string) string {
	switch strings.ToLower(severity) {
	case "critical":
		return "critical"
	case "warning":
		return "warning"
	case "info":
		return "info"
	default:
		return "error"
	}
}

// Send enqueues a trigger for firing events and a resolve for resolved
// ones, correlated through the rule ID dedup key.
func (s *Sender) Send(ctx context.Context, channel store.Channel, event notify.Event) error {
	var cfg channelConfig
	if err := json.Unmarshal(channel.Config, &cfg); err != nil {
		return fmt.Errorf("failed to decode pagerduty channel config: %w", err)
	}
	if cfg.RoutingKey == "" {
		return fmt.Errorf("pagerduty routing key is required")
	}

	req := enqueueRequest{
		RoutingKey:  cfg.RoutingKey,
		EventAction: "resolve",
		DedupKey:    event.RuleID,
	}
	if event.Status == "firing" {
		req.EventAction = "trigger"
		req.Payload = &eventPayload{
			Summary:   event.Message,
			Source:    "natswatch",
			Severity:  pdSeverity(event.Severity),
			Timestamp: event.At.UTC().Format(time.RFC3339),
			CustomDetails: map[string]string{
				"metric":    event.Metric,
				"value":     fmt.Sprintf("%.2f", event.Value),
				"threshold": fmt.Sprintf("%.2f", event.Threshold),
			},
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal pagerduty payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send pagerduty event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pagerduty returned status %d", resp.StatusCode)
	}
	return nil
}
