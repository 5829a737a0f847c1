// Package email delivers alert events by email through a provider registry
// with fallback (SES, then Resend, then plain SMTP).
package email

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/KLogicHQ/natswatch/internal/notify"
	"github.com/KLogicHQ/natswatch/internal/notify/email/provider"
	"github.com/KLogicHQ/natswatch/internal/store"
)

// Sender sends alert events as plain-text email.
type Sender struct {
	providers *provider.Registry
	from      string
}

// NewSender creates an email sender with all backends registered. The
// preferred backend comes from EMAIL_PROVIDER (default "ses"); the others
// serve as fallbacks in SES, Resend, SMTP order.
func NewSender() *Sender {
	primary := provider.GetEnvOrDefault("EMAIL_PROVIDER", "ses")
	registry := provider.NewRegistry(providerOrder(primary)...)
	registry.Register(provider.NewSESProvider())
	registry.Register(provider.NewResendProvider())
	registry.Register(provider.NewSMTPProvider())

	return NewSenderWithRegistry(registry, provider.GetEnvOrDefault("EMAIL_FROM", "alerts@natswatch.local"))
}

// NewSenderWithRegistry creates an email sender over a custom registry.
func NewSenderWithRegistry(registry *provider.Registry, from string) *Sender {
	return &Sender{
		providers: registry,
		from:      from,
	}
}

func providerOrder(primary string) []string {
	order := []string{primary}
	for _, name := range []string{"ses", "resend", "smtp"} {
		if name != primary {
			order = append(order, name)
		}
	}
	return order
}

// Type returns the channel type this sender handles.
func (s *Sender) Type() string {
	return "email"
}

type channelConfig struct {
	Recipients []string `json:"recipients"`
	From       string   `json:"from,omitempty"`
}

// Send emails the event to the channel's recipients.
func (s *Sender) Send(ctx context.Context, channel store.Channel, event notify.Event) error {
	var cfg channelConfig
	if err := json.Unmarshal(channel.Config, &cfg); err != nil {
		return fmt.Errorf("failed to decode email channel config: %w", err)
	}
	if len(cfg.Recipients) == 0 {
		return fmt.Errorf("email recipients are required")
	}
	for _, recipient := range cfg.Recipients {
		if !strings.Contains(recipient, "@") {
			return fmt.Errorf("invalid email address %q", recipient)
		}
	}

	from := s.from
	if cfg.From != "" {
		from = cfg.From
	}

	return s.providers.Send(ctx, &provider.Request{
		From:    from,
		To:      cfg.Recipients,
		Subject: buildSubject(event),
		Body:    buildBody(event),
	})
}

func buildSubject(event notify.Event) string {
	if event.Status == "resolved" {
		return fmt.Sprintf("[RESOLVED] %s", event.RuleName)
	}
	return fmt.Sprintf("[%s] %s", strings.ToUpper(event.Severity), event.RuleName)
}

func buildBody(event notify.Event) string {
	var sb strings.Builder
	sb.WriteString("Alert Notification\n")
	sb.WriteString("==================\n\n")
	sb.WriteString(fmt.Sprintf("Rule: %s\n", event.RuleName))
	sb.WriteString(fmt.Sprintf("Status: %s\n", event.Status))
	sb.WriteString(fmt.Sprintf("Severity: %s\n", event.Severity))
	sb.WriteString(fmt.Sprintf("Metric: %s\n", event.Metric))
	sb.WriteString(fmt.Sprintf("Value: %.2f\n", event.Value))
	sb.WriteString(fmt.Sprintf("Threshold: %.2f\n", event.Threshold))
	sb.WriteString(fmt.Sprintf("Time: %s\n", event.At.UTC().Format(time.RFC3339)))
	sb.WriteString("\n")
	sb.WriteString(event.Message)
	sb.WriteString("\n")
	return sb.String()
}
