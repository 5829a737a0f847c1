package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// ResendProvider sends email through the Resend API.
type ResendProvider struct {
	client *resend.Client
}

// NewResendProvider creates a Resend backend. The API key comes from
// RESEND_API_KEY; without it the backend stays unconfigured and the
// registry falls through to the next one.
func NewResendProvider() *ResendProvider {
	apiKey := GetEnvOrDefault("RESEND_API_KEY", "")
	if apiKey == "" {
		return &ResendProvider{}
	}
	return &ResendProvider{client: resend.NewClient(apiKey)}
}

// Name returns the backend name.
func (p *ResendProvider) Name() string { return "resend" }

// IsConfigured reports whether an API key was present at startup.
func (p *ResendProvider) IsConfigured() bool { return p.client != nil }

// Send delivers a plain-text email via the Resend API.
func (p *ResendProvider) Send(ctx context.Context, req *Request) error {
	if p.client == nil {
		return fmt.Errorf("resend backend not configured")
	}

	sent, err := p.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    req.From,
		To:      req.To,
		Subject: req.Subject,
		Text:    req.Body,
	})
	if err != nil {
		return fmt.Errorf("failed to send via Resend: %w", err)
	}

	slog.Debug("Email sent via Resend", "email_id", sent.Id, "to", req.To)
	return nil
}
