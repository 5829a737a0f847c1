package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESProvider sends email through AWS SESv2 using the default credential
// chain. The region comes from AWS_REGION.
type SESProvider struct {
	client *sesv2.Client
}

// NewSESProvider creates an SES backend. A failed credential lookup leaves
// the backend unconfigured instead of failing startup; the registry skips
// unconfigured backends.
func NewSESProvider() *SESProvider {
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(GetEnvOrDefault("AWS_REGION", "us-east-1")))
	if err != nil {
		slog.Warn("Failed to load AWS config, SES provider unavailable", "error", err)
		return &SESProvider{}
	}
	return &SESProvider{client: sesv2.NewFromConfig(cfg)}
}

// Name returns the backend name.
func (p *SESProvider) Name() string { return "ses" }

// IsConfigured reports whether the credential chain resolved at startup.
func (p *SESProvider) IsConfigured() bool { return p.client != nil }

// Send delivers a plain-text email via the SESv2 API.
func (p *SESProvider) Send(ctx context.Context, req *Request) error {
	if p.client == nil {
		return fmt.Errorf("SES backend not configured")
	}

	out, err := p.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &req.From,
		Destination:      &types.Destination{ToAddresses: req.To},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &req.Subject},
				Body:    &types.Body{Text: &types.Content{Data: &req.Body}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send via SES: %w", err)
	}

	slog.Debug("Email sent via SES", "message_id", *out.MessageId, "to", req.To)
	return nil
}
