package provider

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"
)

// SMTPProvider sends email through a plain SMTP server, typically a local
// relay or MailHog in development.
type SMTPProvider struct {
	host     string
	port     string
	user     string
	password string
}

// NewSMTPProvider creates an SMTP backend from SMTP_HOST, SMTP_PORT,
// SMTP_USER and SMTP_PASSWORD. Without a host the backend stays
// unconfigured.
func NewSMTPProvider() *SMTPProvider {
	return &SMTPProvider{
		host:     GetEnvOrDefault("SMTP_HOST", ""),
		port:     GetEnvOrDefault("SMTP_PORT", "25"),
		user:     GetEnvOrDefault("SMTP_USER", ""),
		password: GetEnvOrDefault("SMTP_PASSWORD", ""),
	}
}

// Name returns the backend name.
func (p *SMTPProvider) Name() string {
	return "smtp"
}

// IsConfigured reports whether an SMTP host was provided.
func (p *SMTPProvider) IsConfigured() bool {
	return p.host != ""
}

// Send delivers the email over SMTP. STARTTLS is negotiated automatically
// when the server advertises it.
func (p *SMTPProvider) Send(ctx context.Context, req *Request) error {
	if p.host == "" {
		return fmt.Errorf("SMTP host not configured")
	}
	if len(req.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}

	var auth smtp.Auth
	if p.user != "" && p.password != "" {
		auth = smtp.PlainAuth("", p.user, p.password, p.host)
	}

	addr := fmt.Sprintf("%s:%s", p.host, p.port)
	msg := buildMessage(req.From, req.To, req.Subject, req.Body)
	if err := smtp.SendMail(addr, auth, req.From, req.To, msg); err != nil {
		return fmt.Errorf("SMTP send failed: %w", err)
	}

	slog.Info("Email sent via SMTP",
		"smtp_server", addr,
		"to", req.To,
		"subject", req.Subject,
	)
	return nil
}

// buildMessage assembles a complete RFC 822 message.
func buildMessage(from string, to []string, subject, body string) []byte {
	var msg bytes.Buffer
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return msg.Bytes()
}
