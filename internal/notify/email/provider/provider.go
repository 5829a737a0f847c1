// Package provider defines the email backend interface and a registry with
// primary/fallback selection across SES, Resend and plain SMTP.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Request is an email to be sent.
type Request struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Provider is the interface every email backend implements.
type Provider interface {
	// Name returns the backend name ("ses", "resend", "smtp").
	Name() string

	// Send delivers the email through this backend.
	Send(ctx context.Context, req *Request) error

	// IsConfigured reports whether the backend has what it needs to send.
	IsConfigured() bool
}

// Registry holds backends and tries them in order: primary first, then the
// fallbacks.
type Registry struct {
	providers map[string]Provider
	order     []string
}

// NewRegistry creates a registry trying the named providers in the given
// order once they are registered.
func NewRegistry(order ...string) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		order:     order,
	}
}

// Register adds a backend to the registry.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
	slog.Info("Registered email provider", "name", p.Name(), "configured", p.IsConfigured())
}

// Get returns a backend by name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Send delivers the email through the first configured backend in order,
// falling through to the next on failure. The first error is returned when
// every attempt fails.
func (r *Registry) Send(ctx context.Context, req *Request) error {
	var firstErr error
	attempted := false
	for _, name := range r.order {
		p, ok := r.providers[name]
		if !ok || !p.IsConfigured() {
			continue
		}
		attempted = true

		err := p.Send(ctx, req)
		if err == nil {
			return nil
		}
		if firstErr == nil {
			firstErr = err
		}
		slog.Warn("Email provider failed, trying next",
			"provider", name,
			"error", err,
		)
	}
	if !attempted {
		return fmt.Errorf("no configured email provider available")
	}
	return firstErr
}

// GetEnvOrDefault returns the environment variable value or a default.
func GetEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}
