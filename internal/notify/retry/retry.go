// Package retry retries transient notification failures with exponential
// backoff. Permanent failures (bad channel config, rejected addresses) fail
// immediately so a misconfigured channel cannot eat the send timeout.
package retry

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"time"
)

// Config bounds the retry loop.
type Config struct {
	// MaxRetries is the number of attempts after the first (0 disables).
	MaxRetries int
	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration
	// BackoffFactor multiplies the backoff between attempts.
	BackoffFactor float64
}

// DefaultConfig returns the settings the dispatcher uses per send. Two
// retries at 200ms and 400ms keep the worst case well inside the send
// timeout.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     2,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		BackoffFactor:  2.0,
	}
}

// Channel errors that mean the configuration or the request itself is bad.
// Another attempt with the same input cannot succeed.
var permanentMarkers = []string{
	"invalid",
	"malformed",
	"is required",
	"are required",
	"failed to decode",
	"not verified",
	"no configured email provider",
}

// Errors worth another attempt: network hiccups, rate limits, gateways
// shedding load.
var transientMarkers = []string{
	"timeout",
	"connection refused",
	"connection reset",
	"temporary",
	"rate limit",
	"throttl",
	"502",
	"503",
	"504",
	"too many requests",
	"try again",
}

// IsRetryable reports whether an error looks transient. Unknown errors are
// treated as permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return false
		}
	}
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Do runs fn, retrying transient failures with exponential backoff until
// the attempts or the context run out. The last error is returned.
func Do(ctx context.Context, cfg Config, operation string, fn func() error) error {
	backoff := cfg.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				slog.Info("Delivery succeeded after retry",
					"operation", operation,
					"attempts", attempt,
				)
			}
			return nil
		}

		if !IsRetryable(err) {
			slog.Debug("Error is permanent, not retrying",
				"operation", operation,
				"error", err,
			)
			return err
		}
		if attempt > cfg.MaxRetries {
			slog.Warn("Giving up after max retries",
				"operation", operation,
				"attempts", attempt,
				"error", err,
			)
			return err
		}

		wait := withJitter(backoff)
		slog.Warn("Delivery failed, retrying",
			"operation", operation,
			"attempt", attempt,
			"backoff", wait,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffFactor)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
}

// withJitter spreads the wait 25% around the nominal backoff.
func withJitter(d time.Duration) time.Duration {
	return d + time.Duration((rand.Float64()*2-1)*0.25*float64(d))
}
