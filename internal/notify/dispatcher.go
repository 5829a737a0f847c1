package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/KLogicHQ/natswatch/internal/notify/retry"
	"github.com/KLogicHQ/natswatch/internal/store"
)

// Result records the outcome of one channel delivery attempt.
type Result struct {
	ChannelID string
	Type      string
	// Err is nil on success. A channel type with no registered sender
	// yields an error wrapping ErrNotImplemented.
	Err error
}

// Dispatcher fans one alert event out to a rule's channels.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
}

// NewDispatcher creates a dispatcher. Every send gets its own context
// bounded by timeout.
func NewDispatcher(registry *Registry, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		timeout:  timeout,
	}
}

// Dispatch delivers the event to every enabled channel in order. Transient
// send failures are retried with backoff inside the channel's timeout; a
// channel that still fails is logged and does not stop delivery to the
// remaining channels. Disabled channels are skipped without a result.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event, channels []store.Channel) []Result {
	results := make([]Result, 0, len(channels))
	for _, ch := range channels {
		if !ch.Enabled {
			slog.Debug("Skipping disabled channel",
				"channel_id", ch.ChannelID,
				"type", ch.Type,
				"rule_id", event.RuleID,
			)
			continue
		}

		sender, ok := d.registry.Get(ch.Type)
		if !ok {
			err := fmt.Errorf("%w: %q", ErrNotImplemented, ch.Type)
			slog.Error("No sender registered for channel type",
				"channel_id", ch.ChannelID,
				"type", ch.Type,
				"rule_id", event.RuleID,
			)
			results = append(results, Result{ChannelID: ch.ChannelID, Type: ch.Type, Err: err})
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := retry.Do(sendCtx, retry.DefaultConfig(), "send_"+ch.Type, func() error {
			return sender.Send(sendCtx, ch, event)
		})
		cancel()
		if err != nil {
			slog.Error("Failed to send notification",
				"channel_id", ch.ChannelID,
				"type", ch.Type,
				"rule_id", event.RuleID,
				"status", event.Status,
				"error", err,
			)
			results = append(results, Result{ChannelID: ch.ChannelID, Type: ch.Type, Err: err})
			continue
		}

		slog.Info("Sent notification",
			"channel_id", ch.ChannelID,
			"type", ch.Type,
			"rule_id", event.RuleID,
			"status", event.Status,
		)
		results = append(results, Result{ChannelID: ch.ChannelID, Type: ch.Type})
	}
	return results
}
