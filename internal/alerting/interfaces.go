// Package alerting evaluates alert rules against stored metric samples and
// drives the firing/resolved state machine behind notifications.
package alerting

import (
	"context"

	"github.com/KLogicHQ/natswatch/internal/notify"
	"github.com/KLogicHQ/natswatch/internal/sink"
	"github.com/KLogicHQ/natswatch/internal/store"
)

// RuleSource lists the alert rules to evaluate.
type RuleSource interface {
	// ListEnabledRules returns every enabled rule with its notification
	// channels resolved, in creation order.
	ListEnabledRules(ctx context.Context) ([]*store.AlertRule, error)
}

// MetricReader answers aggregate queries over stored metric samples.
type MetricReader interface {
	// Aggregate computes a single aggregate over a trailing window, or nil
	// if no samples matched.
	Aggregate(ctx context.Context, q sink.AggregateQuery) (*float64, error)
}

// EventRecorder persists alert transition events for audit.
type EventRecorder interface {
	// WriteAlertEvent appends one fire or resolve event.
	WriteAlertEvent(ctx context.Context, ev sink.AlertEvent) error
}

// Notifier fans an alert event out to the rule's notification channels.
type Notifier interface {
	// Dispatch delivers the event to every enabled channel and returns one
	// result per attempted channel.
	Dispatch(ctx context.Context, event notify.Event, channels []store.Channel) []notify.Result
}
