// Package notify routes alert events to notification channels. Channel
// implementations live in subpackages and register themselves against a
// type-keyed registry; the dispatcher fans one event out to a rule's
// channel list.
package notify

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/KLogicHQ/natswatch/internal/store"
)

// ErrNotImplemented marks a channel type no registered sender handles.
// It surfaces in dispatch results so configuration gaps are visible
// instead of silently dropped.
var ErrNotImplemented = errors.New("channel type not implemented")

// Event is one alert state transition handed to notification channels.
type Event struct {
	RuleID    string
	RuleName  string
	Metric    string
	// Status is "firing" or "resolved".
	Status    string
	Severity  string
	Value     float64
	Threshold float64
	Message   string
	At        time.Time
}

// Sender is the interface every notification channel implements.
type Sender interface {
	// Send delivers the event to one channel. The channel's Config blob
	// holds the type-specific settings (webhook URL, recipients, ...).
	Send(ctx context.Context, channel store.Channel, event Event) error

	// Type returns the channel type this sender handles (e.g. "slack").
	Type() string
}

// Registry holds senders keyed by channel type.
type Registry struct {
	senders map[string]Sender
}

// NewRegistry creates an empty sender registry.
func NewRegistry() *Registry {
	return &Registry{
		senders: make(map[string]Sender),
	}
}

// Register adds a sender, replacing any previous sender of the same type.
func (r *Registry) Register(sender Sender) {
	r.senders[sender.Type()] = sender
}

// Get retrieves the sender for a channel type.
func (r *Registry) Get(channelType string) (Sender, bool) {
	sender, ok := r.senders[channelType]
	return sender, ok
}

// List returns all registered channel types.
func (r *Registry) List() []string {
	types := make([]string, 0, len(r.senders))
	for t := range r.senders {
		types = append(types, t)
	}
	return types
}

// NewHTTPClient returns the client the HTTP-based channel senders share.
// The timeout is a ceiling; per-send contexts usually cancel sooner.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}
