// Package store provides read-only access to the natswatch configuration
// database: monitored clusters, alert rules and notification channels.
// All writes happen through the external management API; this process only
// reads the pieces it needs to sample and evaluate.
package store

import (
	"encoding/json"
	"time"
)

// Cluster statuses as stored in the configuration database. Only clusters
// in StatusConnected are dialed and sampled.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusPending      = "pending"
)

// Credential kinds for dialing a cluster.
const (
	AuthNone     = "none"
	AuthUserPass = "userpass"
	AuthToken    = "token"
)

// ClusterConfig describes a monitored cluster and its primary connection record.
type ClusterConfig struct {
	ClusterID string
	Name      string
	Status    string
	ServerURL string
	// AuthKind selects the credential fields used to dial, one of the
	// Auth constants above.
	AuthKind string
	Username string
	Password string
	Token    string
}

// AlertRule is a user-defined threshold rule read from the configuration store.
type AlertRule struct {
	RuleID string
	OrgID  string
	// ClusterID scopes the rule to a single cluster. Nil means the rule is
	// cluster-agnostic and its metric address must be fully qualified.
	ClusterID *string
	Name      string
	// Metric is the metric address, e.g. "stream.ORDERS.messages_rate",
	// "consumer.ORDERS.billing.pending" or a bare synthetic name such as
	// "message_rate".
	Metric   string
	Operator string
	// Threshold is the numeric comparison value. ThresholdType is
	// "absolute" or "percent" and only affects message formatting.
	Threshold     float64
	ThresholdType string
	// WindowSeconds is the trailing window the aggregation runs over.
	WindowSeconds int
	// Aggregation is one of avg, min, max, sum, count.
	Aggregation     string
	Severity        string
	CooldownMinutes int
	Enabled         bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	// Channels are the rule's notification channels, in configured order.
	Channels []Channel
}

// Window returns the rule's trailing window as a duration.
func (r *AlertRule) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// Cooldown returns the rule's cooldown as a duration.
func (r *AlertRule) Cooldown() time.Duration {
	return time.Duration(r.CooldownMinutes) * time.Minute
}

// Channel is a notification channel configuration. Config is a type-specific
// JSON blob decoded by the channel sender (webhook URL, recipient list, ...).
type Channel struct {
	ChannelID string
	Name      string
	Type      string
	Config    json.RawMessage
	Enabled   bool
}
