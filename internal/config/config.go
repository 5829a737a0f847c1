// Package config provides configuration parsing and validation for natswatch.
package config

import (
	"fmt"
	"time"
)

// Config holds all configuration parameters for the natswatch process.
type Config struct {
	// ConfigDSN points at the PostgreSQL database holding clusters,
	// alert rules and notification channels (read-only from here).
	ConfigDSN string
	// SinkDSN points at the PostgreSQL/TimescaleDB database receiving
	// derived metric samples and alert events.
	SinkDSN string
	// RedisAddr is the Redis server used for worker status reporting.
	// Optional: an unreachable Redis disables status reporting but never
	// blocks collection.
	RedisAddr string
	// HTTPAddr is the listen address of the health/status API.
	HTTPAddr string

	// StreamInterval is the cadence of stream/consumer sampling.
	StreamInterval time.Duration
	// ClusterInterval is the cadence of cluster-level (account) sampling.
	ClusterInterval time.Duration
	// EvalInterval is the cadence of alert rule evaluation.
	EvalInterval time.Duration
	// RefreshInterval is the cadence of the connection-set refresh against
	// the configuration store.
	RefreshInterval time.Duration

	// ConnectTimeout bounds a single NATS dial.
	ConnectTimeout time.Duration
	// FetchTimeout bounds one cluster's snapshot fetch within a tick.
	FetchTimeout time.Duration
	// QueryTimeout bounds a single sink query or bulk write.
	QueryTimeout time.Duration
	// NotifyTimeout bounds a single notification channel send.
	NotifyTimeout time.Duration
}

// Validate checks that all required configuration fields are set and have valid values.
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.ConfigDSN == "" {
		return fmt.Errorf("config-dsn cannot be empty")
	}
	if c.SinkDSN == "" {
		return fmt.Errorf("sink-dsn cannot be empty")
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("http-addr cannot be empty")
	}
	if c.StreamInterval <= 0 {
		return fmt.Errorf("stream-interval must be > 0")
	}
	if c.ClusterInterval <= 0 {
		return fmt.Errorf("cluster-interval must be > 0")
	}
	if c.EvalInterval <= 0 {
		return fmt.Errorf("eval-interval must be > 0")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh-interval must be > 0")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect-timeout must be > 0")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch-timeout must be > 0")
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("query-timeout must be > 0")
	}
	if c.NotifyTimeout <= 0 {
		return fmt.Errorf("notify-timeout must be > 0")
	}
	return nil
}
