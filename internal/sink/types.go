// Package sink writes metric samples to the time-series database and
// answers aggregate queries over trailing windows.
//
// One row per sample, one table per entity kind:
//
//	stream_metrics   (cluster_id, stream, messages, bytes, messages_rate,
//	                  bytes_rate, consumer_count, sampled_at)
//	consumer_metrics (cluster_id, stream, consumer, pending, ack_pending,
//	                  redelivered, waiting, delivered_rate, sampled_at)
//	cluster_metrics  (cluster_id, streams, consumers, memory_bytes,
//	                  storage_bytes, sampled_at)
//	alert_events     (event_id, rule_id, cluster_id, metric, status,
//	                  severity, value, threshold, message, created_at)
//
// Retention and compression are deployment policy (TimescaleDB hypertable
// settings) and live in the database, not here.
package sink

import "time"

// Alert event statuses.
const (
	StatusFiring   = "firing"
	StatusResolved = "resolved"
)

// StreamSample is one observation of a stream's state.
type StreamSample struct {
	ClusterID     string
	Stream        string
	Messages      uint64
	Bytes         uint64
	MessagesRate  float64
	BytesRate     float64
	ConsumerCount int
	SampledAt     time.Time
}

// ConsumerSample is one observation of a consumer's delivery state.
// Pending is the broker-reported count of messages the consumer has not
// yet been delivered, i.e. its lag behind the stream head.
type ConsumerSample struct {
	ClusterID     string
	Stream        string
	Consumer      string
	Pending       uint64
	AckPending    int
	Redelivered   int
	Waiting       int
	DeliveredRate float64
	SampledAt     time.Time
}

// ClusterSample is one observation of account-level usage for a cluster.
type ClusterSample struct {
	ClusterID    string
	Streams      int
	Consumers    int
	MemoryBytes  uint64
	StorageBytes uint64
	SampledAt    time.Time
}

// AlertEvent records one alert state transition for the audit trail.
// ClusterID is nil for rules that evaluate across all clusters.
type AlertEvent struct {
	EventID   string
	RuleID    string
	ClusterID *string
	Metric    string
	Status    string
	Severity  string
	Value     float64
	Threshold float64
	Message   string
	CreatedAt time.Time
}

// AggregateQuery describes one aggregate over a trailing window.
// Empty filter fields are omitted from the query.
type AggregateQuery struct {
	Table     string
	Column    string
	Fn        string
	Window    time.Duration
	ClusterID string
	Stream    string
	Consumer  string
}
