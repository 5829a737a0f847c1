// Package collector runs the periodic sampling loops that turn broker
// state into metric samples.
package collector

import (
	"context"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/KLogicHQ/natswatch/internal/sink"
	"github.com/KLogicHQ/natswatch/internal/store"
)

// ClusterSource lists the clusters that should currently be monitored.
type ClusterSource interface {
	// ListConnectedClusters returns every cluster marked connected in the
	// configuration store.
	ListConnectedClusters(ctx context.Context) ([]store.ClusterConfig, error)
}

// BrokerPool answers metadata queries against pooled cluster connections.
type BrokerPool interface {
	// EnsureConnections reconciles the pool against the desired cluster set
	// and returns the IDs of removed clusters.
	EnsureConnections(ctx context.Context, desired []store.ClusterConfig) []string

	// ConnectedIDs returns the IDs of clusters with a live connection.
	ConnectedIDs() []string

	// ListStreams fetches info for every stream in the cluster.
	ListStreams(ctx context.Context, clusterID string) ([]*jetstream.StreamInfo, error)

	// ListConsumers fetches info for every consumer on the given stream.
	ListConsumers(ctx context.Context, clusterID, stream string) ([]*jetstream.ConsumerInfo, error)

	// AccountInfo fetches account-level usage for the cluster.
	AccountInfo(ctx context.Context, clusterID string) (*jetstream.AccountInfo, error)
}

// MetricsSink persists sample batches.
type MetricsSink interface {
	// WriteStreamMetrics bulk-inserts stream samples.
	WriteStreamMetrics(ctx context.Context, samples []sink.StreamSample) error

	// WriteConsumerMetrics bulk-inserts consumer samples.
	WriteConsumerMetrics(ctx context.Context, samples []sink.ConsumerSample) error

	// WriteClusterMetrics bulk-inserts cluster samples.
	WriteClusterMetrics(ctx context.Context, samples []sink.ClusterSample) error
}
