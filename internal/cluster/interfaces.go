// Package cluster maintains one NATS connection per monitored cluster and
// answers JetStream metadata queries against them.
package cluster

import (
	"context"

	"github.com/nats-io/nats.go/jetstream"
)

// BrokerConn is the slice of the NATS connection lifecycle the pool manages.
type BrokerConn interface {
	// IsClosed reports whether the connection is permanently closed.
	IsClosed() bool

	// Drain lets in-flight requests finish, then closes the connection.
	Drain() error

	// Close tears the connection down immediately.
	Close()
}

// MetaClient answers JetStream metadata queries for one cluster.
type MetaClient interface {
	// ListStreams fetches info for every stream in the cluster.
	ListStreams(ctx context.Context) ([]*jetstream.StreamInfo, error)

	// ListConsumers fetches info for every consumer on the given stream.
	ListConsumers(ctx context.Context, stream string) ([]*jetstream.ConsumerInfo, error)

	// AccountInfo fetches account-level usage for the cluster.
	AccountInfo(ctx context.Context) (*jetstream.AccountInfo, error)
}
