package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/KLogicHQ/natswatch/internal/store"
)

// ErrClusterNotConnected is returned for fetches against a cluster whose
// connection is missing or has closed since the last refresh.
var ErrClusterNotConnected = errors.New("cluster not connected")

// DialFunc dials one cluster and returns its connection and metadata client.
type DialFunc func(cfg store.ClusterConfig, timeout time.Duration) (BrokerConn, MetaClient, error)

// ClusterStatus is a point-in-time view of one pooled connection.
type ClusterStatus struct {
	ClusterID   string     `json:"cluster_id"`
	Name        string     `json:"name"`
	Connected   bool       `json:"connected"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// member is the pool's record for one cluster. A member with a nil or
// closed conn stays in the map so its status (and last dial error) remains
// visible until the next refresh replaces it.
type member struct {
	cfg         store.ClusterConfig
	nc          BrokerConn
	client      MetaClient
	connectedAt time.Time
	lastErr     string
}

// Pool owns one NATS connection per monitored cluster.
type Pool struct {
	mu      sync.RWMutex
	conns   map[string]*member
	dial    DialFunc
	timeout time.Duration
}

// NewPool creates an empty pool that dials clusters with the given connect timeout.
func NewPool(timeout time.Duration) *Pool {
	return &Pool{
		conns:   make(map[string]*member),
		dial:    dialCluster,
		timeout: timeout,
	}
}

// EnsureConnections reconciles the pool against the desired cluster set:
// new and closed clusters are dialed, clusters that left the configuration
// are drained and dropped. A dial failure is recorded on the member and
// never blocks the other clusters. Returns the IDs of removed clusters so
// callers can discard state keyed on them.
func (p *Pool) EnsureConnections(ctx context.Context, desired []store.ClusterConfig) []string {
	want := make(map[string]store.ClusterConfig, len(desired))
	for _, cfg := range desired {
		want[cfg.ClusterID] = cfg
	}

	// Snapshot under the read lock; drain and dial outside it so sampling
	// fetches are not blocked behind slow dials.
	p.mu.RLock()
	var removed []string
	var drains []BrokerConn
	var dials []store.ClusterConfig
	for id, m := range p.conns {
		cfg, ok := want[id]
		if ok && m.cfg == cfg && m.nc != nil && !m.nc.IsClosed() {
			continue
		}
		if !ok {
			removed = append(removed, id)
		}
		if m.nc != nil && !m.nc.IsClosed() {
			drains = append(drains, m.nc)
		}
	}
	for _, cfg := range desired {
		m, ok := p.conns[cfg.ClusterID]
		if !ok || m.cfg != cfg || m.nc == nil || m.nc.IsClosed() {
			dials = append(dials, cfg)
		}
	}
	p.mu.RUnlock()

	for _, nc := range drains {
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}

	type dialed struct {
		cfg    store.ClusterConfig
		nc     BrokerConn
		client MetaClient
		err    error
	}
	results := make([]dialed, 0, len(dials))
	for _, cfg := range dials {
		if ctx.Err() != nil {
			break
		}
		nc, client, err := p.dial(cfg, p.timeout)
		if err != nil {
			slog.Error("Failed to connect to cluster", "cluster_id", cfg.ClusterID, "url", cfg.ServerURL, "error", err)
		} else {
			slog.Info("Connected to cluster", "cluster_id", cfg.ClusterID, "url", cfg.ServerURL)
		}
		results = append(results, dialed{cfg: cfg, nc: nc, client: client, err: err})
	}

	p.mu.Lock()
	for _, id := range removed {
		delete(p.conns, id)
		slog.Info("Removed cluster connection", "cluster_id", id)
	}
	for _, r := range results {
		m := &member{cfg: r.cfg}
		if r.err != nil {
			m.lastErr = r.err.Error()
		} else {
			m.nc = r.nc
			m.client = r.client
			m.connectedAt = time.Now().UTC()
		}
		p.conns[r.cfg.ClusterID] = m
	}
	p.mu.Unlock()

	sort.Strings(removed)
	return removed
}

// client returns the metadata client for a live connection.
func (p *Pool) client(clusterID string) (MetaClient, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.conns[clusterID]
	if !ok || m.nc == nil || m.nc.IsClosed() {
		return nil, fmt.Errorf("%w: %s", ErrClusterNotConnected, clusterID)
	}
	return m.client, nil
}

// ListStreams fetches info for every stream in the cluster.
func (p *Pool) ListStreams(ctx context.Context, clusterID string) ([]*jetstream.StreamInfo, error) {
	c, err := p.client(clusterID)
	if err != nil {
		return nil, err
	}
	return c.ListStreams(ctx)
}

// ListConsumers fetches info for every consumer on the given stream.
func (p *Pool) ListConsumers(ctx context.Context, clusterID, stream string) ([]*jetstream.ConsumerInfo, error) {
	c, err := p.client(clusterID)
	if err != nil {
		return nil, err
	}
	return c.ListConsumers(ctx, stream)
}

// AccountInfo fetches account-level usage for the cluster.
func (p *Pool) AccountInfo(ctx context.Context, clusterID string) (*jetstream.AccountInfo, error) {
	c, err := p.client(clusterID)
	if err != nil {
		return nil, err
	}
	return c.AccountInfo(ctx)
}

// ConnectedIDs returns the IDs of clusters with a live connection, sorted.
func (p *Pool) ConnectedIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.conns))
	for id, m := range p.conns {
		if m.nc != nil && !m.nc.IsClosed() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Status reports a point-in-time view of every pooled cluster, sorted by ID.
func (p *Pool) Status() []ClusterStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]ClusterStatus, 0, len(p.conns))
	for id, m := range p.conns {
		st := ClusterStatus{ClusterID: id, Name: m.cfg.Name, LastError: m.lastErr}
		if m.nc != nil && !m.nc.IsClosed() {
			st.Connected = true
			t := m.connectedAt
			st.ConnectedAt = &t
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClusterID < out[j].ClusterID })
	return out
}

// Close drains every connection. Used at shutdown.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, m := range p.conns {
		if m.nc != nil && !m.nc.IsClosed() {
			if err := m.nc.Drain(); err != nil {
				slog.Warn("Failed to drain cluster connection", "cluster_id", id, "error", err)
				m.nc.Close()
			}
		}
		delete(p.conns, id)
	}
}
