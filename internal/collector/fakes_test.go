package collector

import (
	"context"
	"sync"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/KLogicHQ/natswatch/internal/sink"
	"github.com/KLogicHQ/natswatch/internal/store"
)

// FakeSource is a test fake for ClusterSource.
type FakeSource struct {
	Clusters []store.ClusterConfig
	Err      error
	Calls    int
}

func (f *FakeSource) ListConnectedClusters(ctx context.Context) ([]store.ClusterConfig, error) {
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Clusters, nil
}

// FakePool is a test fake for BrokerPool. Streams are keyed by cluster ID,
// consumers by clusterID+"/"+stream.
type FakePool struct {
	Connected    []string
	Streams      map[string][]*jetstream.StreamInfo
	Consumers    map[string][]*jetstream.ConsumerInfo
	Accounts     map[string]*jetstream.AccountInfo
	StreamsErr   map[string]error
	ConsumersErr map[string]error
	AccountErr   map[string]error
	Ensured      [][]store.ClusterConfig
	Removed      []string
}

func NewFakePool() *FakePool {
	return &FakePool{
		Streams:      make(map[string][]*jetstream.StreamInfo),
		Consumers:    make(map[string][]*jetstream.ConsumerInfo),
		Accounts:     make(map[string]*jetstream.AccountInfo),
		StreamsErr:   make(map[string]error),
		ConsumersErr: make(map[string]error),
		AccountErr:   make(map[string]error),
	}
}

func (f *FakePool) EnsureConnections(ctx context.Context, desired []store.ClusterConfig) []string {
	f.Ensured = append(f.Ensured, desired)
	return f.Removed
}

func (f *FakePool) ConnectedIDs() []string {
	return f.Connected
}

func (f *FakePool) ListStreams(ctx context.Context, clusterID string) ([]*jetstream.StreamInfo, error) {
	if err := f.StreamsErr[clusterID]; err != nil {
		return nil, err
	}
	return f.Streams[clusterID], nil
}

func (f *FakePool) ListConsumers(ctx context.Context, clusterID, stream string) ([]*jetstream.ConsumerInfo, error) {
	if err := f.ConsumersErr[clusterID]; err != nil {
		return nil, err
	}
	return f.Consumers[clusterID+"/"+stream], nil
}

func (f *FakePool) AccountInfo(ctx context.Context, clusterID string) (*jetstream.AccountInfo, error) {
	if err := f.AccountErr[clusterID]; err != nil {
		return nil, err
	}
	return f.Accounts[clusterID], nil
}

// FakeSink is a test fake for MetricsSink. It is safe for concurrent use
// because the collector's loops write from separate goroutines.
type FakeSink struct {
	mu              sync.Mutex
	StreamBatches   [][]sink.StreamSample
	ConsumerBatches [][]sink.ConsumerSample
	ClusterBatches  [][]sink.ClusterSample
	StreamErr       error
	ConsumerErr     error
	ClusterErr      error
}

func (f *FakeSink) WriteStreamMetrics(ctx context.Context, samples []sink.StreamSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StreamErr != nil {
		return f.StreamErr
	}
	f.StreamBatches = append(f.StreamBatches, samples)
	return nil
}

func (f *FakeSink) WriteConsumerMetrics(ctx context.Context, samples []sink.ConsumerSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConsumerErr != nil {
		return f.ConsumerErr
	}
	f.ConsumerBatches = append(f.ConsumerBatches, samples)
	return nil
}

func (f *FakeSink) WriteClusterMetrics(ctx context.Context, samples []sink.ClusterSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ClusterErr != nil {
		return f.ClusterErr
	}
	f.ClusterBatches = append(f.ClusterBatches, samples)
	return nil
}

// StreamBatchCount reports how many stream batches have been written.
func (f *FakeSink) StreamBatchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.StreamBatches)
}
