package collector

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KLogicHQ/natswatch/internal/rates"
	"github.com/KLogicHQ/natswatch/internal/sink"
)

// Options holds the collector's cadences and per-call bounds.
type Options struct {
	StreamInterval  time.Duration
	ClusterInterval time.Duration
	RefreshInterval time.Duration
	FetchTimeout    time.Duration
	QueryTimeout    time.Duration
}

// Collector owns the sampling loops for all monitored clusters: stream and
// consumer sampling, account-level cluster sampling, and connection refresh.
type Collector struct {
	source  ClusterSource
	pool    BrokerPool
	sink    MetricsSink
	tracker *rates.Tracker
	opts    Options

	streamMu  sync.Mutex
	clusterMu sync.Mutex
	refreshMu sync.Mutex

	running atomic.Bool
}

// New creates a collector. It does not start any loops; call Run.
func New(source ClusterSource, pool BrokerPool, s MetricsSink, tracker *rates.Tracker, opts Options) *Collector {
	return &Collector{
		source:  source,
		pool:    pool,
		sink:    s,
		tracker: tracker,
		opts:    opts,
	}
}

// Running reports whether the sampling loops are active.
func (c *Collector) Running() bool {
	return c.running.Load()
}

// Run drives the three sampling loops until ctx is cancelled. On
// cancellation each loop stops after the tick in flight returns; a batch
// assembled after cancellation is dropped rather than written.
func (c *Collector) Run(ctx context.Context) {
	slog.Info("Starting metrics collector",
		"stream_interval", c.opts.StreamInterval,
		"cluster_interval", c.opts.ClusterInterval,
		"refresh_interval", c.opts.RefreshInterval,
	)
	c.running.Store(true)
	defer c.running.Store(false)

	var wg sync.WaitGroup
	wg.Add(3)
	go c.loop(ctx, &wg, c.opts.StreamInterval, "stream sampling", &c.streamMu, c.sampleStreams)
	go c.loop(ctx, &wg, c.opts.ClusterInterval, "cluster sampling", &c.clusterMu, c.sampleClusters)
	go c.loop(ctx, &wg, c.opts.RefreshInterval, "connection refresh", &c.refreshMu, c.Refresh)
	wg.Wait()

	slog.Info("Metrics collector stopped")
}

// loop fires fn on every tick until ctx is cancelled.
func (c *Collector) loop(ctx context.Context, wg *sync.WaitGroup, interval time.Duration, name string, mu *sync.Mutex, fn func(context.Context)) {
	defer wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx, name, mu, fn)
		}
	}
}

// tick runs fn unless the previous tick of the same loop is still in
// flight, in which case the tick is skipped, never queued.
func (c *Collector) tick(ctx context.Context, name string, mu *sync.Mutex, fn func(context.Context)) bool {
	if !mu.TryLock() {
		slog.Debug("Skipping tick, previous run still in flight", "loop", name)
		return false
	}
	defer mu.Unlock()
	fn(ctx)
	return true
}

// sampleStreams visits every connected cluster in parallel, derives rates
// and writes one batch per table. A failing cluster is logged and skipped;
// the others still contribute to the batch.
func (c *Collector) sampleStreams(ctx context.Context) {
	ids := c.pool.ConnectedIDs()
	if len(ids) == 0 {
		return
	}
	now := time.Now().UTC()

	var mu sync.Mutex
	var streamSamples []sink.StreamSample
	var consumerSamples []sink.ConsumerSample

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(clusterID string) {
			defer wg.Done()
			ss, cs, err := c.sampleCluster(ctx, clusterID, now)
			if err != nil {
				slog.Error("Failed to sample cluster", "cluster_id", clusterID, "error", err)
				return
			}
			mu.Lock()
			streamSamples = append(streamSamples, ss...)
			consumerSamples = append(consumerSamples, cs...)
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(context.Background(), c.opts.QueryTimeout)
	defer cancel()
	if err := c.sink.WriteStreamMetrics(writeCtx, streamSamples); err != nil {
		slog.Error("Failed to write stream metrics", "batch_size", len(streamSamples), "error", err)
	}
	if err := c.sink.WriteConsumerMetrics(writeCtx, consumerSamples); err != nil {
		slog.Error("Failed to write consumer metrics", "batch_size", len(consumerSamples), "error", err)
	}
}

// sampleCluster fetches stream and consumer info for one cluster and turns
// it into samples. A failure listing one stream's consumers skips that
// stream's consumers only.
func (c *Collector) sampleCluster(ctx context.Context, clusterID string, now time.Time) ([]sink.StreamSample, []sink.ConsumerSample, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	streams, err := c.pool.ListStreams(fetchCtx, clusterID)
	cancel()
	if err != nil {
		return nil, nil, err
	}

	streamSamples := make([]sink.StreamSample, 0, len(streams))
	var consumerSamples []sink.ConsumerSample
	for _, info := range streams {
		name := info.Config.Name
		r := c.tracker.Observe(rates.Key(clusterID, "stream", name), rates.Counters{
			Msgs:  info.State.Msgs,
			Bytes: info.State.Bytes,
			At:    now,
		})
		streamSamples = append(streamSamples, sink.StreamSample{
			ClusterID:     clusterID,
			Stream:        name,
			Messages:      info.State.Msgs,
			Bytes:         info.State.Bytes,
			MessagesRate:  r.Msgs,
			BytesRate:     r.Bytes,
			ConsumerCount: info.State.Consumers,
			SampledAt:     now,
		})

		fetchCtx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
		consumers, err := c.pool.ListConsumers(fetchCtx, clusterID, name)
		cancel()
		if err != nil {
			slog.Warn("Failed to list consumers", "cluster_id", clusterID, "stream", name, "error", err)
			continue
		}
		for _, ci := range consumers {
			// Delivered.Stream is cumulative, so the tracker turns it
			// into a delivery rate the same way it does stream counters.
			dr := c.tracker.Observe(rates.Key(clusterID, "consumer", name+"/"+ci.Name), rates.Counters{
				Msgs: ci.Delivered.Stream,
				At:   now,
			})
			consumerSamples = append(consumerSamples, sink.ConsumerSample{
				ClusterID:     clusterID,
				Stream:        name,
				Consumer:      ci.Name,
				Pending:       ci.NumPending,
				AckPending:    ci.NumAckPending,
				Redelivered:   ci.NumRedelivered,
				Waiting:       ci.NumWaiting,
				DeliveredRate: dr.Msgs,
				SampledAt:     now,
			})
		}
	}
	return streamSamples, consumerSamples, nil
}

// sampleClusters captures account-level usage for every connected cluster.
func (c *Collector) sampleClusters(ctx context.Context) {
	ids := c.pool.ConnectedIDs()
	if len(ids) == 0 {
		return
	}
	now := time.Now().UTC()

	var mu sync.Mutex
	samples := make([]sink.ClusterSample, 0, len(ids))

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(clusterID string) {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
			info, err := c.pool.AccountInfo(fetchCtx, clusterID)
			cancel()
			if err != nil {
				slog.Error("Failed to fetch account info", "cluster_id", clusterID, "error", err)
				return
			}
			mu.Lock()
			samples = append(samples, sink.ClusterSample{
				ClusterID:    clusterID,
				Streams:      info.Streams,
				Consumers:    info.Consumers,
				MemoryBytes:  info.Memory,
				StorageBytes: info.Store,
				SampledAt:    now,
			})
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(context.Background(), c.opts.QueryTimeout)
	defer cancel()
	if err := c.sink.WriteClusterMetrics(writeCtx, samples); err != nil {
		slog.Error("Failed to write cluster metrics", "batch_size", len(samples), "error", err)
	}
}

// Refresh reconciles pooled connections against the configuration store and
// drops rate baselines for clusters that left. Also called once at startup
// so the first sampling tick has connections to work with.
func (c *Collector) Refresh(ctx context.Context) {
	clusters, err := c.source.ListConnectedClusters(ctx)
	if err != nil {
		slog.Error("Failed to list clusters from configuration store", "error", err)
		return
	}
	removed := c.pool.EnsureConnections(ctx, clusters)
	for _, id := range removed {
		c.tracker.Forget(id + "/")
	}
	slog.Debug("Connection refresh complete", "clusters", len(clusters), "removed", len(removed))
}
