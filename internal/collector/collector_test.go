package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/KLogicHQ/natswatch/internal/rates"
	"github.com/KLogicHQ/natswatch/internal/store"
)

func testStream(name string, msgs, bytes uint64, consumers int) *jetstream.StreamInfo {
	return &jetstream.StreamInfo{
		Config: jetstream.StreamConfig{Name: name},
		State:  jetstream.StreamState{Msgs: msgs, Bytes: bytes, Consumers: consumers},
	}
}

func testConsumer(stream, name string, delivered, pending uint64) *jetstream.ConsumerInfo {
	return &jetstream.ConsumerInfo{
		Stream:         stream,
		Name:           name,
		Delivered:      jetstream.SequenceInfo{Stream: delivered},
		NumAckPending:  3,
		NumRedelivered: 1,
		NumWaiting:     2,
		NumPending:     pending,
	}
}

func newTestCollector(source *FakeSource, pool *FakePool, s *FakeSink) *Collector {
	return New(source, pool, s, rates.NewTracker(), Options{
		StreamInterval:  time.Minute,
		ClusterInterval: time.Minute,
		RefreshInterval: time.Minute,
		FetchTimeout:    time.Second,
		QueryTimeout:    time.Second,
	})
}

func TestCollector_SampleStreams(t *testing.T) {
	t.Run("writes stream and consumer samples", func(t *testing.T) {
		pool := NewFakePool()
		pool.Connected = []string{"c1"}
		pool.Streams["c1"] = []*jetstream.StreamInfo{testStream("ORDERS", 100, 2048, 2)}
		pool.Consumers["c1/ORDERS"] = []*jetstream.ConsumerInfo{testConsumer("ORDERS", "billing", 50, 42)}
		fakeSink := &FakeSink{}
		c := newTestCollector(&FakeSource{}, pool, fakeSink)

		c.sampleStreams(context.Background())

		if len(fakeSink.StreamBatches) != 1 {
			t.Fatalf("expected 1 stream batch, got %d", len(fakeSink.StreamBatches))
		}
		batch := fakeSink.StreamBatches[0]
		if len(batch) != 1 {
			t.Fatalf("expected 1 stream sample, got %d", len(batch))
		}
		ss := batch[0]
		if ss.ClusterID != "c1" || ss.Stream != "ORDERS" {
			t.Errorf("unexpected sample identity: %q %q", ss.ClusterID, ss.Stream)
		}
		if ss.Messages != 100 || ss.Bytes != 2048 || ss.ConsumerCount != 2 {
			t.Errorf("unexpected counters: msgs=%d bytes=%d consumers=%d", ss.Messages, ss.Bytes, ss.ConsumerCount)
		}
		if ss.MessagesRate != 0 || ss.BytesRate != 0 {
			t.Errorf("expected zero rates on first observation, got %f and %f", ss.MessagesRate, ss.BytesRate)
		}
		if ss.SampledAt.IsZero() {
			t.Error("expected sampled_at to be set")
		}

		if len(fakeSink.ConsumerBatches) != 1 {
			t.Fatalf("expected 1 consumer batch, got %d", len(fakeSink.ConsumerBatches))
		}
		cbatch := fakeSink.ConsumerBatches[0]
		if len(cbatch) != 1 {
			t.Fatalf("expected 1 consumer sample, got %d", len(cbatch))
		}
		cs := cbatch[0]
		if cs.ClusterID != "c1" || cs.Stream != "ORDERS" || cs.Consumer != "billing" {
			t.Errorf("unexpected sample identity: %q %q %q", cs.ClusterID, cs.Stream, cs.Consumer)
		}
		if cs.Pending != 42 || cs.AckPending != 3 || cs.Redelivered != 1 || cs.Waiting != 2 {
			t.Errorf("unexpected consumer counters: %+v", cs)
		}
		if cs.DeliveredRate != 0 {
			t.Errorf("expected zero delivery rate on first observation, got %f", cs.DeliveredRate)
		}
	})

	t.Run("second pass derives positive rates", func(t *testing.T) {
		pool := NewFakePool()
		pool.Connected = []string{"c1"}
		pool.Streams["c1"] = []*jetstream.StreamInfo{testStream("ORDERS", 100, 2048, 1)}
		pool.Consumers["c1/ORDERS"] = []*jetstream.ConsumerInfo{testConsumer("ORDERS", "billing", 50, 0)}
		fakeSink := &FakeSink{}
		c := newTestCollector(&FakeSource{}, pool, fakeSink)

		c.sampleStreams(context.Background())
		time.Sleep(10 * time.Millisecond)
		pool.Streams["c1"] = []*jetstream.StreamInfo{testStream("ORDERS", 150, 4096, 1)}
		pool.Consumers["c1/ORDERS"] = []*jetstream.ConsumerInfo{testConsumer("ORDERS", "billing", 75, 0)}
		c.sampleStreams(context.Background())

		if len(fakeSink.StreamBatches) != 2 {
			t.Fatalf("expected 2 stream batches, got %d", len(fakeSink.StreamBatches))
		}
		ss := fakeSink.StreamBatches[1][0]
		if ss.MessagesRate <= 0 || ss.BytesRate <= 0 {
			t.Errorf("expected positive rates on second observation, got %f and %f", ss.MessagesRate, ss.BytesRate)
		}
		cs := fakeSink.ConsumerBatches[1][0]
		if cs.DeliveredRate <= 0 {
			t.Errorf("expected positive delivery rate on second observation, got %f", cs.DeliveredRate)
		}
	})

	t.Run("failing cluster does not block the others", func(t *testing.T) {
		pool := NewFakePool()
		pool.Connected = []string{"c1", "c2"}
		pool.Streams["c1"] = []*jetstream.StreamInfo{testStream("ORDERS", 100, 2048, 0)}
		pool.StreamsErr["c2"] = errors.New("connection refused")
		fakeSink := &FakeSink{}
		c := newTestCollector(&FakeSource{}, pool, fakeSink)

		c.sampleStreams(context.Background())

		if len(fakeSink.StreamBatches) != 1 {
			t.Fatalf("expected 1 stream batch, got %d", len(fakeSink.StreamBatches))
		}
		batch := fakeSink.StreamBatches[0]
		if len(batch) != 1 || batch[0].ClusterID != "c1" {
			t.Errorf("expected only the healthy cluster in the batch, got %+v", batch)
		}
	})

	t.Run("consumer listing failure keeps stream samples", func(t *testing.T) {
		pool := NewFakePool()
		pool.Connected = []string{"c1"}
		pool.Streams["c1"] = []*jetstream.StreamInfo{testStream("ORDERS", 100, 2048, 1)}
		pool.ConsumersErr["c1"] = errors.New("timeout")
		fakeSink := &FakeSink{}
		c := newTestCollector(&FakeSource{}, pool, fakeSink)

		c.sampleStreams(context.Background())

		if len(fakeSink.StreamBatches) != 1 || len(fakeSink.StreamBatches[0]) != 1 {
			t.Fatalf("expected the stream sample to survive, got %+v", fakeSink.StreamBatches)
		}
		if len(fakeSink.ConsumerBatches) != 1 || len(fakeSink.ConsumerBatches[0]) != 0 {
			t.Errorf("expected an empty consumer batch, got %+v", fakeSink.ConsumerBatches)
		}
	})

	t.Run("no connected clusters writes nothing", func(t *testing.T) {
		fakeSink := &FakeSink{}
		c := newTestCollector(&FakeSource{}, NewFakePool(), fakeSink)

		c.sampleStreams(context.Background())

		if len(fakeSink.StreamBatches) != 0 || len(fakeSink.ConsumerBatches) != 0 {
			t.Errorf("expected no batches, got %d and %d", len(fakeSink.StreamBatches), len(fakeSink.ConsumerBatches))
		}
	})
}

func TestCollector_SampleClusters(t *testing.T) {
	t.Run("maps account usage", func(t *testing.T) {
		pool := NewFakePool()
		pool.Connected = []string{"c1"}
		pool.Accounts["c1"] = &jetstream.AccountInfo{
			Tier: jetstream.Tier{Memory: 1024, Store: 4096, Streams: 3, Consumers: 7},
		}
		fakeSink := &FakeSink{}
		c := newTestCollector(&FakeSource{}, pool, fakeSink)

		c.sampleClusters(context.Background())

		if len(fakeSink.ClusterBatches) != 1 {
			t.Fatalf("expected 1 cluster batch, got %d", len(fakeSink.ClusterBatches))
		}
		batch := fakeSink.ClusterBatches[0]
		if len(batch) != 1 {
			t.Fatalf("expected 1 cluster sample, got %d", len(batch))
		}
		cs := batch[0]
		if cs.ClusterID != "c1" {
			t.Errorf("expected cluster c1, got %q", cs.ClusterID)
		}
		if cs.Streams != 3 || cs.Consumers != 7 || cs.MemoryBytes != 1024 || cs.StorageBytes != 4096 {
			t.Errorf("unexpected usage: %+v", cs)
		}
	})

	t.Run("failing cluster is skipped", func(t *testing.T) {
		pool := NewFakePool()
		pool.Connected = []string{"c1", "c2"}
		pool.Accounts["c1"] = &jetstream.AccountInfo{Tier: jetstream.Tier{Streams: 1}}
		pool.AccountErr["c2"] = errors.New("connection refused")
		fakeSink := &FakeSink{}
		c := newTestCollector(&FakeSource{}, pool, fakeSink)

		c.sampleClusters(context.Background())

		batch := fakeSink.ClusterBatches[0]
		if len(batch) != 1 || batch[0].ClusterID != "c1" {
			t.Errorf("expected only the healthy cluster in the batch, got %+v", batch)
		}
	})

	t.Run("no connected clusters writes nothing", func(t *testing.T) {
		fakeSink := &FakeSink{}
		c := newTestCollector(&FakeSource{}, NewFakePool(), fakeSink)

		c.sampleClusters(context.Background())

		if len(fakeSink.ClusterBatches) != 0 {
			t.Errorf("expected no batches, got %d", len(fakeSink.ClusterBatches))
		}
	})
}

func TestCollector_Refresh(t *testing.T) {
	t.Run("reconciles the pool against the store", func(t *testing.T) {
		source := &FakeSource{Clusters: []store.ClusterConfig{
			{ClusterID: "c1", ServerURL: "nats://one:4222"},
			{ClusterID: "c2", ServerURL: "nats://two:4222"},
		}}
		pool := NewFakePool()
		c := newTestCollector(source, pool, &FakeSink{})

		c.Refresh(context.Background())

		if len(pool.Ensured) != 1 {
			t.Fatalf("expected 1 reconcile call, got %d", len(pool.Ensured))
		}
		if len(pool.Ensured[0]) != 2 {
			t.Errorf("expected 2 desired clusters, got %d", len(pool.Ensured[0]))
		}
	})

	t.Run("forgets baselines for removed clusters", func(t *testing.T) {
		base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		source := &FakeSource{}
		pool := NewFakePool()
		pool.Removed = []string{"gone"}
		c := newTestCollector(source, pool, &FakeSink{})
		c.tracker.Observe(rates.Key("gone", "stream", "X"), rates.Counters{Msgs: 100, At: base})
		c.tracker.Observe(rates.Key("kept", "stream", "Y"), rates.Counters{Msgs: 100, At: base})

		c.Refresh(context.Background())

		r := c.tracker.Observe(rates.Key("gone", "stream", "X"), rates.Counters{Msgs: 200, At: base.Add(5 * time.Second)})
		if r.Msgs != 0 {
			t.Errorf("expected a fresh baseline after refresh, got rate %f", r.Msgs)
		}
		r = c.tracker.Observe(rates.Key("kept", "stream", "Y"), rates.Counters{Msgs: 150, At: base.Add(5 * time.Second)})
		if r.Msgs != 10 {
			t.Errorf("expected surviving cluster baseline to hold, got rate %f", r.Msgs)
		}
	})

	t.Run("store failure skips reconcile", func(t *testing.T) {
		source := &FakeSource{Err: errors.New("connection refused")}
		pool := NewFakePool()
		c := newTestCollector(source, pool, &FakeSink{})

		c.Refresh(context.Background())

		if len(pool.Ensured) != 0 {
			t.Errorf("expected no reconcile call, got %d", len(pool.Ensured))
		}
	})
}

func TestCollector_Tick(t *testing.T) {
	c := newTestCollector(&FakeSource{}, NewFakePool(), &FakeSink{})
	ran := false
	fn := func(context.Context) { ran = true }

	c.streamMu.Lock()
	if c.tick(context.Background(), "stream sampling", &c.streamMu, fn) {
		t.Error("expected tick to be skipped while the previous run holds the lock")
	}
	if ran {
		t.Error("expected fn not to run on a skipped tick")
	}
	c.streamMu.Unlock()

	if !c.tick(context.Background(), "stream sampling", &c.streamMu, fn) {
		t.Error("expected tick to run once the lock is free")
	}
	if !ran {
		t.Error("expected fn to run")
	}
}

func TestCollector_Run(t *testing.T) {
	source := &FakeSource{Clusters: []store.ClusterConfig{{ClusterID: "c1"}}}
	pool := NewFakePool()
	pool.Connected = []string{"c1"}
	pool.Streams["c1"] = []*jetstream.StreamInfo{testStream("ORDERS", 100, 2048, 0)}
	fakeSink := &FakeSink{}
	c := New(source, pool, fakeSink, rates.NewTracker(), Options{
		StreamInterval:  5 * time.Millisecond,
		ClusterInterval: 5 * time.Millisecond,
		RefreshInterval: 5 * time.Millisecond,
		FetchTimeout:    time.Second,
		QueryTimeout:    time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for fakeSink.StreamBatchCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for a stream batch")
		case <-time.After(time.Millisecond):
		}
	}
	if !c.Running() {
		t.Error("expected Running to report true while loops are active")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Run to return")
	}
	if c.Running() {
		t.Error("expected Running to report false after shutdown")
	}
}
