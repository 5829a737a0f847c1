package cluster

import (
	"context"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/KLogicHQ/natswatch/internal/store"
)

// FakeConn is a test fake for BrokerConn.
type FakeConn struct {
	Closed      bool
	DrainCalled int
	DrainErr    error
}

func (f *FakeConn) IsClosed() bool {
	return f.Closed
}

func (f *FakeConn) Drain() error {
	f.DrainCalled++
	if f.DrainErr != nil {
		return f.DrainErr
	}
	f.Closed = true
	return nil
}

func (f *FakeConn) Close() {
	f.Closed = true
}

// FakeMetaClient is a test fake for MetaClient.
type FakeMetaClient struct {
	Streams      []*jetstream.StreamInfo
	Consumers    map[string][]*jetstream.ConsumerInfo
	Account      *jetstream.AccountInfo
	StreamsErr   error
	ConsumersErr error
	AccountErr   error
}

func (f *FakeMetaClient) ListStreams(ctx context.Context) ([]*jetstream.StreamInfo, error) {
	if f.StreamsErr != nil {
		return nil, f.StreamsErr
	}
	return f.Streams, nil
}

func (f *FakeMetaClient) ListConsumers(ctx context.Context, stream string) ([]*jetstream.ConsumerInfo, error) {
	if f.ConsumersErr != nil {
		return nil, f.ConsumersErr
	}
	return f.Consumers[stream], nil
}

func (f *FakeMetaClient) AccountInfo(ctx context.Context) (*jetstream.AccountInfo, error) {
	if f.AccountErr != nil {
		return nil, f.AccountErr
	}
	return f.Account, nil
}

// FakeDialer hands out fake connections and records every dial.
type FakeDialer struct {
	Conns   map[string]*FakeConn
	Clients map[string]*FakeMetaClient
	Errs    map[string]error
	Dialed  []string
}

func NewFakeDialer() *FakeDialer {
	return &FakeDialer{
		Conns:   make(map[string]*FakeConn),
		Clients: make(map[string]*FakeMetaClient),
		Errs:    make(map[string]error),
	}
}

func (f *FakeDialer) Dial(cfg store.ClusterConfig, timeout time.Duration) (BrokerConn, MetaClient, error) {
	f.Dialed = append(f.Dialed, cfg.ClusterID)
	if err := f.Errs[cfg.ClusterID]; err != nil {
		return nil, nil, err
	}
	nc := &FakeConn{}
	f.Conns[cfg.ClusterID] = nc
	client := f.Clients[cfg.ClusterID]
	if client == nil {
		client = &FakeMetaClient{}
		f.Clients[cfg.ClusterID] = client
	}
	return nc, client, nil
}
