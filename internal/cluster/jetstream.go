package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/KLogicHQ/natswatch/internal/store"
)

// jetStreamClient adapts the JetStream API to MetaClient by draining the
// paged listers into slices.
type jetStreamClient struct {
	js jetstream.JetStream
}

func (c *jetStreamClient) ListStreams(ctx context.Context) ([]*jetstream.StreamInfo, error) {
	lister := c.js.ListStreams(ctx)
	var infos []*jetstream.StreamInfo
	for info := range lister.Info() {
		infos = append(infos, info)
	}
	if err := lister.Err(); err != nil {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}
	return infos, nil
}

func (c *jetStreamClient) ListConsumers(ctx context.Context, stream string) ([]*jetstream.ConsumerInfo, error) {
	s, err := c.js.Stream(ctx, stream)
	if err != nil {
		return nil, fmt.Errorf("failed to look up stream %s: %w", stream, err)
	}
	lister := s.ListConsumers(ctx)
	var infos []*jetstream.ConsumerInfo
	for info := range lister.Info() {
		infos = append(infos, info)
	}
	if err := lister.Err(); err != nil {
		return nil, fmt.Errorf("failed to list consumers for stream %s: %w", stream, err)
	}
	return infos, nil
}

func (c *jetStreamClient) AccountInfo(ctx context.Context) (*jetstream.AccountInfo, error) {
	return c.js.AccountInfo(ctx)
}

// dialCluster is the production DialFunc. Reconnection is deliberately
// disabled: a dropped connection stays down until the next refresh pass
// re-dials it, so connection state only changes on refresh boundaries.
func dialCluster(cfg store.ClusterConfig, timeout time.Duration) (BrokerConn, MetaClient, error) {
	opts := []nats.Option{
		nats.Name("natswatch-" + cfg.ClusterID),
		nats.Timeout(timeout),
		nats.NoReconnect(),
	}
	switch cfg.AuthKind {
	case store.AuthUserPass:
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	case store.AuthToken:
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.ServerURL, opts...)
	if err != nil {
		return nil, nil, err
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	return nc, &jetStreamClient{js: js}, nil
}
