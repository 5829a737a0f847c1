package alerting

import (
	"context"
	"sync"

	"github.com/KLogicHQ/natswatch/internal/notify"
	"github.com/KLogicHQ/natswatch/internal/sink"
	"github.com/KLogicHQ/natswatch/internal/store"
)

// FakeRules serves a static rule list.
type FakeRules struct {
	Rules []*store.AlertRule
	Err   error
	Calls int
}

func (f *FakeRules) ListEnabledRules(ctx context.Context) ([]*store.AlertRule, error) {
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Rules, nil
}

// FakeMetrics replays canned aggregate values in call order and records
// every query. Once the values run out it reports no data.
type FakeMetrics struct {
	Values []*float64
	Err    error

	mu      sync.Mutex
	Queries []sink.AggregateQuery
	next    int
}

func (f *FakeMetrics) Aggregate(ctx context.Context, q sink.AggregateQuery) (*float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Queries = append(f.Queries, q)
	if f.Err != nil {
		return nil, f.Err
	}
	if f.next >= len(f.Values) {
		return nil, nil
	}
	v := f.Values[f.next]
	f.next++
	return v, nil
}

// QueryCount reports how many aggregate queries have been issued.
func (f *FakeMetrics) QueryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Queries)
}

// FakeEvents records alert events in write order.
type FakeEvents struct {
	Err error

	mu     sync.Mutex
	Events []sink.AlertEvent
}

func (f *FakeEvents) WriteAlertEvent(ctx context.Context, ev sink.AlertEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Events = append(f.Events, ev)
	return nil
}

// EventCount reports how many events have been recorded.
func (f *FakeEvents) EventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Events)
}

// FakeNotifier records every dispatched event and its channel list.
type FakeNotifier struct {
	mu       sync.Mutex
	Events   []notify.Event
	Channels [][]store.Channel
}

func (f *FakeNotifier) Dispatch(ctx context.Context, event notify.Event, channels []store.Channel) []notify.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events = append(f.Events, event)
	f.Channels = append(f.Channels, channels)
	return nil
}

func floatPtr(v float64) *float64 {
	return &v
}
