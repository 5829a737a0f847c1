// Package rates derives per-second rates from cumulative broker counters.
//
// NATS exposes message and byte totals as monotonically increasing counters
// that reset to zero when a stream is recreated or a server restarts. This
// package turns two successive readings into per-second rates and owns the
// bookkeeping of previous readings across collection cycles.
package rates

import (
	"strings"
	"sync"
	"time"
)

// Counters is a point-in-time reading of an entity's cumulative counters.
type Counters struct {
	Msgs  uint64
	Bytes uint64
	At    time.Time
}

// Rates holds per-second rates derived from two successive readings.
type Rates struct {
	Msgs  float64
	Bytes float64
}

// Derive computes per-second rates between two readings.
// A counter that went backwards is treated as a reset and yields a zero
// rate for that counter only. Non-positive elapsed time yields zero rates.
func Derive(prev, cur Counters) Rates {
	elapsed := cur.At.Sub(prev.At).Seconds()
	if elapsed <= 0 {
		return Rates{}
	}
	var r Rates
	if cur.Msgs >= prev.Msgs {
		r.Msgs = float64(cur.Msgs-prev.Msgs) / elapsed
	}
	if cur.Bytes >= prev.Bytes {
		r.Bytes = float64(cur.Bytes-prev.Bytes) / elapsed
	}
	return r
}

// Tracker remembers the last reading per key and derives rates against it.
// It is safe for concurrent use; keys are independent of each other.
type Tracker struct {
	prev sync.Map // key -> Counters
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Key composes a tracker key from a cluster ID, an entity kind and an
// entity name, e.g. Key("c1", "stream", "ORDERS").
func Key(clusterID, kind, name string) string {
	return clusterID + "/" + kind + "/" + name
}

// Observe records a reading and returns the rates derived against the
// previous reading for the same key. The first reading for a key records
// a baseline and returns zero rates.
func (t *Tracker) Observe(key string, cur Counters) Rates {
	prev, loaded := t.prev.LoadOrStore(key, cur)
	if !loaded {
		return Rates{}
	}
	t.prev.Store(key, cur)
	return Derive(prev.(Counters), cur)
}

// Forget drops all remembered readings whose key starts with prefix.
// Called when a cluster leaves the configuration so a stale baseline
// cannot produce a bogus rate if the same ID shows up again later.
func (t *Tracker) Forget(prefix string) {
	t.prev.Range(func(key, _ any) bool {
		if strings.HasPrefix(key.(string), prefix) {
			t.prev.Delete(key)
		}
		return true
	})
}
