package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// WorkerKeyPrefix is the Redis key prefix for worker status entries.
	WorkerKeyPrefix = "natswatch:worker:"
	// StatusTTL is how long a status entry survives without a refresh.
	StatusTTL = 2 * time.Minute
	// DefaultReportInterval is how often statuses are written to Redis.
	DefaultReportInterval = 30 * time.Second
)

// WorkerStatus is the per-worker heartbeat written to Redis.
type WorkerStatus struct {
	Worker      string    `json:"worker"`
	Running     bool      `json:"running"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// Reporter periodically writes worker statuses to Redis so external
// monitors can watch the process without reaching its HTTP surface.
type Reporter struct {
	redis     *redis.Client
	interval  time.Duration
	startedAt time.Time
	workers   map[string]RunReporter
}

// NewReporter creates a reporter for the given workers, keyed by the name
// used in the Redis key. A nil client disables reporting.
func NewReporter(client *redis.Client, workers map[string]RunReporter) *Reporter {
	return &Reporter{
		redis:     client,
		interval:  DefaultReportInterval,
		startedAt: time.Now().UTC(),
		workers:   workers,
	}
}

// SetInterval overrides the reporting cadence.
func (r *Reporter) SetInterval(interval time.Duration) {
	r.interval = interval
}

// Run writes statuses on every tick until ctx is cancelled, then writes one
// final snapshot so the keys reflect the shutdown. Write failures are
// logged, never fatal.
func (r *Reporter) Run(ctx context.Context) {
	if r.redis == nil {
		slog.Warn("Worker status reporting disabled, no Redis client")
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.writeStatuses(context.Background())
			return
		case <-ticker.C:
			r.writeStatuses(ctx)
		}
	}
}

// statuses snapshots every worker's current state.
func (r *Reporter) statuses() []WorkerStatus {
	now := time.Now().UTC()
	out := make([]WorkerStatus, 0, len(r.workers))
	for name, worker := range r.workers {
		out = append(out, WorkerStatus{
			Worker:      name,
			Running:     worker.Running(),
			StartedAt:   r.startedAt,
			LastUpdated: now,
		})
	}
	return out
}

func (r *Reporter) writeStatuses(ctx context.Context) {
	for _, status := range r.statuses() {
		data, err := json.Marshal(status)
		if err != nil {
			slog.Error("Failed to marshal worker status", "worker", status.Worker, "error", err)
			continue
		}
		key := WorkerKeyPrefix + status.Worker
		if err := r.redis.Set(ctx, key, data, StatusTTL).Err(); err != nil {
			slog.Error("Failed to write worker status to Redis", "worker", status.Worker, "error", err)
			continue
		}
		slog.Debug("Worker status written to Redis", "key", key)
	}
}

// ConnectRedis creates and validates a Redis connection.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return client, nil
}
