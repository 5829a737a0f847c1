package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/lib/pq"
)

// connectTimeout is the maximum time to wait for the initial connectivity check.
const connectTimeout = 5 * time.Second

// Sink wraps the time-series database connection.
type Sink struct {
	conn *sql.DB
}

// NewSink opens the time-series database and verifies connectivity.
func NewSink(dsn string) (*Sink, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sink connection: %w", err)
	}

	// Connection pool settings
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(3)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping sink database: %w", err)
	}

	slog.Info("Successfully connected to metrics sink")
	return &Sink{conn: conn}, nil
}

// Close closes the database connection.
func (s *Sink) Close() error {
	if s.conn != nil {
		slog.Info("Closing sink connection")
		return s.conn.Close()
	}
	return nil
}

var (
	streamColumns   = []string{"cluster_id", "stream", "messages", "bytes", "messages_rate", "bytes_rate", "consumer_count", "sampled_at"}
	consumerColumns = []string{"cluster_id", "stream", "consumer", "pending", "ack_pending", "redelivered", "waiting", "delivered_rate", "sampled_at"}
	clusterColumns  = []string{"cluster_id", "streams", "consumers", "memory_bytes", "storage_bytes", "sampled_at"}
)

// WriteStreamMetrics bulk-inserts stream samples. An empty batch is a no-op.
func (s *Sink) WriteStreamMetrics(ctx context.Context, samples []StreamSample) error {
	if len(samples) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(samples))
	for _, m := range samples {
		rows = append(rows, []any{
			m.ClusterID, m.Stream, int64(m.Messages), int64(m.Bytes),
			m.MessagesRate, m.BytesRate, m.ConsumerCount, m.SampledAt,
		})
	}
	return s.copyRows(ctx, "stream_metrics", streamColumns, rows)
}

// WriteConsumerMetrics bulk-inserts consumer samples. An empty batch is a no-op.
func (s *Sink) WriteConsumerMetrics(ctx context.Context, samples []ConsumerSample) error {
	if len(samples) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(samples))
	for _, m := range samples {
		rows = append(rows, []any{
			m.ClusterID, m.Stream, m.Consumer, int64(m.Pending),
			m.AckPending, m.Redelivered, m.Waiting, m.DeliveredRate, m.SampledAt,
		})
	}
	return s.copyRows(ctx, "consumer_metrics", consumerColumns, rows)
}

// WriteClusterMetrics bulk-inserts cluster samples. An empty batch is a no-op.
func (s *Sink) WriteClusterMetrics(ctx context.Context, samples []ClusterSample) error {
	if len(samples) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(samples))
	for _, m := range samples {
		rows = append(rows, []any{
			m.ClusterID, m.Streams, m.Consumers,
			int64(m.MemoryBytes), int64(m.StorageBytes), m.SampledAt,
		})
	}
	return s.copyRows(ctx, "cluster_metrics", clusterColumns, rows)
}

// copyRows streams one batch into table over the COPY protocol inside a
// single transaction. Counter values are converted to int64 by the callers
// because the postgres driver rejects uint64 parameters.
func (s *Sink) copyRows(ctx context.Context, table string, columns []string, rows [][]any) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin %s batch: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, columns...))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare %s copy: %w", table, err)
	}

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("failed to buffer %s row: %w", table, err)
		}
	}

	// An Exec with no arguments flushes the buffered rows to the server.
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		tx.Rollback()
		return fmt.Errorf("failed to flush %s copy: %w", table, err)
	}
	if err := stmt.Close(); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to close %s copy: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s batch: %w", table, err)
	}
	return nil
}

// WriteAlertEvent appends one alert transition to the audit trail.
func (s *Sink) WriteAlertEvent(ctx context.Context, ev AlertEvent) error {
	query := `
		INSERT INTO alert_events (event_id, rule_id, cluster_id, metric, status, severity, value, threshold, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.conn.ExecContext(ctx, query,
		ev.EventID, ev.RuleID, ev.ClusterID, ev.Metric, ev.Status,
		ev.Severity, ev.Value, ev.Threshold, ev.Message, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert alert event: %w", err)
	}
	return nil
}

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// metricTables is the closed set of tables aggregate queries may touch.
var metricTables = map[string]bool{
	"stream_metrics":   true,
	"consumer_metrics": true,
	"cluster_metrics":  true,
}

// normalizeFn maps a rule aggregation to a SQL aggregate, or "" if unsupported.
func normalizeFn(fn string) string {
	switch strings.ToLower(strings.TrimSpace(fn)) {
	case "avg", "min", "max", "sum", "count":
		return strings.ToLower(strings.TrimSpace(fn))
	default:
		return ""
	}
}

// Aggregate runs one aggregate over the trailing window described by q.
// It returns nil when the window holds no rows (the aggregate is SQL NULL),
// so callers can tell "no data" apart from a genuine zero.
func (s *Sink) Aggregate(ctx context.Context, q AggregateQuery) (*float64, error) {
	if !metricTables[q.Table] {
		return nil, fmt.Errorf("unknown metric table %q", q.Table)
	}
	if !identPattern.MatchString(q.Column) {
		return nil, fmt.Errorf("unsafe column %q", q.Column)
	}
	fn := normalizeFn(q.Fn)
	if fn == "" {
		return nil, fmt.Errorf("unsupported aggregation %q", q.Fn)
	}
	if q.Window <= 0 {
		return nil, fmt.Errorf("aggregate window must be > 0")
	}

	expr := "COUNT(*)"
	if fn != "count" {
		expr = fmt.Sprintf("%s(%s)", strings.ToUpper(fn), q.Column)
	}

	since := time.Now().UTC().Add(-q.Window)
	clauses := []string{"sampled_at >= $1"}
	args := []any{since}
	if q.ClusterID != "" {
		args = append(args, q.ClusterID)
		clauses = append(clauses, fmt.Sprintf("cluster_id = $%d", len(args)))
	}
	if q.Stream != "" {
		args = append(args, q.Stream)
		clauses = append(clauses, fmt.Sprintf("stream = $%d", len(args)))
	}
	if q.Consumer != "" {
		args = append(args, q.Consumer)
		clauses = append(clauses, fmt.Sprintf("consumer = $%d", len(args)))
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s", expr, q.Table, strings.Join(clauses, " AND "))

	var value sql.NullFloat64
	if err := s.conn.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		return nil, fmt.Errorf("failed to aggregate %s.%s: %w", q.Table, q.Column, err)
	}
	if !value.Valid {
		return nil, nil
	}
	return &value.Float64, nil
}
