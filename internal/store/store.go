package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// Store wraps a database connection and provides read-only configuration queries.
type Store struct {
	conn *sql.DB
}

// NewStore opens a connection to the configuration database using the provided DSN.
func NewStore(dsn string) (*Store, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open configuration database: %w", err)
	}

	// Read-only workload: a small pool is plenty.
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(3)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping configuration database: %w", err)
	}

	slog.Info("Successfully connected to configuration database")

	return &Store{conn: conn}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		slog.Info("Closing configuration database connection")
		return s.conn.Close()
	}
	return nil
}

// ListConnectedClusters returns the clusters that should be dialed and
// sampled, i.e. those whose status is "connected", with their primary
// connection record.
func (s *Store) ListConnectedClusters(ctx context.Context) ([]ClusterConfig, error) {
	query := `
		SELECT cluster_id, name, status, server_url, auth_kind, username, password, token
		FROM clusters
		WHERE status = $1
		ORDER BY cluster_id
	`
	rows, err := s.conn.QueryContext(ctx, query, StatusConnected)
	if err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}
	defer rows.Close()

	var clusters []ClusterConfig
	for rows.Next() {
		var c ClusterConfig
		var username, password, token sql.NullString
		if err := rows.Scan(&c.ClusterID, &c.Name, &c.Status, &c.ServerURL, &c.AuthKind, &username, &password, &token); err != nil {
			return nil, fmt.Errorf("failed to scan cluster row: %w", err)
		}
		c.Username = username.String
		c.Password = password.String
		c.Token = token.String
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cluster rows: %w", err)
	}
	return clusters, nil
}

// ListEnabledRules returns all enabled alert rules with their enabled
// notification channels attached in configured order.
func (s *Store) ListEnabledRules(ctx context.Context) ([]*AlertRule, error) {
	query := `
		SELECT rule_id, org_id, cluster_id, name, metric, operator, threshold,
		       threshold_type, window_seconds, aggregation, severity,
		       cooldown_minutes, enabled, created_at, updated_at
		FROM alert_rules
		WHERE enabled = TRUE
		ORDER BY rule_id
	`
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert rules: %w", err)
	}
	defer rows.Close()

	var rules []*AlertRule
	ruleIDs := make([]string, 0)
	byID := make(map[string]*AlertRule)
	for rows.Next() {
		var r AlertRule
		var clusterID sql.NullString
		if err := rows.Scan(
			&r.RuleID,
			&r.OrgID,
			&clusterID,
			&r.Name,
			&r.Metric,
			&r.Operator,
			&r.Threshold,
			&r.ThresholdType,
			&r.WindowSeconds,
			&r.Aggregation,
			&r.Severity,
			&r.CooldownMinutes,
			&r.Enabled,
			&r.CreatedAt,
			&r.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert rule row: %w", err)
		}
		if clusterID.Valid {
			id := clusterID.String
			r.ClusterID = &id
		}
		rules = append(rules, &r)
		ruleIDs = append(ruleIDs, r.RuleID)
		byID[r.RuleID] = &r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert rule rows: %w", err)
	}

	if len(rules) == 0 {
		return rules, nil
	}

	channels, err := s.channelsByRuleIDs(ctx, ruleIDs)
	if err != nil {
		return nil, err
	}
	for ruleID, chans := range channels {
		if rule, ok := byID[ruleID]; ok {
			rule.Channels = chans
		}
	}
	return rules, nil
}

// channelsByRuleIDs fetches the enabled channels for a set of rules.
// Channels come back ordered by their position within each rule.
func (s *Store) channelsByRuleIDs(ctx context.Context, ruleIDs []string) (map[string][]Channel, error) {
	query := `
		SELECT rc.rule_id, c.channel_id, c.name, c.type, c.config, c.enabled
		FROM alert_rule_channels rc
		JOIN notification_channels c ON c.channel_id = rc.channel_id
		WHERE rc.rule_id = ANY($1) AND c.enabled = TRUE
		ORDER BY rc.rule_id, rc.position
	`
	rows, err := s.conn.QueryContext(ctx, query, pq.Array(ruleIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list rule channels: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]Channel)
	for rows.Next() {
		var ruleID string
		var ch Channel
		var cfg []byte
		if err := rows.Scan(&ruleID, &ch.ChannelID, &ch.Name, &ch.Type, &cfg, &ch.Enabled); err != nil {
			return nil, fmt.Errorf("failed to scan channel row: %w", err)
		}
		ch.Config = cfg
		result[ruleID] = append(result[ruleID], ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate channel rows: %w", err)
	}
	return result, nil
}
