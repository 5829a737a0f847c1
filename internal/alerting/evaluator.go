package alerting

import (
	"context"
	"log/slog"
	"sync"

	"github.com/KLogicHQ/natswatch/internal/sink"
	"github.com/KLogicHQ/natswatch/internal/store"
)

// Evaluator resolves a rule's metric address and queries the sink for its
// current aggregate value.
type Evaluator struct {
	metrics MetricReader

	// badAddrs remembers metric addresses that failed to parse so each is
	// logged once, not on every cycle.
	badAddrs sync.Map
}

// NewEvaluator creates an evaluator backed by the given metric reader.
func NewEvaluator(metrics MetricReader) *Evaluator {
	return &Evaluator{metrics: metrics}
}

// Evaluate returns the rule's current metric value, or nil when the address
// is malformed or no samples fall inside the window. A nil value means "no
// data": the caller must skip the rule without a state transition.
func (e *Evaluator) Evaluate(ctx context.Context, rule *store.AlertRule) (*float64, error) {
	addr, err := parseAddress(rule.Metric)
	if err != nil {
		if _, seen := e.badAddrs.LoadOrStore(rule.Metric, true); !seen {
			slog.Warn("Skipping rule with unresolvable metric",
				"rule_id", rule.RuleID,
				"metric", rule.Metric,
				"error", err,
			)
		}
		return nil, nil
	}

	q := sink.AggregateQuery{
		Table:    addr.table,
		Column:   addr.column,
		Fn:       rule.Aggregation,
		Window:   rule.Window(),
		Stream:   addr.stream,
		Consumer: addr.consumer,
	}
	if rule.ClusterID != nil {
		q.ClusterID = *rule.ClusterID
	}
	return e.metrics.Aggregate(ctx, q)
}

// Compare applies a threshold operator with standard numeric semantics.
// Unknown operators evaluate to false.
func Compare(value float64, operator string, threshold float64) bool {
	switch operator {
	case "gt":
		return value > threshold
	case "lt":
		return value < threshold
	case "gte":
		return value >= threshold
	case "lte":
		return value <= threshold
	case "eq":
		return value == threshold
	case "neq":
		return value != threshold
	default:
		return false
	}
}
