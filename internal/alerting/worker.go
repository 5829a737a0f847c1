package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/KLogicHQ/natswatch/internal/notify"
	"github.com/KLogicHQ/natswatch/internal/sink"
	"github.com/KLogicHQ/natswatch/internal/store"
)

// Options holds the worker's cadence and per-call bounds.
type Options struct {
	Interval     time.Duration
	QueryTimeout time.Duration
}

// Worker runs the alert evaluation loop: every interval it loads the enabled
// rules, evaluates each against the sink and emits fire/resolve events.
type Worker struct {
	rules    RuleSource
	eval     *Evaluator
	states   *StateMachine
	events   EventRecorder
	notifier Notifier
	opts     Options

	cycleMu sync.Mutex
	running atomic.Bool
}

// NewWorker creates an evaluation worker. It does not start the loop; call
// Run.
func NewWorker(rules RuleSource, eval *Evaluator, states *StateMachine, events EventRecorder, notifier Notifier, opts Options) *Worker {
	return &Worker{
		rules:    rules,
		eval:     eval,
		states:   states,
		events:   events,
		notifier: notifier,
		opts:     opts,
	}
}

// Running reports whether the evaluation loop is active.
func (w *Worker) Running() bool {
	return w.running.Load()
}

// Run evaluates rules on every tick until ctx is cancelled. A tick that
// arrives while the previous cycle is still in flight is skipped, never
// queued.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("Starting alert evaluation loop", "interval", w.opts.Interval)
	w.running.Store(true)
	defer w.running.Store(false)

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("Alert evaluation loop stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) bool {
	if !w.cycleMu.TryLock() {
		slog.Debug("Skipping tick, previous run still in flight", "loop", "alert evaluation")
		return false
	}
	defer w.cycleMu.Unlock()
	w.runCycle(ctx)
	return true
}

// runCycle evaluates every enabled rule once, sequentially. Rules are
// independent: one rule's failure never stops the rest of the cycle.
func (w *Worker) runCycle(ctx context.Context) {
	loadCtx, cancel := context.WithTimeout(ctx, w.opts.QueryTimeout)
	rules, err := w.rules.ListEnabledRules(loadCtx)
	cancel()
	if err != nil {
		slog.Error("Failed to load alert rules", "error", err)
		return
	}

	for _, rule := range rules {
		if ctx.Err() != nil {
			return
		}
		w.evaluateRule(ctx, rule)
	}
}

// evaluateRule runs one rule through evaluate, compare, state transition
// and, on a transition, audit write then notification dispatch.
func (w *Worker) evaluateRule(ctx context.Context, rule *store.AlertRule) {
	queryCtx, cancel := context.WithTimeout(ctx, w.opts.QueryTimeout)
	value, err := w.eval.Evaluate(queryCtx, rule)
	cancel()
	if err != nil {
		slog.Error("Failed to evaluate rule",
			"rule_id", rule.RuleID,
			"metric", rule.Metric,
			"error", err,
		)
		return
	}
	if value == nil {
		// No samples in the window: the rule keeps its current state.
		return
	}

	exceeded := Compare(*value, rule.Operator, rule.Threshold)
	outcome := w.states.Apply(rule.RuleID, exceeded, rule.Cooldown())
	if outcome == OutcomeNone {
		return
	}

	status := sink.StatusFiring
	if outcome == OutcomeResolve {
		status = sink.StatusResolved
	}
	event := sink.AlertEvent{
		EventID:   uuid.NewString(),
		RuleID:    rule.RuleID,
		ClusterID: rule.ClusterID,
		Metric:    rule.Metric,
		Status:    status,
		Severity:  rule.Severity,
		Value:     *value,
		Threshold: rule.Threshold,
		Message:   eventMessage(rule, status, *value),
		CreatedAt: time.Now().UTC(),
	}

	// The audit row is committed before any notification goes out, so a
	// dispatch failure cannot produce a duplicate transition.
	writeCtx, cancel := context.WithTimeout(ctx, w.opts.QueryTimeout)
	if err := w.events.WriteAlertEvent(writeCtx, event); err != nil {
		slog.Error("Failed to record alert event",
			"rule_id", rule.RuleID,
			"status", status,
			"error", err,
		)
	}
	cancel()

	slog.Info("Alert state changed",
		"rule_id", rule.RuleID,
		"rule", rule.Name,
		"status", status,
		"value", *value,
		"threshold", rule.Threshold,
	)

	w.notifier.Dispatch(ctx, notify.Event{
		RuleID:    rule.RuleID,
		RuleName:  rule.Name,
		Metric:    rule.Metric,
		Status:    status,
		Severity:  rule.Severity,
		Value:     *value,
		Threshold: rule.Threshold,
		Message:   event.Message,
		At:        event.CreatedAt,
	}, rule.Channels)
}

// eventMessage renders the one-line summary stored with the event and sent
// to channels.
func eventMessage(rule *store.AlertRule, status string, value float64) string {
	cond := fmt.Sprintf("%s(%s) over %ds %s %s",
		rule.Aggregation, rule.Metric, rule.WindowSeconds, rule.Operator, formatThreshold(rule))
	if status == sink.StatusResolved {
		return fmt.Sprintf("%s: recovered, %s no longer holds (observed %.2f)", rule.Name, cond, value)
	}
	return fmt.Sprintf("%s: %s (observed %.2f)", rule.Name, cond, value)
}

func formatThreshold(rule *store.AlertRule) string {
	if rule.ThresholdType == "percent" {
		return fmt.Sprintf("%.2f%%", rule.Threshold)
	}
	return fmt.Sprintf("%.2f", rule.Threshold)
}
