package alerting

import (
	"sync"
	"time"
)

// Outcome is the action the state machine requests after folding in one
// evaluation result.
type Outcome int

const (
	// OutcomeNone means nothing changed and no event should be emitted.
	OutcomeNone Outcome = iota
	// OutcomeFire means a fire event must be emitted.
	OutcomeFire
	// OutcomeResolve means a resolve event must be emitted.
	OutcomeResolve
)

// ruleState is one rule's in-memory alert state.
type ruleState struct {
	firing      bool
	lastFiredAt time.Time
}

// StateMachine tracks per-rule firing state. The state is process-local and
// starts empty: after a restart every rule is idle with no fire history, so
// an incident that spans a restart may produce one extra fire event.
type StateMachine struct {
	mu    sync.Mutex
	rules map[string]*ruleState

	now func() time.Time
}

// NewStateMachine creates an empty state machine.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		rules: make(map[string]*ruleState),
		now:   time.Now,
	}
}

// Apply folds one evaluation result into the rule's state and reports what
// to emit. While the rule stays exceeded a fire event repeats once per
// cooldown window; the resolve event is emitted exactly once, on the
// exceeded-to-clear edge, and is never gated by the cooldown. lastFiredAt
// survives a resolve so a re-fire inside the cooldown window stays
// suppressed.
func (m *StateMachine) Apply(ruleID string, exceeded bool, cooldown time.Duration) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.rules[ruleID]
	if !ok {
		st = &ruleState{}
		m.rules[ruleID] = st
	}

	if exceeded {
		now := m.now()
		if !st.lastFiredAt.IsZero() && now.Sub(st.lastFiredAt) < cooldown {
			return OutcomeNone
		}
		st.firing = true
		st.lastFiredAt = now
		return OutcomeFire
	}
	if st.firing {
		st.firing = false
		return OutcomeResolve
	}
	return OutcomeNone
}

// Firing reports whether the rule is currently firing.
func (m *StateMachine) Firing(ruleID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.rules[ruleID]
	return ok && st.firing
}
