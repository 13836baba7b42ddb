package agents

import (
	"sync"
)

// State is a step of the orchestrator state machine
type State string

const (
	StateInit         State = "INIT"
	StateGathering    State = "GATHERING"
	StateComposing    State = "COMPOSING"
	StateModelCall    State = "MODEL_CALL"
	StateValidating   State = "VALIDATING"
	StateDone         State = "DONE"
	StateDegradedDone State = "DEGRADED_DONE"
)

// Terminal reports whether a run ends in s
func (s State) Terminal() bool {
	return s == StateDone || s == StateDegradedDone
}

// trace records visited states and accumulated warnings of one run.
// Warnings are append-only; concurrent tool steps add to them under the mutex.
type trace struct {
	mu       sync.Mutex
	states   []State
	warnings []string
}

func (t *trace) enter(s State) {
	t.mu.Lock()
	t.states = append(t.states, s)
	t.mu.Unlock()
}

func (t *trace) warn(ws ...string) {
	if len(ws) == 0 {
		return
	}
	t.mu.Lock()
	t.warnings = append(t.warnings, ws...)
	t.mu.Unlock()
}

func (t *trace) current() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.states) == 0 {
		return ""
	}
	return t.states[len(t.states)-1]
}

func (t *trace) snapshot() ([]State, []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]State(nil), t.states...), append([]string(nil), t.warnings...)
}

func stateNames(states []State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = string(s)
	}
	return out
}
