package task

import "errors"

// State represents the lifecycle state of a task
type State string

const (
	StateCreated    State = "created"
	StateDispatched State = "dispatched"
	StateProcessing State = "processing"
	StateVerifying  State = "verifying"
	StateFinished   State = "finished"
	StateError      State = "error"
)

var (
	// ErrTerminalState is returned for any transition out of finished or error
	ErrTerminalState = errors.New("task: terminal state")
	// ErrInvalidTransition is returned when the target state does not follow the current one
	ErrInvalidTransition = errors.New("task: invalid transition")
)

var successor = map[State]State{
	StateCreated:    StateDispatched,
	StateDispatched: StateProcessing,
	StateProcessing: StateVerifying,
	StateVerifying:  StateFinished,
}

// IsTerminal returns true for finished and error
func (s State) IsTerminal() bool {
	return s == StateFinished || s == StateError
}

// IsValid returns true for a known state
func (s State) IsValid() bool {
	switch s {
	case StateCreated, StateDispatched, StateProcessing, StateVerifying, StateFinished, StateError:
		return true
	}
	return false
}

// CanTransition reports whether to directly follows s
func (s State) CanTransition(to State) bool {
	return s.check(to) == nil
}

func (s State) check(to State) error {
	if s.IsTerminal() {
		return ErrTerminalState
	}
	if to == StateError && s.IsValid() {
		return nil
	}
	if next, ok := successor[s]; ok && next == to {
		return nil
	}
	return ErrInvalidTransition
}
