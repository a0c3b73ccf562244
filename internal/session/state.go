package session

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidTransition indicates a state change the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid session state transition")

// State is a step of the export lifecycle.
type State int

// Lifecycle states.
const (
	Idle State = iota
	Analyzing
	StrategySelected
	Rendering
	Composing
	Finalizing
	Succeeded
	Failed
	Cancelled
)

var stateNames = [...]string{
	Idle:             "idle",
	Analyzing:        "analyzing",
	StrategySelected: "strategy-selected",
	Rendering:        "rendering",
	Composing:        "composing",
	Finalizing:       "finalizing",
	Succeeded:        "succeeded",
	Failed:           "failed",
	Cancelled:        "cancelled",
}

// String returns the state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether s ends the session.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed || s == Cancelled
}

// Rendering and Composing may return to StrategySelected when a pipeline
// fails and the next fallback is tried.
var transitions = map[State][]State{
	Idle:             {Analyzing, Failed, Cancelled},
	Analyzing:        {StrategySelected, Failed, Cancelled},
	StrategySelected: {Rendering, Failed, Cancelled},
	Rendering:        {Composing, StrategySelected, Failed, Cancelled},
	Composing:        {Finalizing, StrategySelected, Failed, Cancelled},
	Finalizing:       {Succeeded, Failed, Cancelled},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}
