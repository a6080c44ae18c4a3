package harness

import (
	"errors"
	"fmt"
)

var (
	// ErrClockStalled means a clock did not advance across a reset.
	ErrClockStalled = errors.New("harness: clock stalled")

	// ErrBadTransition means the runner tried an illegal state change.
	ErrBadTransition = errors.New("harness: illegal state transition")
)

// State is a runner state.
type State string

// Runner states.
const (
	StateInit    State = "INIT"
	StateReset   State = "RESET"
	StateRunning State = "RUNNING"
	StateDrain   State = "DRAIN"
	StateVerdict State = "VERDICT"
	StateDone    State = "DONE"
)

var transitions = map[State][]State{
	"":           {StateInit},
	StateInit:    {StateReset},
	StateReset:   {StateRunning, StateVerdict},
	StateRunning: {StateDrain, StateVerdict},
	StateDrain:   {StateVerdict},
	StateVerdict: {StateReset, StateRunning, StateDone},
}

// checkTransition returns ErrBadTransition unless from may move to to.
func checkTransition(from, to State) error {
	for _, s := range transitions[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %q -> %q", ErrBadTransition, from, to)
}
