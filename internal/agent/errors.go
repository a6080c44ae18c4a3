package agent

import (
	"errors"
	"fmt"

	"github.com/roach88/fifoverify/internal/sim"
)

// LivenessError reports an actor that saw its controlling flag asserted for
// more than its stall limit of consecutive edges.
type LivenessError struct {
	// Actor is the owner name of the stalled actor.
	Actor string

	// Flag is the pin that held the actor off ("full" or "empty").
	Flag string

	// Index is the position of the item the actor was waiting on.
	Index int

	// Edges is the number of consecutive stalled edges.
	Edges int

	// At is the simulated time the limit was exceeded.
	At sim.Time
}

// Error implements the error interface.
func (e *LivenessError) Error() string {
	return fmt.Sprintf("%s: %s asserted for %d consecutive edges at item %d (t=%v)",
		e.Actor, e.Flag, e.Edges, e.Index, e.At)
}

// IsLiveness returns true if err is or wraps a *LivenessError.
func IsLiveness(err error) bool {
	var le *LivenessError
	return errors.As(err, &le)
}
