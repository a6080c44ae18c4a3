package sim

import "github.com/pkg/errors"

var (
	// ErrKilled is returned by the wait calls of a process that has been killed.
	ErrKilled = errors.New("sim: process killed")

	// ErrDeadlock is returned by Run when the main process waits on something
	// that can never happen: no process is runnable and no event is pending.
	ErrDeadlock = errors.New("sim: no runnable process and no pending event")

	// ErrContention is returned when a signal that already has an owner is claimed.
	ErrContention = errors.New("sim: signal already driven")

	// ErrKernelUsed is returned when Run is called on a kernel that already ran.
	ErrKernelUsed = errors.New("sim: kernel already ran")
)

// IsKilled reports whether err comes from a killed process.
func IsKilled(err error) bool {
	return errors.Is(err, ErrKilled)
}
