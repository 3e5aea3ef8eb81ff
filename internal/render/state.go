package render

import (
	"errors"
	"fmt"
)

type State string

const (
	StateIdle     State = "IDLE"
	StateRunning  State = "RUNNING"
	StateFinished State = "FINISHED"
	StateAborted  State = "ABORTED"
	StateFailed   State = "FAILED"
)

var ErrInvalidTransition = errors.New("invalid render state transition")

// transition moves *cur from `from` to `to`. The caller holds the task lock.
func transition(cur *State, from, to State) error {
	if *cur != from {
		return fmt.Errorf("%w: expected %s, got %s", ErrInvalidTransition, from, *cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	*cur = to
	return nil
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateRunning
	case StateRunning:
		return to == StateFinished || to == StateAborted || to == StateFailed
	case StateAborted:
		return to == StateRunning
	default:
		return false
	}
}
