package flow

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfBounds   = errors.New("flow field index out of bounds")
	ErrNonFinite     = errors.New("flow displacement is not finite")
	ErrMalformedFlow = errors.New("malformed flow file")
	ErrFlowBuilding  = errors.New("flow building failed")
)

// BuildError reports a frame pair whose flow could not be produced. It is
// structural: retrying without an external fix fails the same way.
type BuildError struct {
	Key  Key
	Path string
	Msg  string
	Err  error
}

func (e *BuildError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: frames %d -> %d (%s)", ErrFlowBuilding, e.Key.Left, e.Key.Right, e.Key.Resolution.Tag())
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BuildError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFlowBuilding}
	}
	return []error{ErrFlowBuilding, e.Err}
}

// ReadError is returned by Load/Read for input that is not a valid flow file.
type ReadError struct {
	Path string
	Msg  string
}

func (e *ReadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrMalformedFlow, e.Msg)
	}
	return fmt.Sprintf("%s %s: %s", ErrMalformedFlow, e.Path, e.Msg)
}

func (e *ReadError) Unwrap() error { return ErrMalformedFlow }

func malformedf(format string, args ...any) error {
	return &ReadError{Msg: fmt.Sprintf(format, args...)}
}
