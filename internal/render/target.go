package render

import (
	"errors"
	"fmt"
	"image"
)

var ErrRenderTarget = errors.New("render target failed")

// Target is the sink for finished frames. Frames arrive in increasing output
// time; Close finalizes the output.
type Target interface {
	WriteFrame(index int, img image.Image) error
	Close() error
}

// TargetError wraps a sink failure with the frame it happened on. Frame is -1
// for failures while finalizing.
type TargetError struct {
	Frame int
	Err   error
}

func (e *TargetError) Error() string {
	if e.Frame < 0 {
		return fmt.Sprintf("%s: finalize: %v", ErrRenderTarget, e.Err)
	}
	return fmt.Sprintf("%s: frame %d: %v", ErrRenderTarget, e.Frame, e.Err)
}

func (e *TargetError) Unwrap() []error {
	return []error{ErrRenderTarget, e.Err}
}
