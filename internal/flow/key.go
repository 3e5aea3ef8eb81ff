package flow

import (
	"fmt"

	"github.com/fiapx/fiapx-slowmo-service/internal/frames"
)

// FileExt is the extension of cached flow files.
const FileExt = "sVflow"

type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
)

// Key identifies an ordered frame pair at a resolution class.
type Key struct {
	Left       int
	Right      int
	Resolution frames.Resolution
}

func NewKey(left, right int, res frames.Resolution) Key {
	return Key{Left: left, Right: right, Resolution: res}
}

// Direction is derived from the frame order.
func (k Key) Direction() Direction {
	if k.Left < k.Right {
		return Forward
	}
	return Backward
}

// Reverse is the same pair in the opposite direction.
func (k Key) Reverse() Key {
	return Key{Left: k.Right, Right: k.Left, Resolution: k.Resolution}
}

// FileName is the deterministic cache file name, e.g. forward-0-2-orig.sVflow.
func (k Key) FileName() string {
	return fmt.Sprintf("%s-%d-%d-%s.%s", k.Direction(), k.Left, k.Right, k.Resolution.Tag(), FileExt)
}

func (k Key) String() string {
	return fmt.Sprintf("%d->%d@%s", k.Left, k.Right, k.Resolution.Tag())
}
