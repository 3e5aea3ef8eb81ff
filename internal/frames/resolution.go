package frames

import (
	"fmt"
	"strings"
)

// Resolution is the working resolution class a frame (or flow field) belongs to.
// Each class is an independent namespace for extracted frames and cached flow.
type Resolution int

const (
	Original Resolution = iota
	Small
)

// Tag is the short, filename-safe form used in cache entry names.
func (r Resolution) Tag() string {
	if r == Small {
		return "small"
	}
	return "orig"
}

func (r Resolution) String() string {
	if r == Small {
		return "Small"
	}
	return "Original"
}

// ParseResolution accepts "original"/"orig" and "small" in any case.
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "original", "orig", "":
		return Original, nil
	case "small":
		return Small, nil
	}
	return Original, fmt.Errorf("unknown resolution class %q", s)
}
