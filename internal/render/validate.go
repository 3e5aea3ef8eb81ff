package render

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/fiapx/fiapx-slowmo-service/internal/curve"
)

var ErrValidation = errors.New("render configuration invalid")

// ValidationError lists every problem found in a render configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *ValidationError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// Validate checks a configuration before anything is rendered.
func Validate(p Preferences, l *curve.NodeList, tags []curve.Tag, frameCount int) error {
	v := &ValidationError{}

	if p.FPS <= 0 || math.IsNaN(p.FPS) || math.IsInf(p.FPS, 0) {
		v.add("output frame rate must be a positive number, got %v", p.FPS)
	}
	if l == nil || l.Len() < 2 {
		n := 0
		if l != nil {
			n = l.Len()
		}
		v.add("curve needs at least 2 nodes, has %d", n)
	} else if _, _, err := ResolveSection(p.Section, l, tags, p.FPS); err != nil {
		v.add("section: %v", err)
	}
	if frameCount < 1 {
		v.add("frame source is empty")
	}
	if p.MotionBlur.MaxSamples < 1 {
		v.add("motion blur max samples must be at least 1")
	}
	if p.MotionBlur.SlowmoSamples < 1 {
		v.add("motion blur slow-motion samples must be at least 1")
	}

	switch p.Target.Kind {
	case TargetImages:
		if strings.TrimSpace(p.Target.ImagesDir) == "" {
			v.add("images target needs an output directory")
		}
		if !strings.Contains(p.Target.FilenamePattern, "%1") {
			v.add("filename pattern %q must contain %%1", p.Target.FilenamePattern)
		}
	case TargetVideo:
		if strings.TrimSpace(p.Target.VideoFile) == "" {
			v.add("video target needs an output file")
		}
	default:
		v.add("unknown target kind %q", p.Target.Kind)
	}

	return v.orNil()
}
