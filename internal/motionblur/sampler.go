// Package motionblur turns an exposure window on the source timeline into
// weighted sub-samples that are blended into one output frame.
package motionblur

import (
	"fmt"
	"math"
	"strings"
)

type Type int

const (
	Nearest Type = iota
	Stacking
	Convolving
)

func (t Type) String() string {
	switch t {
	case Nearest:
		return "nearest"
	case Stacking:
		return "stacking"
	case Convolving:
		return "convolving"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nearest", "none", "":
		return Nearest, nil
	case "stacking":
		return Stacking, nil
	case "convolving":
		return Convolving, nil
	}
	return Nearest, fmt.Errorf("unknown motion blur type %q", s)
}

// Sample is one position on the source timeline, in source frames, with its
// blend weight.
type Sample struct {
	Pos    float64
	Weight float64
}

type Sampler struct {
	Type Type
	// MaxSamples bounds the number of sub-samples for one output frame.
	MaxSamples int
	// SlowmoSamples is the sub-sample density per source frame of exposure.
	SlowmoSamples int
}

func DefaultSampler() Sampler {
	return Sampler{Type: Convolving, MaxSamples: 64, SlowmoSamples: 16}
}

// Count returns the number of sub-samples used for a window of the given span
// in source frames. SlowmoSamples is a density per source frame, so a window
// covering more real time gets more samples, up to MaxSamples.
func (s Sampler) Count(span float64) int {
	if s.Type == Nearest {
		return 1
	}
	maxN := s.MaxSamples
	if maxN < 1 {
		maxN = 1
	}
	density := s.SlowmoSamples
	if density < 1 {
		density = 1
	}
	n := math.Ceil(math.Abs(span) * float64(density))
	if math.IsNaN(n) || n < 1 {
		return 1
	}
	if n > float64(maxN) {
		return maxN
	}
	return int(n)
}

// Samples spreads sub-samples over [start, end) and returns them ordered from
// start to end with weights summing to 1.
func (s Sampler) Samples(start, end float64) []Sample {
	n := s.Count(end - start)
	if n == 1 {
		return []Sample{{Pos: start, Weight: 1}}
	}

	step := (end - start) / float64(n)
	out := make([]Sample, n)
	var sum float64
	for k := range out {
		w := 1.0
		if s.Type == Convolving {
			// raised-cosine shutter centred on the window
			c := (float64(k) + 0.5) / float64(n)
			w = 0.5 - 0.5*math.Cos(2*math.Pi*c)
		}
		out[k] = Sample{Pos: start + float64(k)*step, Weight: w}
		sum += w
	}
	for k := range out {
		out[k].Weight /= sum
	}
	return out
}
