package render

import (
	"fmt"
	"strings"

	"github.com/fiapx/fiapx-slowmo-service/internal/curve"
	"github.com/fiapx/fiapx-slowmo-service/internal/frames"
	"github.com/fiapx/fiapx-slowmo-service/internal/motionblur"
)

// Interpolation is the way an in-between frame is synthesized from its pair.
type Interpolation int

const (
	InterpNearest Interpolation = iota
	InterpLinear
	InterpForward
	InterpForwardNew
	InterpTwoWay
	InterpTwoWayNew
	InterpBezier
)

var interpolationNames = map[Interpolation]string{
	InterpNearest:    "nearest",
	InterpLinear:     "linear",
	InterpForward:    "forward",
	InterpForwardNew: "forward-new",
	InterpTwoWay:     "twoway",
	InterpTwoWayNew:  "twoway-new",
	InterpBezier:     "bezier",
}

func (i Interpolation) String() string {
	if s, ok := interpolationNames[i]; ok {
		return s
	}
	return fmt.Sprintf("Interpolation(%d)", int(i))
}

func ParseInterpolation(s string) (Interpolation, error) {
	norm := strings.NewReplacer("_", "-", " ", "-").Replace(strings.ToLower(strings.TrimSpace(s)))
	if norm == "" {
		return InterpTwoWay, nil
	}
	for k, v := range interpolationNames {
		if v == norm || strings.ReplaceAll(v, "-", "") == norm {
			return k, nil
		}
	}
	return InterpTwoWay, fmt.Errorf("unknown interpolation %q", s)
}

// UsesFlow reports whether the interpolation needs optical flow at all.
func (i Interpolation) UsesFlow() bool {
	return i != InterpNearest && i != InterpLinear
}

// FailurePolicy decides what a flow failure does to a running render.
type FailurePolicy int

const (
	// Strict fails the task on the first flow error.
	Strict FailurePolicy = iota
	// Lenient blends the pair without flow and keeps going.
	Lenient
)

func (p FailurePolicy) String() string {
	if p == Lenient {
		return "lenient"
	}
	return "strict"
}

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return Strict, nil
	case "lenient":
		return Lenient, nil
	}
	return Strict, fmt.Errorf("unknown failure policy %q", s)
}

type SectionMode string

const (
	SectionFull SectionMode = "full"
	SectionTime SectionMode = "time"
	SectionTags SectionMode = "tags"
)

// Section selects the part of the output timeline to render. For SectionTime
// Start and End are time expressions, for SectionTags they are tag
// descriptions.
type Section struct {
	Mode  SectionMode `json:"mode"`
	Start string      `json:"start,omitempty"`
	End   string      `json:"end,omitempty"`
}

type TargetKind string

const (
	TargetImages TargetKind = "images"
	TargetVideo  TargetKind = "video"
)

type TargetSettings struct {
	Kind TargetKind
	// ImagesDir and FilenamePattern are used by TargetImages. The pattern
	// must contain %1, which is replaced by the zero-padded frame number.
	ImagesDir       string
	FilenamePattern string
	// VideoFile and VideoCodec are used by TargetVideo.
	VideoFile  string
	VideoCodec string
}

// Preferences is the snapshot of render settings a task is built from. Later
// edits to the caller's copy do not reach a running task.
type Preferences struct {
	FPS           float64
	Size          frames.Resolution
	Interpolation Interpolation
	CurveMode     curve.Mode
	MotionBlur    motionblur.Sampler
	Section       Section
	Target        TargetSettings
	FailurePolicy FailurePolicy
}

func DefaultPreferences() Preferences {
	return Preferences{
		FPS:           24,
		Size:          frames.Original,
		Interpolation: InterpTwoWay,
		CurveMode:     curve.Linear,
		MotionBlur:    motionblur.DefaultSampler(),
		Section:       Section{Mode: SectionFull},
		Target: TargetSettings{
			Kind:            TargetImages,
			FilenamePattern: "rendered-%1.png",
		},
		FailurePolicy: Strict,
	}
}
