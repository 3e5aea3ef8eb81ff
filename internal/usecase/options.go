package usecase

import (
	"errors"
	"fmt"

	"github.com/fiapx/fiapx-slowmo-service/internal/curve"
	"github.com/fiapx/fiapx-slowmo-service/internal/domain/entity"
	"github.com/fiapx/fiapx-slowmo-service/internal/frames"
	"github.com/fiapx/fiapx-slowmo-service/internal/motionblur"
	"github.com/fiapx/fiapx-slowmo-service/internal/render"
)

var errInvalidOptions = errors.New("invalid render options")

// ApplyOptions returns base with every non-zero option of o applied.
func ApplyOptions(base render.Preferences, o entity.RenderOptions) (render.Preferences, error) {
	p := base
	var errs []error
	parse := func(field, value string, apply func(string) error) {
		if value == "" {
			return
		}
		if err := apply(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}

	if o.FPS != 0 {
		p.FPS = o.FPS
	}
	parse("size", o.Size, func(v string) (err error) {
		p.Size, err = frames.ParseResolution(v)
		return
	})
	parse("interpolation", o.Interpolation, func(v string) (err error) {
		p.Interpolation, err = render.ParseInterpolation(v)
		return
	})
	parse("curve_mode", o.CurveMode, func(v string) (err error) {
		p.CurveMode, err = curve.ParseMode(v)
		return
	})
	parse("motion_blur", o.MotionBlur, func(v string) (err error) {
		p.MotionBlur.Type, err = motionblur.ParseType(v)
		return
	})
	if o.MaxSamples != 0 {
		p.MotionBlur.MaxSamples = o.MaxSamples
	}
	if o.SlowmoSamples != 0 {
		p.MotionBlur.SlowmoSamples = o.SlowmoSamples
	}
	parse("section_mode", o.SectionMode, func(v string) error {
		switch m := render.SectionMode(v); m {
		case render.SectionFull, render.SectionTime, render.SectionTags:
			p.Section = render.Section{Mode: m, Start: o.SectionStart, End: o.SectionEnd}
			return nil
		}
		return fmt.Errorf("unknown section mode %q", v)
	})
	parse("target", o.Target, func(v string) error {
		switch k := render.TargetKind(v); k {
		case render.TargetImages, render.TargetVideo:
			p.Target.Kind = k
			return nil
		}
		return fmt.Errorf("unknown target %q", v)
	})
	if o.VideoCodec != "" {
		p.Target.VideoCodec = o.VideoCodec
	}
	parse("failure_policy", o.FailurePolicy, func(v string) (err error) {
		p.FailurePolicy, err = render.ParseFailurePolicy(v)
		return
	})

	if len(errs) > 0 {
		return base, fmt.Errorf("%w: %w", errInvalidOptions, errors.Join(errs...))
	}
	return p, nil
}
