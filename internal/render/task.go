// Package render turns a time curve and a set of source frames into a
// slow-motion frame sequence.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fiapx/fiapx-slowmo-service/internal/curve"
	"github.com/fiapx/fiapx-slowmo-service/internal/flow"
	"github.com/fiapx/fiapx-slowmo-service/internal/frames"
	"github.com/fiapx/fiapx-slowmo-service/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrAborted is returned by Run and Continue when the task stopped on request.
var ErrAborted = errors.New("render aborted")

const frameCacheSize = 6

type EventKind int

const (
	EventStarted EventKind = iota
	EventFrameRendered
	EventFinished
	EventAborted
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventFrameRendered:
		return "frame_rendered"
	case EventFinished:
		return "finished"
	case EventAborted:
		return "aborted"
	case EventFailed:
		return "failed"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is delivered to observers from the rendering goroutine.
type Event struct {
	Kind       EventKind
	Frame      int
	Total      int
	OutputTime float64
	// Speed is the curve's local slope at OutputTime: source seconds per
	// output second, so 0.25 is quarter speed.
	Speed   float64
	Elapsed time.Duration
	Err     error
}

type Observer func(Event)

type Config struct {
	Prefs Preferences
	Curve *curve.NodeList
	Tags  []curve.Tag

	Frames     frames.Accessor
	FrameCount int
	// SourceFPS converts the curve's source seconds into frame indices.
	SourceFPS float64

	Flow   flow.Source
	Target Target

	Logger    *zap.Logger
	Observers []Observer
}

// Task renders one section of a curve. It is driven from a single goroutine;
// Abort, State and NextFrame may be called from any goroutine.
type Task struct {
	prefs      Preferences
	curve      *curve.NodeList
	accessor   frames.Accessor
	frameCount int
	sourceFPS  float64
	flows      flow.Source
	target     Target
	logger     *zap.Logger
	observers  []Observer

	start, end float64
	total      int

	mu           sync.Mutex
	state        State
	next         int
	targetClosed bool
	discarded    bool

	abort   atomic.Bool
	cache   *frameCache
	elapsed time.Duration
}

// NewTask validates cfg and snapshots it. Nothing is written before Run.
func NewTask(cfg Config) (*Task, error) {
	v := &ValidationError{}
	if err := Validate(cfg.Prefs, cfg.Curve, cfg.Tags, cfg.FrameCount); err != nil {
		var ve *ValidationError
		if !errors.As(err, &ve) {
			return nil, err
		}
		v.Problems = append(v.Problems, ve.Problems...)
	}
	if cfg.Frames == nil {
		v.add("no frame source")
	}
	if cfg.SourceFPS <= 0 || math.IsNaN(cfg.SourceFPS) || math.IsInf(cfg.SourceFPS, 0) {
		v.add("source frame rate must be a positive number, got %v", cfg.SourceFPS)
	}
	if cfg.Target == nil {
		v.add("no render target")
	}
	if cfg.Flow == nil && cfg.Prefs.Interpolation.UsesFlow() {
		v.add("interpolation %s needs a flow source", cfg.Prefs.Interpolation)
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}

	l := cfg.Curve.Clone()
	start, end, err := ResolveSection(cfg.Prefs.Section, l, cfg.Tags, cfg.Prefs.FPS)
	if err != nil {
		return nil, &ValidationError{Problems: []string{err.Error()}}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Task{
		prefs:      cfg.Prefs,
		curve:      l,
		accessor:   cfg.Frames,
		frameCount: cfg.FrameCount,
		sourceFPS:  cfg.SourceFPS,
		flows:      cfg.Flow,
		target:     cfg.Target,
		logger:     logger,
		observers:  append([]Observer(nil), cfg.Observers...),
		start:      start,
		end:        end,
		total:      frameTotal(start, end, cfg.Prefs.FPS),
		state:      StateIdle,
		cache:      newFrameCache(cfg.Frames, cfg.Prefs.Size, frameCacheSize),
	}, nil
}

// frameTotal counts output times start + i/fps that lie before end.
func frameTotal(start, end, fps float64) int {
	n := int(math.Ceil((end-start)*fps - 1e-9))
	if n < 0 {
		return 0
	}
	return n
}

func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// NextFrame is the index of the first frame not yet handed to the target.
func (t *Task) NextFrame() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next
}

func (t *Task) Total() int { return t.total }

// Range is the output time span [start, end) being rendered.
func (t *Task) Range() (float64, float64) { return t.start, t.end }

// Abort asks the task to stop before its next frame.
func (t *Task) Abort() { t.abort.Store(true) }

func (t *Task) Run(ctx context.Context) error {
	t.mu.Lock()
	err := transition(&t.state, StateIdle, StateRunning)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	return t.loop(ctx)
}

// Continue resumes an aborted task at NextFrame.
func (t *Task) Continue(ctx context.Context) error {
	t.mu.Lock()
	if t.discarded {
		t.mu.Unlock()
		return fmt.Errorf("%w: task was discarded", ErrInvalidTransition)
	}
	err := transition(&t.state, StateAborted, StateRunning)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	t.abort.Store(false)
	return t.loop(ctx)
}

// Discard gives up on a task that is not running and releases its target.
// Frames already written stay where they are.
func (t *Task) Discard() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateRunning {
		return fmt.Errorf("%w: cannot discard a running task", ErrInvalidTransition)
	}
	t.discarded = true
	return t.closeTargetLocked()
}

func (t *Task) closeTargetLocked() error {
	if t.targetClosed {
		return nil
	}
	t.targetClosed = true
	if err := t.target.Close(); err != nil {
		return &TargetError{Frame: -1, Err: err}
	}
	return nil
}

func (t *Task) loop(ctx context.Context) error {
	ctx, span := otel.Tracer("render").Start(ctx, "render.run", trace.WithAttributes(
		attribute.Int("render.total", t.total),
		attribute.Int("render.first_frame", t.NextFrame()),
		attribute.String("render.interpolation", t.prefs.Interpolation.String()),
	))
	defer span.End()

	metrics.ActiveRenders.Inc()
	defer metrics.ActiveRenders.Dec()

	runStart := time.Now()
	elapsed := func() time.Duration { return t.elapsed + time.Since(runStart) }
	defer func() { t.elapsed = elapsed() }()

	t.logger.Info("render started",
		zap.Int("from_frame", t.NextFrame()),
		zap.Int("total", t.total),
		zap.Float64("start", t.start),
		zap.Float64("end", t.end),
		zap.Stringer("interpolation", t.prefs.Interpolation),
		zap.Stringer("motion_blur", t.prefs.MotionBlur.Type),
	)
	t.emit(Event{Kind: EventStarted, Frame: t.NextFrame(), Total: t.total})

	for {
		i := t.NextFrame()
		if i >= t.total {
			return t.finish(elapsed())
		}
		if t.abort.Load() || ctx.Err() != nil {
			return t.stop(i, elapsed())
		}

		frameStart := time.Now()
		outTime := t.start + float64(i)/t.prefs.FPS
		img, err := t.renderFrame(ctx, i, outTime)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return t.stop(i, elapsed())
			}
			return t.fail(i, err, elapsed())
		}
		if err := t.target.WriteFrame(i, img); err != nil {
			return t.fail(i, &TargetError{Frame: i, Err: err}, elapsed())
		}

		t.mu.Lock()
		t.next = i + 1
		t.mu.Unlock()

		metrics.FramesRenderedTotal.Inc()
		metrics.FrameRenderDuration.Observe(time.Since(frameStart).Seconds())
		t.logger.Debug("frame rendered", zap.Int("frame", i), zap.Float64("time", outTime))
		speed, _ := t.curve.Slope(outTime, t.prefs.CurveMode)
		t.emit(Event{Kind: EventFrameRendered, Frame: i, Total: t.total, OutputTime: outTime, Speed: speed, Elapsed: elapsed()})
	}
}

func (t *Task) finish(elapsed time.Duration) error {
	t.mu.Lock()
	err := t.closeTargetLocked()
	to := StateFinished
	if err != nil {
		to = StateFailed
	}
	if terr := transition(&t.state, StateRunning, to); terr != nil {
		t.mu.Unlock()
		return terr
	}
	t.mu.Unlock()

	if err != nil {
		t.logger.Error("render target could not be finalized", zap.Error(err))
		t.emit(Event{Kind: EventFailed, Frame: t.total, Total: t.total, Elapsed: elapsed, Err: err})
		return err
	}
	t.logger.Info("render finished", zap.Int("frames", t.total), zap.Duration("elapsed", elapsed))
	t.emit(Event{Kind: EventFinished, Frame: t.total, Total: t.total, Elapsed: elapsed})
	return nil
}

func (t *Task) stop(next int, elapsed time.Duration) error {
	t.mu.Lock()
	err := transition(&t.state, StateRunning, StateAborted)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	t.logger.Info("render aborted", zap.Int("next_frame", next), zap.Int("total", t.total))
	t.emit(Event{Kind: EventAborted, Frame: next, Total: t.total, Elapsed: elapsed})
	return ErrAborted
}

func (t *Task) fail(frame int, cause error, elapsed time.Duration) error {
	t.mu.Lock()
	err := transition(&t.state, StateRunning, StateFailed)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	t.logger.Error("render failed", zap.Int("frame", frame), zap.Error(cause))
	t.emit(Event{Kind: EventFailed, Frame: frame, Total: t.total, Elapsed: elapsed, Err: cause})
	return cause
}

func (t *Task) emit(ev Event) {
	for _, o := range t.observers {
		o(ev)
	}
}

// renderFrame composes output frame i. The exposure window runs from the
// source time at outTime to the one at the next output frame.
func (t *Task) renderFrame(ctx context.Context, i int, outTime float64) (image.Image, error) {
	a, b, err := t.window(outTime)
	if err != nil {
		return nil, err
	}
	left, right := t.pair(a, b)

	mode := t.prefs.Interpolation
	fl, err := t.fetchFlows(ctx, mode, left, right)
	if err != nil {
		if ctx.Err() != nil || t.prefs.FailurePolicy != Lenient {
			return nil, err
		}
		t.logger.Warn("flow unavailable, blending frame without flow",
			zap.Int("frame", i), zap.Int("left", left), zap.Int("right", right), zap.Error(err))
		mode = InterpLinear
	}

	samples := t.prefs.MotionBlur.Samples(a, b)
	var acc *fimage
	for _, s := range samples {
		img, err := t.subSample(mode, fl, left, right, s.Pos)
		if err != nil {
			return nil, err
		}
		if len(samples) == 1 {
			return img.toRGBA(), nil
		}
		if acc == nil {
			acc = newFimage(img.w, img.h)
		}
		acc.addScaled(img, float32(s.Weight))
	}
	return acc.toRGBA(), nil
}

// window returns the exposure of the output frame at outTime in source frames.
func (t *Task) window(outTime float64) (float64, float64, error) {
	y0, err := t.curve.Evaluate(outTime, t.prefs.CurveMode)
	if err != nil {
		return 0, 0, err
	}
	y1, err := t.curve.Evaluate(outTime+1/t.prefs.FPS, t.prefs.CurveMode)
	if err != nil {
		return 0, 0, err
	}
	return y0 * t.sourceFPS, y1 * t.sourceFPS, nil
}

// pair returns the frames bracketing the window [a, b] in either direction,
// clamped to the available frames.
func (t *Task) pair(a, b float64) (int, int) {
	lo, hi := math.Min(a, b), math.Max(a, b)
	return t.clampIndex(math.Floor(lo)), t.clampIndex(math.Ceil(hi))
}

func (t *Task) clampIndex(v float64) int {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > float64(t.frameCount-1) {
		return t.frameCount - 1
	}
	return int(v)
}

func (t *Task) fetchFlows(ctx context.Context, mode Interpolation, left, right int) (pairFlows, error) {
	var fl pairFlows
	for _, key := range flowKeys(mode, left, right, t.prefs.Size) {
		f, err := t.flows.Flow(ctx, key)
		if err != nil {
			return pairFlows{}, err
		}
		switch {
		case key.Left == left && key.Right == right:
			fl.fwd = f
		case key.Left == right && key.Right == left:
			fl.bwd = f
		default:
			fl.prev = f
		}
	}
	return fl, nil
}

func (t *Task) subSample(mode Interpolation, fl pairFlows, left, right int, pos float64) (*fimage, error) {
	pos = math.Max(0, math.Min(pos, float64(t.frameCount-1)))

	if !mode.UsesFlow() {
		lo, hi := t.clampIndex(math.Floor(pos)), t.clampIndex(math.Ceil(pos))
		l, err := t.cache.get(lo)
		if err != nil {
			return nil, err
		}
		r, err := t.cache.get(hi)
		if err != nil {
			return nil, err
		}
		return synthesize(mode, l, r, pairFlows{}, pos-float64(lo)), nil
	}

	l, err := t.cache.get(left)
	if err != nil {
		return nil, err
	}
	r, err := t.cache.get(right)
	if err != nil {
		return nil, err
	}
	if left == right {
		return l, nil
	}
	for _, f := range []*flow.Field{fl.fwd, fl.bwd, fl.prev} {
		if f != nil && (f.Width() != l.w || f.Height() != l.h) {
			return nil, fmt.Errorf("flow %dx%d does not match frame %dx%d of pair %d-%d",
				f.Width(), f.Height(), l.w, l.h, left, right)
		}
	}
	p := (pos - float64(left)) / float64(right-left)
	return synthesize(mode, l, r, fl, p), nil
}

// FlowKeys lists, in request order and without repeats, the flow fields the
// remaining frames will ask for. Used to fill the cache ahead of rendering.
func (t *Task) FlowKeys() ([]flow.Key, error) {
	seen := make(map[flow.Key]bool)
	var keys []flow.Key
	for i := t.NextFrame(); i < t.total; i++ {
		a, b, err := t.window(t.start + float64(i)/t.prefs.FPS)
		if err != nil {
			return nil, err
		}
		left, right := t.pair(a, b)
		for _, k := range flowKeys(t.prefs.Interpolation, left, right, t.prefs.Size) {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys, nil
}
