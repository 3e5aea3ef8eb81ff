package flow

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/fiapx/fiapx-slowmo-service/internal/frames"
	"github.com/fiapx/fiapx-slowmo-service/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Source produces the flow field for an ordered frame pair. Alternative flow
// algorithms are separate implementations of this interface.
type Source interface {
	Flow(ctx context.Context, key Key) (*Field, error)
}

// Estimator is the dense optical flow primitive: per-pixel displacement from
// prev to next. Both images have the same bounds.
type Estimator interface {
	Name() string
	Estimate(ctx context.Context, prev, next *image.Gray) (*Field, error)
}

// CachedSource serves flow from a Cache and computes misses with an Estimator.
// Concurrent requests for the same key share a single computation.
type CachedSource struct {
	cache     *Cache
	frames    frames.Accessor
	estimator Estimator
	logger    *zap.Logger

	group        singleflight.Group
	computations atomic.Int64
}

func NewCachedSource(cache *Cache, accessor frames.Accessor, estimator Estimator, logger *zap.Logger) *CachedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSource{
		cache:     cache,
		frames:    accessor,
		estimator: estimator,
		logger:    logger.With(zap.String("estimator", estimator.Name())),
	}
}

// Computations is the number of estimator runs so far.
func (s *CachedSource) Computations() int64 {
	return s.computations.Load()
}

func (s *CachedSource) Cache() *Cache {
	return s.cache
}

func (s *CachedSource) Flow(ctx context.Context, key Key) (*Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key.Left == key.Right {
		return nil, &BuildError{Key: key, Msg: "left and right frame are identical"}
	}

	path := s.cache.Path(key)
	v, err, _ := s.group.Do(path, func() (any, error) {
		return s.fetchOrBuild(ctx, key, path)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Field), nil
}

func (s *CachedSource) fetchOrBuild(ctx context.Context, key Key, path string) (*Field, error) {
	log := s.logger.With(zap.Stringer("pair", key))

	f, err := s.cache.Load(key)
	switch {
	case err == nil && f != nil:
		metrics.FlowCacheRequests.WithLabelValues("hit").Inc()
		log.Debug("re-using cached flow", zap.String("path", path))
		return f, nil
	case err != nil:
		metrics.FlowCacheRequests.WithLabelValues("recompute").Inc()
		log.Warn("cached flow is unreadable, rebuilding",
			zap.Bool("malformed", errors.Is(err, ErrMalformedFlow)),
			zap.Error(err),
		)
	default:
		metrics.FlowCacheRequests.WithLabelValues("miss").Inc()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err = s.build(ctx, key)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Store(key, f); err != nil {
		metrics.FlowCacheWriteFailures.Inc()
		log.Warn("could not persist flow, returning uncached field", zap.String("path", path), zap.Error(err))
	}
	return f, nil
}

func (s *CachedSource) build(ctx context.Context, key Key) (*Field, error) {
	ctx, span := otel.Tracer("flow").Start(ctx, "flow.build")
	defer span.End()
	span.SetAttributes(
		attribute.Int("flow.left", key.Left),
		attribute.Int("flow.right", key.Right),
		attribute.String("flow.resolution", key.Resolution.Tag()),
	)

	prevPath := s.frames.FramePath(key.Left, key.Resolution)
	prev, err := frames.LoadGray(prevPath)
	if err != nil {
		return nil, &BuildError{Key: key, Path: prevPath, Msg: "could not read image", Err: err}
	}
	nextPath := s.frames.FramePath(key.Right, key.Resolution)
	next, err := frames.LoadGray(nextPath)
	if err != nil {
		return nil, &BuildError{Key: key, Path: nextPath, Msg: "could not read image", Err: err}
	}
	if prev.Bounds().Size() != next.Bounds().Size() {
		return nil, &BuildError{Key: key, Msg: fmt.Sprintf("frame sizes differ: %v vs %v", prev.Bounds().Size(), next.Bounds().Size())}
	}

	start := time.Now()
	s.logger.Debug("building flow", zap.Stringer("pair", key))
	f, err := s.estimator.Estimate(ctx, prev, next)
	if err != nil {
		return nil, &BuildError{Key: key, Msg: "estimator failed", Err: err}
	}
	s.computations.Add(1)
	elapsed := time.Since(start)
	metrics.FlowBuildDuration.WithLabelValues(key.Resolution.Tag()).Observe(elapsed.Seconds())

	s.logger.Debug("flow built",
		zap.Stringer("pair", key),
		zap.Duration("elapsed", elapsed),
		zap.Float64("max_flow", f.MaxMagnitude()),
	)
	return f, nil
}
