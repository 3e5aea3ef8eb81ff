package flow

import (
	"context"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fiapx/fiapx-slowmo-service/internal/frames"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// countingEstimator returns a field whose values depend on the frame contents.
type countingEstimator struct {
	calls atomic.Int64
	delay time.Duration
}

func (e *countingEstimator) Name() string { return "counting" }

func (e *countingEstimator) Estimate(_ context.Context, prev, next *image.Gray) (*Field, error) {
	e.calls.Add(1)
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	w, h := prev.Bounds().Dx(), prev.Bounds().Dy()
	f := NewField(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			_ = f.Set(x, y, float32(next.GrayAt(x, y).Y)/10, float32(prev.GrayAt(x, y).Y)/10)
		}
	}
	return f, nil
}

func noiseFrame(w, h int, seed int64) *image.Gray {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

func writeFrames(t *testing.T, src *frames.DirSource, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, frames.Save(src.FramePath(i, frames.Original), noiseFrame(16, 8, int64(i+1))))
		require.NoError(t, frames.Save(src.FramePath(i, frames.Small), noiseFrame(8, 4, int64(i+1))))
	}
}

func newTestSource(t *testing.T, n int) (*CachedSource, *countingEstimator, *frames.DirSource) {
	t.Helper()
	root := t.TempDir()
	src := frames.NewDirSource(filepath.Join(root, "frames"), "png")
	writeFrames(t, src, n)
	cache, err := NewCache(filepath.Join(root, "project"))
	require.NoError(t, err)
	est := &countingEstimator{}
	return NewCachedSource(cache, src, est, zaptest.NewLogger(t)), est, src
}

func TestCachedSourceIdempotent(t *testing.T) {
	s, est, _ := newTestSource(t, 3)
	ctx := context.Background()
	key := NewKey(0, 2, frames.Original)

	first, err := s.Flow(ctx, key)
	require.NoError(t, err)
	second, err := s.Flow(ctx, key)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.Equal(t, int64(1), est.calls.Load())
	assert.Equal(t, int64(1), s.Computations())
	assert.FileExists(t, s.Cache().Path(key))
}

func TestCachedSourceHitSurvivesNewInstance(t *testing.T) {
	s, _, src := newTestSource(t, 2)
	key := NewKey(1, 0, frames.Small)
	want, err := s.Flow(context.Background(), key)
	require.NoError(t, err)

	est := &countingEstimator{}
	again := NewCachedSource(s.Cache(), src, est, nil)
	got, err := again.Flow(context.Background(), key)
	require.NoError(t, err)

	assert.True(t, want.Equal(got))
	assert.Zero(t, est.calls.Load())
	assert.Equal(t, 4, got.Height())
}

func TestCachedSourceMissingLeftFrame(t *testing.T) {
	s, est, src := newTestSource(t, 2)
	key := NewKey(5, 1, frames.Original)

	_, err := s.Flow(context.Background(), key)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFlowBuilding)
	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, src.FramePath(5, frames.Original), be.Path)
	assert.Contains(t, err.Error(), src.FramePath(5, frames.Original))
	assert.Zero(t, est.calls.Load())
}

func TestCachedSourceConcurrentSameKeyComputesOnce(t *testing.T) {
	s, est, _ := newTestSource(t, 2)
	est.delay = 50 * time.Millisecond
	key := NewKey(0, 1, frames.Original)

	var wg sync.WaitGroup
	results := make([]*Field, 8)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := s.Flow(context.Background(), key)
			assert.NoError(t, err)
			results[i] = f
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), est.calls.Load())
	for _, f := range results {
		assert.True(t, results[0].Equal(f))
	}
}

func TestCachedSourcePersistFailureIsNotFatal(t *testing.T) {
	s, est, _ := newTestSource(t, 2)
	key := NewKey(0, 1, frames.Original)

	// turn the cache directory into a file so Store cannot write
	dir := filepath.Dir(s.Cache().Path(key))
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, nil, 0644))

	f, err := s.Flow(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 16, f.Width())

	_, err = s.Flow(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), est.calls.Load(), "nothing was cached")
}

func TestCachedSourceRebuildsUnreadableEntry(t *testing.T) {
	s, est, _ := newTestSource(t, 2)
	key := NewKey(0, 1, frames.Original)
	require.NoError(t, os.WriteFile(s.Cache().Path(key), []byte("junk"), 0644))

	f, err := s.Flow(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), est.calls.Load())

	reloaded, err := Load(s.Cache().Path(key))
	require.NoError(t, err)
	assert.True(t, f.Equal(reloaded))
}

func TestCachedSourceHonorsCancel(t *testing.T) {
	s, est, _ := newTestSource(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Flow(ctx, NewKey(0, 1, frames.Original))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, est.calls.Load())
}

func TestBlockMatcherFindsTranslation(t *testing.T) {
	prev := noiseFrame(64, 64, 42)
	next := image.NewGray(prev.Rect)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			sx, sy := x-3, y-2
			if sx < 0 || sy < 0 {
				next.SetGray(x, y, color.Gray{})
				continue
			}
			next.SetGray(x, y, prev.GrayAt(sx, sy))
		}
	}

	f, err := NewBlockMatcher().Estimate(context.Background(), prev, next)
	require.NoError(t, err)
	dx, dy, err := f.At(32, 32)
	require.NoError(t, err)
	assert.InDelta(t, 3, dx, 1e-6)
	assert.InDelta(t, 2, dy, 1e-6)
}

func TestBuilderBuildsAllPairs(t *testing.T) {
	s, est, _ := newTestSource(t, 5)
	b := &Builder{Source: s, Workers: 3}
	keys := ForwardPairs(0, 4, frames.Original)
	require.Len(t, keys, 4)

	var calls atomic.Int64
	err := b.Build(context.Background(), keys, func(done, total int, _ Key) {
		calls.Add(1)
		assert.Equal(t, 4, total)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), calls.Load())
	assert.Equal(t, int64(4), est.calls.Load())

	require.NoError(t, b.Build(context.Background(), keys, nil))
	assert.Equal(t, int64(4), est.calls.Load(), "second pass is all cache hits")
}

func TestBuilderStopsOnBuildError(t *testing.T) {
	s, _, _ := newTestSource(t, 2)
	b := &Builder{Source: s, Workers: 1}

	err := b.Build(context.Background(), ForwardPairs(0, 4, frames.Original), nil)
	assert.ErrorIs(t, err, ErrFlowBuilding)
}
