package flow

import (
	"context"
	"sync/atomic"

	"github.com/fiapx/fiapx-slowmo-service/internal/frames"
	"golang.org/x/sync/errgroup"
)

// ForwardPairs lists the consecutive forward keys from..to (inclusive frame range).
func ForwardPairs(from, to int, res frames.Resolution) []Key {
	var keys []Key
	for i := from; i < to; i++ {
		keys = append(keys, NewKey(i, i+1, res))
	}
	return keys
}

// ProgressFunc is called after each pair completes. It may be called from
// several goroutines.
type ProgressFunc func(done, total int, key Key)

// Builder fills the flow cache for a batch of frame pairs ahead of rendering.
type Builder struct {
	Source  Source
	Workers int
}

// Build requests every key. Distinct keys are computed independently on at most
// Workers goroutines; cancellation is observed before each pair starts. The
// first failure stops the batch.
func (b *Builder) Build(ctx context.Context, keys []Key, progress ProgressFunc) error {
	workers := b.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var done atomic.Int64
	total := len(keys)
	for _, key := range keys {
		key := key
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if _, err := b.Source.Flow(gctx, key); err != nil {
				return err
			}
			n := done.Add(1)
			if progress != nil {
				progress(int(n), total, key)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
