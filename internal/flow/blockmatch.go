package flow

import (
	"context"
	"image"
	"math"
)

// BlockMatcher is a pure-Go estimator: exhaustive SAD block matching on a
// block grid, densified by bilinear interpolation between block centres. It is
// coarse next to Farneback but needs no native libraries.
type BlockMatcher struct {
	BlockSize    int
	SearchRadius int
}

func NewBlockMatcher() *BlockMatcher {
	return &BlockMatcher{BlockSize: 8, SearchRadius: 8}
}

func (b *BlockMatcher) Name() string { return "blockmatch" }

func (b *BlockMatcher) Estimate(ctx context.Context, prev, next *image.Gray) (*Field, error) {
	bs := b.BlockSize
	if bs < 2 {
		bs = 2
	}
	r := b.SearchRadius
	if r < 1 {
		r = 1
	}

	w, h := prev.Bounds().Dx(), prev.Bounds().Dy()
	cols := (w + bs - 1) / bs
	rows := (h + bs - 1) / bs
	vx := make([]float32, cols*rows)
	vy := make([]float32, cols*rows)

	for by := 0; by < rows; by++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for bx := 0; bx < cols; bx++ {
			x0, y0 := bx*bs, by*bs
			x1, y1 := min(x0+bs, w), min(y0+bs, h)
			best := math.MaxInt
			var bu, bv int
			for v := -r; v <= r; v++ {
				for u := -r; u <= r; u++ {
					sad := blockSAD(prev, next, x0, y0, x1, y1, u, v, best)
					// prefer the smaller motion on ties
					if sad < best || (sad == best && u*u+v*v < bu*bu+bv*bv) {
						best, bu, bv = sad, u, v
					}
				}
			}
			vx[by*cols+bx] = float32(bu)
			vy[by*cols+bx] = float32(bv)
		}
	}

	f := NewField(w, h)
	half := float64(bs) / 2
	for y := 0; y < h; y++ {
		gy := clamp((float64(y)+0.5-half)/float64(bs), 0, float64(rows-1))
		y0 := int(gy)
		y1 := min(y0+1, rows-1)
		ay := gy - float64(y0)
		for x := 0; x < w; x++ {
			gx := clamp((float64(x)+0.5-half)/float64(bs), 0, float64(cols-1))
			x0 := int(gx)
			x1 := min(x0+1, cols-1)
			ax := gx - float64(x0)

			lerp := func(c []float32) float32 {
				top := float64(c[y0*cols+x0])*(1-ax) + float64(c[y0*cols+x1])*ax
				bottom := float64(c[y1*cols+x0])*(1-ax) + float64(c[y1*cols+x1])*ax
				return float32(top*(1-ay) + bottom*ay)
			}
			i := y*w + x
			f.dx[i] = lerp(vx)
			f.dy[i] = lerp(vy)
		}
	}
	return f, nil
}

// blockSAD sums absolute differences between the block in prev and the block
// shifted by (u, v) in next. Samples outside next are clamped to the border.
// It stops early once the sum exceeds limit.
func blockSAD(prev, next *image.Gray, x0, y0, x1, y1, u, v, limit int) int {
	w, h := next.Rect.Dx(), next.Rect.Dy()
	sum := 0
	for y := y0; y < y1; y++ {
		ny := min(max(y+v, 0), h-1)
		prow := prev.Pix[y*prev.Stride:]
		nrow := next.Pix[ny*next.Stride:]
		for x := x0; x < x1; x++ {
			nx := min(max(x+u, 0), w-1)
			d := int(prow[x]) - int(nrow[nx])
			if d < 0 {
				d = -d
			}
			sum += d
		}
		if sum > limit {
			return sum
		}
	}
	return sum
}
