package render

import (
	"github.com/fiapx/fiapx-slowmo-service/internal/flow"
	"github.com/fiapx/fiapx-slowmo-service/internal/frames"
)

// pairFlows holds the fields an interpolation needs for one frame pair.
// fwd maps left to right, bwd right to left, prev left to the frame one pair
// length before it.
type pairFlows struct {
	fwd, bwd, prev *flow.Field
}

// flowKeys lists the pairs an interpolation requests for (left, right), in
// request order. Flow-free interpolations and degenerate pairs need none.
func flowKeys(mode Interpolation, left, right int, res frames.Resolution) []flow.Key {
	if left == right || !mode.UsesFlow() {
		return nil
	}
	fwd := flow.NewKey(left, right, res)
	switch mode {
	case InterpForward, InterpForwardNew:
		return []flow.Key{fwd}
	case InterpTwoWay, InterpTwoWayNew:
		return []flow.Key{fwd, fwd.Reverse()}
	case InterpBezier:
		keys := []flow.Key{fwd}
		if p := left - (right - left); p >= 0 {
			keys = append(keys, flow.NewKey(left, p, res))
		}
		return keys
	}
	return nil
}

// synthesize renders the frame at fraction p in [0, 1] between l and r.
func synthesize(mode Interpolation, l, r *fimage, fl pairFlows, p float64) *fimage {
	switch {
	case p <= 0:
		return l
	case p >= 1:
		return r
	}

	switch mode {
	case InterpNearest:
		if p < 0.5 {
			return l
		}
		return r
	case InterpForward:
		return warp(l, fl.fwd, p)
	case InterpForwardNew:
		acc, wsum := newSplat(l.w, l.h)
		splat(acc, wsum, l, fl.fwd, p, 1)
		return resolveSplat(acc, wsum, warp(l, fl.fwd, p))
	case InterpTwoWay:
		return twoWay(l, r, fl, p)
	case InterpTwoWayNew:
		acc, wsum := newSplat(l.w, l.h)
		splat(acc, wsum, l, fl.fwd, p, 1-p)
		splat(acc, wsum, r, fl.bwd, 1-p, p)
		return resolveSplat(acc, wsum, twoWay(l, r, fl, p))
	case InterpBezier:
		return bezierWarp(l, fl, p)
	default:
		return blend(l, r, p)
	}
}

// warp pulls each output pixel from src along the flow scaled by s:
// out(x) = src(x - s*F(x)).
func warp(src *fimage, f *flow.Field, s float64) *fimage {
	out := newFimage(src.w, src.h)
	for y := 0; y < src.h; y++ {
		for x := 0; x < src.w; x++ {
			dx, dy := f.Sample(float64(x), float64(y))
			r, g, b := src.sample(float64(x)-s*dx, float64(y)-s*dy)
			out.set(x, y, r, g, b)
		}
	}
	return out
}

func twoWay(l, r *fimage, fl pairFlows, p float64) *fimage {
	return blend(warp(l, fl.fwd, p), warp(r, fl.bwd, 1-p), p)
}

// bezierWarp moves pixels along a quadratic path whose start velocity is the
// mean of the previous and the current pair's motion and which ends at the
// forward flow at p=1. Without a previous pair the path is straight.
func bezierWarp(l *fimage, fl pairFlows, p float64) *fimage {
	out := newFimage(l.w, l.h)
	for y := 0; y < l.h; y++ {
		for x := 0; x < l.w; x++ {
			fx, fy := fl.fwd.Sample(float64(x), float64(y))
			px, py := -fx, -fy
			if fl.prev != nil {
				px, py = fl.prev.Sample(float64(x), float64(y))
			}
			vx, vy := (fx-px)/2, (fy-py)/2
			dx := vx*p + (fx-vx)*p*p
			dy := vy*p + (fy-vy)*p*p
			r, g, b := l.sample(float64(x)-dx, float64(y)-dy)
			out.set(x, y, r, g, b)
		}
	}
	return out
}

func newSplat(w, h int) (*fimage, []float32) {
	return newFimage(w, h), make([]float32, w*h)
}

// splat pushes every pixel of src to x + s*F(x), spreading it bilinearly
// over the four neighbours with total weight w.
func splat(acc *fimage, wsum []float32, src *fimage, f *flow.Field, s, w float64) {
	for y := 0; y < src.h; y++ {
		for x := 0; x < src.w; x++ {
			dx, dy := f.Sample(float64(x), float64(y))
			tx, ty := float64(x)+s*dx, float64(y)+s*dy
			if tx < 0 || ty < 0 || tx > float64(src.w-1) || ty > float64(src.h-1) {
				continue
			}
			x0, y0 := int(tx), int(ty)
			ax, ay := tx-float64(x0), ty-float64(y0)
			i := (y*src.w + x) * 3
			for _, c := range [4]struct {
				x, y int
				w    float64
			}{
				{x0, y0, (1 - ax) * (1 - ay)},
				{x0 + 1, y0, ax * (1 - ay)},
				{x0, y0 + 1, (1 - ax) * ay},
				{x0 + 1, y0 + 1, ax * ay},
			} {
				if c.w == 0 || c.x >= src.w || c.y >= src.h {
					continue
				}
				cw := float32(c.w * w)
				j := c.y*src.w + c.x
				acc.pix[j*3] += src.pix[i] * cw
				acc.pix[j*3+1] += src.pix[i+1] * cw
				acc.pix[j*3+2] += src.pix[i+2] * cw
				wsum[j] += cw
			}
		}
	}
}

const holeWeight = 1e-3

// resolveSplat normalizes splatted pixels and fills holes from fallback.
func resolveSplat(acc *fimage, wsum []float32, fallback *fimage) *fimage {
	for j, w := range wsum {
		if w < holeWeight {
			copy(acc.pix[j*3:j*3+3], fallback.pix[j*3:j*3+3])
			continue
		}
		acc.pix[j*3] /= w
		acc.pix[j*3+1] /= w
		acc.pix[j*3+2] /= w
	}
	return acc
}
