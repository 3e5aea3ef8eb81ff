// Package flow computes, caches and serves dense optical flow between frame pairs.
package flow

import (
	"fmt"
	"math"
)

// Field is a dense displacement grid. Both channels are flat slices indexed
// y*width+x. Dimensions never change after NewField.
//
// Only the code producing a field (an Estimator, or Read) mutates it; once a
// Source hands it out it is shared read-only.
type Field struct {
	width  int
	height int
	dx     []float32
	dy     []float32
}

func NewField(width, height int) *Field {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	n := width * height
	return &Field{width: width, height: height, dx: make([]float32, n), dy: make([]float32, n)}
}

func (f *Field) Width() int  { return f.width }
func (f *Field) Height() int { return f.height }

func (f *Field) index(x, y int) (int, error) {
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return 0, fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfBounds, x, y, f.width, f.height)
	}
	return y*f.width + x, nil
}

// At returns the displacement stored for pixel (x, y).
func (f *Field) At(x, y int) (dx, dy float32, err error) {
	i, err := f.index(x, y)
	if err != nil {
		return 0, 0, err
	}
	return f.dx[i], f.dy[i], nil
}

// Set stores the displacement for pixel (x, y).
func (f *Field) Set(x, y int, dx, dy float32) error {
	i, err := f.index(x, y)
	if err != nil {
		return err
	}
	if !finite(dx) || !finite(dy) {
		return fmt.Errorf("%w: (%d,%d)", ErrNonFinite, x, y)
	}
	f.dx[i] = dx
	f.dy[i] = dy
	return nil
}

// Sample reads the field at a fractional position with bilinear filtering,
// clamping to the border.
func (f *Field) Sample(fx, fy float64) (dx, dy float64) {
	if f.width == 0 || f.height == 0 {
		return 0, 0
	}
	fx = clamp(fx, 0, float64(f.width-1))
	fy = clamp(fy, 0, float64(f.height-1))

	x0, y0 := int(fx), int(fy)
	x1, y1 := min(x0+1, f.width-1), min(y0+1, f.height-1)
	ax, ay := fx-float64(x0), fy-float64(y0)

	i00, i10 := y0*f.width+x0, y0*f.width+x1
	i01, i11 := y1*f.width+x0, y1*f.width+x1

	lerp2 := func(c []float32) float64 {
		top := float64(c[i00])*(1-ax) + float64(c[i10])*ax
		bottom := float64(c[i01])*(1-ax) + float64(c[i11])*ax
		return top*(1-ay) + bottom*ay
	}
	return lerp2(f.dx), lerp2(f.dy)
}

// MaxMagnitude is the largest displacement length in the field.
func (f *Field) MaxMagnitude() float64 {
	var m float64
	for i := range f.dx {
		l := math.Hypot(float64(f.dx[i]), float64(f.dy[i]))
		if l > m {
			m = l
		}
	}
	return m
}

// Equal reports whether two fields have identical dimensions and bit-identical contents.
func (f *Field) Equal(o *Field) bool {
	if f == nil || o == nil {
		return f == o
	}
	if f.width != o.width || f.height != o.height {
		return false
	}
	for i := range f.dx {
		if math.Float32bits(f.dx[i]) != math.Float32bits(o.dx[i]) ||
			math.Float32bits(f.dy[i]) != math.Float32bits(o.dy[i]) {
			return false
		}
	}
	return true
}

func finite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
