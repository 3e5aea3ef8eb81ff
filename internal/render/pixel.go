package render

import (
	"image"
	"math"
)

// fimage is an RGB image with float32 channels, the working format for warps
// and blends.
type fimage struct {
	w, h int
	pix  []float32
}

func newFimage(w, h int) *fimage {
	return &fimage{w: w, h: h, pix: make([]float32, w*h*3)}
}

func fromImage(img image.Image) *fimage {
	b := img.Bounds()
	f := newFimage(b.Dx(), b.Dy())
	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < f.h; y++ {
			row := rgba.Pix[(y+b.Min.Y-rgba.Rect.Min.Y)*rgba.Stride:]
			for x := 0; x < f.w; x++ {
				s := (x + b.Min.X - rgba.Rect.Min.X) * 4
				d := (y*f.w + x) * 3
				f.pix[d] = float32(row[s])
				f.pix[d+1] = float32(row[s+1])
				f.pix[d+2] = float32(row[s+2])
			}
		}
		return f
	}
	for y := 0; y < f.h; y++ {
		for x := 0; x < f.w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			d := (y*f.w + x) * 3
			f.pix[d] = float32(r >> 8)
			f.pix[d+1] = float32(g >> 8)
			f.pix[d+2] = float32(bl >> 8)
		}
	}
	return f
}

func (f *fimage) toRGBA() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, f.w, f.h))
	for i := 0; i < f.w*f.h; i++ {
		out.Pix[i*4] = to8(f.pix[i*3])
		out.Pix[i*4+1] = to8(f.pix[i*3+1])
		out.Pix[i*4+2] = to8(f.pix[i*3+2])
		out.Pix[i*4+3] = 0xff
	}
	return out
}

func to8(v float32) uint8 {
	switch {
	case v <= 0 || v != v:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}

// sample reads a bilinear interpolated pixel, clamping at the borders.
func (f *fimage) sample(fx, fy float64) (r, g, b float32) {
	fx = math.Max(0, math.Min(fx, float64(f.w-1)))
	fy = math.Max(0, math.Min(fy, float64(f.h-1)))
	x0, y0 := int(fx), int(fy)
	x1, y1 := min(x0+1, f.w-1), min(y0+1, f.h-1)
	ax, ay := float32(fx-float64(x0)), float32(fy-float64(y0))

	i00 := (y0*f.w + x0) * 3
	i10 := (y0*f.w + x1) * 3
	i01 := (y1*f.w + x0) * 3
	i11 := (y1*f.w + x1) * 3
	var c [3]float32
	for k := 0; k < 3; k++ {
		top := f.pix[i00+k]*(1-ax) + f.pix[i10+k]*ax
		bot := f.pix[i01+k]*(1-ax) + f.pix[i11+k]*ax
		c[k] = top*(1-ay) + bot*ay
	}
	return c[0], c[1], c[2]
}

func (f *fimage) set(x, y int, r, g, b float32) {
	i := (y*f.w + x) * 3
	f.pix[i], f.pix[i+1], f.pix[i+2] = r, g, b
}

// addScaled accumulates w*o into f. Both images have the same size.
func (f *fimage) addScaled(o *fimage, w float32) {
	for i, v := range o.pix {
		f.pix[i] += v * w
	}
}

// blend returns (1-p)*a + p*b.
func blend(a, b *fimage, p float64) *fimage {
	out := newFimage(a.w, a.h)
	q := float32(p)
	for i := range out.pix {
		out.pix[i] = a.pix[i]*(1-q) + b.pix[i]*q
	}
	return out
}
