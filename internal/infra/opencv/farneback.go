//go:build gocv

package opencv

import (
	"context"
	"fmt"
	"image"

	"github.com/fiapx/fiapx-slowmo-service/internal/flow"
	"gocv.io/x/gocv"
)

type Farneback struct {
	params FarnebackParams
}

func NewFarneback(params FarnebackParams) (*Farneback, error) {
	return &Farneback{params: params}, nil
}

func (f *Farneback) Name() string { return "farneback" }

func (f *Farneback) Estimate(ctx context.Context, prev, next *image.Gray) (*flow.Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, h := prev.Bounds().Dx(), prev.Bounds().Dy()

	prevMat, err := grayMat(prev)
	if err != nil {
		return nil, err
	}
	defer prevMat.Close()
	nextMat, err := grayMat(next)
	if err != nil {
		return nil, err
	}
	defer nextMat.Close()

	out := gocv.NewMat()
	defer out.Close()
	p := f.params
	gocv.CalcOpticalFlowFarneback(prevMat, nextMat, &out,
		p.PyrScale, p.Levels, p.WinSize, p.Iterations, p.PolyN, p.PolySigma, 0)

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read flow mat: %w", err)
	}
	if len(data) != w*h*2 {
		return nil, fmt.Errorf("flow mat has %d values, want %d", len(data), w*h*2)
	}

	field := flow.NewField(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 2
			if err := field.Set(x, y, data[i], data[i+1]); err != nil {
				return nil, err
			}
		}
	}
	return field, nil
}

func grayMat(img *image.Gray) (gocv.Mat, error) {
	b := img.Bounds()
	pix := img.Pix
	if img.Stride != b.Dx() {
		pix = make([]byte, 0, b.Dx()*b.Dy())
		for y := 0; y < b.Dy(); y++ {
			row := img.Pix[y*img.Stride:]
			pix = append(pix, row[:b.Dx()]...)
		}
	}
	m, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8U, pix)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("gray frame to mat: %w", err)
	}
	return m, nil
}
