//go:build !gocv

package opencv

import (
	"context"
	"image"

	"github.com/fiapx/fiapx-slowmo-service/internal/flow"
)

type Farneback struct{}

func NewFarneback(FarnebackParams) (*Farneback, error) {
	return nil, ErrUnavailable
}

func (f *Farneback) Name() string { return "farneback" }

func (f *Farneback) Estimate(context.Context, *image.Gray, *image.Gray) (*flow.Field, error) {
	return nil, ErrUnavailable
}
