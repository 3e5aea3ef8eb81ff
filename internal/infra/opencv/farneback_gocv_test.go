//go:build gocv

package opencv

import (
	"context"
	"image"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFarneback_FindsShift(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	prev := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range prev.Pix {
		prev.Pix[i] = uint8(rng.Intn(256))
	}
	next := image.NewGray(prev.Rect)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			next.SetGray(x, y, prev.GrayAt(x-2, y))
		}
	}

	est, err := NewFarneback(DefaultFarnebackParams())
	require.NoError(t, err)
	f, err := est.Estimate(context.Background(), prev, next)
	require.NoError(t, err)

	dx, dy, err := f.At(32, 32)
	require.NoError(t, err)
	assert.InDelta(t, 2, dx, 0.5)
	assert.InDelta(t, 0, dy, 0.5)
}
