package frames

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), 128, 255})
		}
	}
	return img
}

func TestResolutionTagsAreDistinct(t *testing.T) {
	assert.Equal(t, "orig", Original.Tag())
	assert.Equal(t, "small", Small.Tag())

	r, err := ParseResolution("Small")
	require.NoError(t, err)
	assert.Equal(t, Small, r)

	_, err = ParseResolution("huge")
	assert.Error(t, err)
}

func TestDirSourceLayout(t *testing.T) {
	s := NewDirSource("/work/frames", ".png")

	assert.Equal(t, filepath.Join("/work/frames", "orig", "frame_00042.png"), s.FramePath(42, Original))
	assert.Equal(t, filepath.Join("/work/frames", "small", "frame_00007.png"), s.FramePath(7, Small))
	assert.Equal(t, filepath.Join("/work/frames", "orig", "frame_%05d.png"), s.Pattern(Original))
}

func TestScanCountsContiguousFrames(t *testing.T) {
	s := NewDirSource(t.TempDir(), "png")
	for i := 0; i < 3; i++ {
		require.NoError(t, Save(s.FramePath(i, Original), gradient(8, 4)))
	}
	// a gap ends the run
	require.NoError(t, Save(s.FramePath(5, Original), gradient(8, 4)))

	n, err := s.Scan()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, s.Count())
}

func TestDownscaleKeepsAspect(t *testing.T) {
	out := Downscale(gradient(64, 32), 16)
	assert.Equal(t, 16, out.Bounds().Dx())
	assert.Equal(t, 8, out.Bounds().Dy())

	same := Downscale(gradient(10, 10), 16)
	assert.Equal(t, 10, same.Bounds().Dx())
}

func TestBuildSmall(t *testing.T) {
	s := NewDirSource(t.TempDir(), "png")
	for i := 0; i < 2; i++ {
		require.NoError(t, Save(s.FramePath(i, Original), gradient(40, 20)))
	}

	require.NoError(t, s.BuildSmall(context.Background(), 2, 20))

	g, err := LoadGray(s.FramePath(1, Small))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 10), g.Bounds())
}

func TestBuildSmallHonorsCancel(t *testing.T) {
	s := NewDirSource(t.TempDir(), "png")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.BuildSmall(ctx, 1, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadGray(filepath.Join(t.TempDir(), "nope.png"))
	assert.Error(t, err)
}
