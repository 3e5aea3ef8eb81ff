package vidio

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRgbaPix_PacksSubImages(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	src.Set(2, 2, color.RGBA{1, 2, 3, 255})
	sub := src.SubImage(image.Rect(2, 2, 4, 4))

	pix := rgbaPix(sub)
	assert.Len(t, pix, 2*2*4)
	assert.Equal(t, []byte{1, 2, 3, 255}, pix[:4])
}

func TestRgbaPix_ReusesPackedBuffer(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 3))
	assert.Same(t, &src.Pix[0], &rgbaPix(src)[0])
}

func TestTarget_CloseWithoutFramesFails(t *testing.T) {
	tg := NewTarget(t.TempDir()+"/out.mp4", 24, "libx264", nil)
	assert.Error(t, tg.Close())
	assert.Error(t, tg.WriteFrame(0, image.NewRGBA(image.Rect(0, 0, 2, 2))))
}
