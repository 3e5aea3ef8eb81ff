package frames

import (
	"context"
	"fmt"
	"image"
	"os"

	xdraw "golang.org/x/image/draw"
)

// Downscale resamples img to the given width, keeping the aspect ratio.
// Images already narrower than width are copied unchanged.
func Downscale(img image.Image, width int) *image.RGBA {
	b := img.Bounds()
	if width <= 0 || b.Dx() <= width {
		return ToRGBA(img)
	}
	height := (b.Dy()*width + b.Dx()/2) / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Rect, img, b, xdraw.Src, nil)
	return dst
}

// BuildSmall derives the Small class from the original frames. Existing small
// frames are kept. The context is checked between frames.
func (s *DirSource) BuildSmall(ctx context.Context, count, width int) error {
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		dst := s.FramePath(i, Small)
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		img, err := Load(s.FramePath(i, Original))
		if err != nil {
			return fmt.Errorf("load frame %d: %w", i, err)
		}
		if err := Save(dst, Downscale(img, width)); err != nil {
			return fmt.Errorf("save small frame %d: %w", i, err)
		}
	}
	return nil
}
