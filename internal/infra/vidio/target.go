package vidio

import (
	"fmt"
	"image"
	"image/draw"
	"sync"

	vidio "github.com/AlexEidt/Vidio"
	"go.uber.org/zap"
)

// Target feeds rendered frames to an ffmpeg encoder. The writer is opened
// with the size of the first frame; later frames must match it.
type Target struct {
	file   string
	fps    float64
	codec  string
	logger *zap.Logger

	mu     sync.Mutex
	writer *vidio.VideoWriter
	width  int
	height int
	frames int
	closed bool
}

func NewTarget(file string, fps float64, codec string, logger *zap.Logger) *Target {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Target{file: file, fps: fps, codec: codec, logger: logger}
}

func (t *Target) WriteFrame(index int, img image.Image) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("write frame %d: target closed", index)
	}

	b := img.Bounds()
	if t.writer == nil {
		opts := &vidio.Options{FPS: t.fps, Codec: t.codec}
		w, err := vidio.NewVideoWriter(t.file, b.Dx(), b.Dy(), opts)
		if err != nil {
			return fmt.Errorf("open video writer %s: %w", t.file, err)
		}
		t.writer, t.width, t.height = w, b.Dx(), b.Dy()
		t.logger.Debug("video encoder started",
			zap.String("file", t.file),
			zap.String("codec", t.writer.Codec()),
			zap.Int("width", t.width),
			zap.Int("height", t.height),
		)
	}
	if b.Dx() != t.width || b.Dy() != t.height {
		return fmt.Errorf("frame %d is %dx%d, video is %dx%d", index, b.Dx(), b.Dy(), t.width, t.height)
	}

	if err := t.writer.Write(rgbaPix(img)); err != nil {
		return fmt.Errorf("encode frame %d: %w", index, err)
	}
	t.frames++
	return nil
}

func (t *Target) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.writer == nil {
		return fmt.Errorf("no frames were written to %s", t.file)
	}
	t.writer.Close()
	t.logger.Info("video written", zap.String("file", t.file), zap.Int("frames", t.frames))
	return nil
}

// rgbaPix returns the tightly packed RGBA bytes the encoder expects.
func rgbaPix(img image.Image) []byte {
	if r, ok := img.(*image.RGBA); ok && r.Rect.Min == (image.Point{}) && r.Stride == 4*r.Rect.Dx() {
		return r.Pix
	}
	b := img.Bounds()
	r := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(r, r.Rect, img, b.Min, draw.Src)
	return r.Pix
}
