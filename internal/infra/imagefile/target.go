package imagefile

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fiapx/fiapx-slowmo-service/internal/frames"
	"go.uber.org/zap"
)

// Target writes each rendered frame as a numbered image file. The file name
// is the pattern with %1 replaced by the zero-padded frame number; the
// extension decides the encoding.
type Target struct {
	dir     string
	pattern string
	logger  *zap.Logger

	mu     sync.Mutex
	paths  []string
	closed bool
}

func NewTarget(dir, pattern string, logger *zap.Logger) (*Target, error) {
	if !strings.Contains(pattern, "%1") {
		return nil, fmt.Errorf("filename pattern %q does not contain %%1", pattern)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Target{dir: dir, pattern: pattern, logger: logger}, nil
}

// FileName returns the name frame index is written to.
func (t *Target) FileName(index int) string {
	return strings.ReplaceAll(t.pattern, "%1", fmt.Sprintf("%05d", index))
}

func (t *Target) WriteFrame(index int, img image.Image) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("write frame %d: target closed", index)
	}
	path := filepath.Join(t.dir, t.FileName(index))
	if err := frames.Save(path, img); err != nil {
		return err
	}
	t.paths = append(t.paths, path)
	return nil
}

func (t *Target) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		t.logger.Debug("image sequence written", zap.String("dir", t.dir), zap.Int("frames", len(t.paths)))
	}
	return nil
}

// Paths lists the files written so far, in write order.
func (t *Target) Paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.paths...)
}
