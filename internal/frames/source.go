package frames

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Accessor resolves a source frame number at a resolution class to an image file.
type Accessor interface {
	FramePath(index int, res Resolution) string
}

// DirSource is the on-disk frame layout produced by extraction:
//
//	{Root}/orig/frame_00000.png
//	{Root}/small/frame_00000.png
type DirSource struct {
	Root   string
	Format string
	count  int
}

func NewDirSource(root, format string) *DirSource {
	if format == "" {
		format = "png"
	}
	return &DirSource{Root: root, Format: strings.TrimPrefix(format, ".")}
}

// Dir returns the directory holding the frames of one resolution class.
func (s *DirSource) Dir(res Resolution) string {
	return filepath.Join(s.Root, res.Tag())
}

// Pattern is the printf-style file pattern for one class, as passed to ffmpeg.
func (s *DirSource) Pattern(res Resolution) string {
	return filepath.Join(s.Dir(res), "frame_%05d."+s.Format)
}

func (s *DirSource) FramePath(index int, res Resolution) string {
	return filepath.Join(s.Dir(res), fmt.Sprintf("frame_%05d.%s", index, s.Format))
}

// Scan counts the contiguous run of original frames starting at index 0.
func (s *DirSource) Scan() (int, error) {
	if _, err := os.Stat(s.Dir(Original)); err != nil {
		return 0, fmt.Errorf("stat frame dir: %w", err)
	}
	n := 0
	for {
		if _, err := os.Stat(s.FramePath(n, Original)); err != nil {
			break
		}
		n++
	}
	s.count = n
	return n, nil
}

// Count is the number of frames found by the last Scan.
func (s *DirSource) Count() int {
	return s.count
}
