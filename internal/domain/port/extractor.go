package port

import (
	"context"

	"github.com/fiapx/fiapx-slowmo-service/internal/frames"
)

type FrameExtractionResult struct {
	FrameCount    int
	VideoDuration float64
}

// FrameExtractor decodes every frame of a video into the Original class of dst.
type FrameExtractor interface {
	ExtractFrames(ctx context.Context, videoPath string, dst *frames.DirSource) (*FrameExtractionResult, error)
}

type VideoInfo struct {
	Width    int
	Height   int
	FPS      float64
	Frames   int
	Duration float64
	Codec    string
}

type VideoProber interface {
	Probe(ctx context.Context, path string) (*VideoInfo, error)
}
