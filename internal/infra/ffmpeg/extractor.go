package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/fiapx/fiapx-slowmo-service/internal/domain/port"
	"github.com/fiapx/fiapx-slowmo-service/internal/frames"
	"go.uber.org/zap"
)

// Extractor decodes every source frame with ffmpeg, numbered from 0 in the
// layout frames.DirSource expects.
type Extractor struct {
	logger *zap.Logger
}

func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

func (e *Extractor) ExtractFrames(ctx context.Context, videoPath string, dst *frames.DirSource) (*port.FrameExtractionResult, error) {
	duration, err := e.getVideoDuration(ctx, videoPath)
	if err != nil {
		e.logger.Warn("could not get video duration", zap.Error(err))
	}

	if err := os.MkdirAll(dst.Dir(frames.Original), 0755); err != nil {
		return nil, fmt.Errorf("create frame dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", extractArgs(videoPath, dst.Pattern(frames.Original))...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg error: %w, output: %s", err, string(output))
	}

	count, err := dst.Scan()
	if err != nil {
		return nil, fmt.Errorf("scan frames: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("no frames extracted from video")
	}

	e.logger.Info("frames extracted",
		zap.Int("count", count),
		zap.Float64("video_duration", duration),
	)

	return &port.FrameExtractionResult{
		FrameCount:    count,
		VideoDuration: duration,
	}, nil
}

func extractArgs(videoPath, pattern string) []string {
	return []string{
		"-i", videoPath,
		"-vsync", "passthrough",
		"-start_number", "0",
		"-y",
		pattern,
	}
}

func (e *Extractor) getVideoDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}
