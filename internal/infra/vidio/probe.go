// Package vidio wraps the Vidio ffmpeg bindings: probing input videos and
// encoding rendered frames.
package vidio

import (
	"context"
	"fmt"

	vidio "github.com/AlexEidt/Vidio"
	"github.com/fiapx/fiapx-slowmo-service/internal/domain/port"
)

type Prober struct{}

func NewProber() *Prober { return &Prober{} }

func (p *Prober) Probe(ctx context.Context, path string) (*port.VideoInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := vidio.NewVideo(path)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	defer v.Close()

	if v.FPS() <= 0 {
		return nil, fmt.Errorf("probe %s: video reports no frame rate", path)
	}
	return &port.VideoInfo{
		Width:    v.Width(),
		Height:   v.Height(),
		FPS:      v.FPS(),
		Frames:   v.Frames(),
		Duration: v.Duration(),
		Codec:    v.Codec(),
	}, nil
}
