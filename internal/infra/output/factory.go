// Package output opens render targets by kind.
package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fiapx/fiapx-slowmo-service/internal/infra/imagefile"
	"github.com/fiapx/fiapx-slowmo-service/internal/infra/vidio"
	"github.com/fiapx/fiapx-slowmo-service/internal/render"
	"go.uber.org/zap"
)

type Factory struct {
	logger *zap.Logger
}

func NewFactory(logger *zap.Logger) *Factory {
	return &Factory{logger: logger}
}

func (f *Factory) Open(settings render.TargetSettings, fps float64) (render.Target, error) {
	switch settings.Kind {
	case render.TargetImages:
		return imagefile.NewTarget(settings.ImagesDir, settings.FilenamePattern, f.logger)
	case render.TargetVideo:
		if err := os.MkdirAll(filepath.Dir(settings.VideoFile), 0755); err != nil {
			return nil, fmt.Errorf("create video dir: %w", err)
		}
		return vidio.NewTarget(settings.VideoFile, fps, settings.VideoCodec, f.logger), nil
	}
	return nil, fmt.Errorf("unknown render target %q", settings.Kind)
}
