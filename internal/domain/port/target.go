package port

import "github.com/fiapx/fiapx-slowmo-service/internal/render"

// TargetFactory opens the sink a render task writes to.
type TargetFactory interface {
	Open(settings render.TargetSettings, fps float64) (render.Target, error)
}
