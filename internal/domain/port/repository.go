package port

import (
	"context"

	"github.com/fiapx/fiapx-slowmo-service/internal/domain/entity"
	"github.com/google/uuid"
)

type RenderJobRepository interface {
	Create(ctx context.Context, job *entity.RenderJob) error
	Update(ctx context.Context, job *entity.RenderJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.RenderJob, error)
}
