package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/fiapx/fiapx-slowmo-service/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrJobNotFound = errors.New("render job not found")

type RenderJobRepository struct {
	pool *pgxpool.Pool
}

func NewRenderJobRepository(pool *pgxpool.Pool) *RenderJobRepository {
	return &RenderJobRepository{pool: pool}
}

func (r *RenderJobRepository) Create(ctx context.Context, job *entity.RenderJob) error {
	query := `
		INSERT INTO render_jobs (
			id, user_id, video_key, output_key, status, source_frames,
			source_fps, rendered_frames, interpolation, file_size, attempt,
			max_attempts, error_message, created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, job.UserID, job.VideoKey, job.OutputKey, string(job.Status),
		job.SourceFrames, job.SourceFPS, job.RenderedCount, job.Interpolation,
		job.FileSize, job.Attempt, job.MaxAttempts, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert render job: %w", err)
	}
	return nil
}

func (r *RenderJobRepository) Update(ctx context.Context, job *entity.RenderJob) error {
	query := `
		UPDATE render_jobs SET
			status=$2, output_key=$3, source_frames=$4, source_fps=$5,
			rendered_frames=$6, interpolation=$7, attempt=$8, error_message=$9,
			updated_at=$10, completed_at=$11
		WHERE id=$1`

	tag, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.OutputKey, job.SourceFrames, job.SourceFPS,
		job.RenderedCount, job.Interpolation, job.Attempt, job.ErrorMessage,
		job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update render job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update render job %s: %w", job.ID, ErrJobNotFound)
	}
	return nil
}

func (r *RenderJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.RenderJob, error) {
	query := `
		SELECT id, user_id, video_key, output_key, status, source_frames,
			source_fps, rendered_frames, interpolation, file_size, attempt,
			max_attempts, error_message, created_at, updated_at, completed_at
		FROM render_jobs WHERE id=$1`

	job := &entity.RenderJob{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.VideoKey, &job.OutputKey, &status,
		&job.SourceFrames, &job.SourceFPS, &job.RenderedCount, &job.Interpolation,
		&job.FileSize, &job.Attempt, &job.MaxAttempts, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("find render job %s: %w", id, ErrJobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find render job by id: %w", err)
	}
	job.Status = entity.JobStatus(status)
	return job, nil
}
