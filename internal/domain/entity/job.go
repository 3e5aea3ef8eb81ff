package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

type RenderJob struct {
	ID            uuid.UUID
	UserID        string
	VideoKey      string
	OutputKey     string
	Status        JobStatus
	SourceFrames  int
	SourceFPS     float64
	RenderedCount int
	Interpolation string
	FileSize      int64
	Attempt       int
	MaxAttempts   int
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

func NewRenderJob(userID, videoKey string, fileSize int64, maxAttempts int) *RenderJob {
	now := time.Now().UTC()
	return &RenderJob{
		ID:          uuid.New(),
		UserID:      userID,
		VideoKey:    videoKey,
		FileSize:    fileSize,
		Status:      JobStatusPending,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (j *RenderJob) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.ErrorMessage = ""
	j.UpdatedAt = time.Now().UTC()
}

// MarkSource records what was extracted from the input video.
func (j *RenderJob) MarkSource(frames int, fps float64) {
	j.SourceFrames = frames
	j.SourceFPS = fps
	j.UpdatedAt = time.Now().UTC()
}

func (j *RenderJob) MarkCompleted(outputKey string, rendered int) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.OutputKey = outputKey
	j.RenderedCount = rendered
	j.UpdatedAt = now
	j.CompletedAt = &now
}

// MarkInterrupted returns a job stopped by shutdown to PENDING without
// counting the attempt it was on.
func (j *RenderJob) MarkInterrupted() {
	j.Status = JobStatusPending
	if j.Attempt > 0 {
		j.Attempt--
	}
	j.UpdatedAt = time.Now().UTC()
}

func (j *RenderJob) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

func (j *RenderJob) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}
