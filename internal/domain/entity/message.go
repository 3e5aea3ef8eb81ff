package entity

import (
	"github.com/fiapx/fiapx-slowmo-service/internal/curve"
	"github.com/google/uuid"
)

// RenderRequestMessage is the inbound message from the render queue.
type RenderRequestMessage struct {
	JobID     uuid.UUID     `json:"job_id"`
	UserID    string        `json:"user_id"`
	VideoKey  string        `json:"video_key"`
	FileSize  int64         `json:"file_size"`
	UserEmail string        `json:"user_email"`
	Nodes     []curve.Node  `json:"nodes"`
	Tags      []curve.Tag   `json:"tags,omitempty"`
	Options   RenderOptions `json:"options"`
}

// RenderOptions overrides the worker's render defaults. Zero values keep the
// default.
type RenderOptions struct {
	FPS           float64 `json:"fps,omitempty"`
	Size          string  `json:"size,omitempty"`
	Interpolation string  `json:"interpolation,omitempty"`
	CurveMode     string  `json:"curve_mode,omitempty"`
	MotionBlur    string  `json:"motion_blur,omitempty"`
	MaxSamples    int     `json:"max_samples,omitempty"`
	SlowmoSamples int     `json:"slowmo_samples,omitempty"`
	SectionMode   string  `json:"section_mode,omitempty"`
	SectionStart  string  `json:"section_start,omitempty"`
	SectionEnd    string  `json:"section_end,omitempty"`
	Target        string  `json:"target,omitempty"`
	VideoCodec    string  `json:"video_codec,omitempty"`
	FailurePolicy string  `json:"failure_policy,omitempty"`
}

// RenderStatusMessage is the outbound message published on the status queue.
type RenderStatusMessage struct {
	JobID         uuid.UUID `json:"job_id"`
	UserID        string    `json:"user_id"`
	Status        JobStatus `json:"status"`
	VideoKey      string    `json:"video_key"`
	OutputKey     string    `json:"output_key,omitempty"`
	SourceFrames  int       `json:"source_frames,omitempty"`
	RenderedCount int       `json:"rendered_frames,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	Attempt       int       `json:"attempt"`
	MaxAttempts   int       `json:"max_attempts"`
}
