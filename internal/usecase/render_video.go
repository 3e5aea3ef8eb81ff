package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/fiapx/fiapx-slowmo-service/internal/curve"
	"github.com/fiapx/fiapx-slowmo-service/internal/domain/entity"
	"github.com/fiapx/fiapx-slowmo-service/internal/domain/port"
	"github.com/fiapx/fiapx-slowmo-service/internal/flow"
	"github.com/fiapx/fiapx-slowmo-service/internal/frames"
	"github.com/fiapx/fiapx-slowmo-service/internal/infra/metrics"
	"github.com/fiapx/fiapx-slowmo-service/internal/render"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type RenderVideoDeps struct {
	Repo      port.RenderJobRepository
	Storage   port.VideoStorage
	Prober    port.VideoProber
	Extractor port.FrameExtractor
	Zipper    port.Zipper
	Targets   port.TargetFactory
	Publisher port.StatusPublisher
	DLQ       port.DLQPublisher
	Notifier  port.FailureNotifier
	Estimator flow.Estimator
}

type RenderVideoConfig struct {
	TempDir         string
	MaxRetries      int
	FlowCacheDir    string
	FrameFormat     string
	SmallFrameWidth int
	FlowPrebuild    bool
	FlowWorkers     int
	// Workers is the number of jobs rendered at once; it sizes the pool of
	// flow caches kept between jobs.
	Workers  int
	Defaults render.Preferences
}

// RenderVideoUseCase turns one render request into a rendered slow-motion
// output in object storage.
type RenderVideoUseCase struct {
	deps   RenderVideoDeps
	cfg    RenderVideoConfig
	logger *zap.Logger
	caches chan *flow.Cache
}

func NewRenderVideoUseCase(deps RenderVideoDeps, logger *zap.Logger, cfg RenderVideoConfig) *RenderVideoUseCase {
	if cfg.FrameFormat == "" {
		cfg.FrameFormat = "png"
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &RenderVideoUseCase{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		caches: make(chan *flow.Cache, cfg.Workers),
	}
}

// errPermanent marks failures that would repeat identically on retry.
var errPermanent = errors.New("permanent failure")

func isPermanent(err error) bool {
	return errors.Is(err, errPermanent) ||
		errors.Is(err, render.ErrValidation) ||
		errors.Is(err, flow.ErrFlowBuilding) ||
		errors.Is(err, render.ErrUnreadableFrame) ||
		errors.Is(err, curve.ErrEmptyCurve) ||
		errors.Is(err, errInvalidOptions)
}

func (uc *RenderVideoUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "RenderVideoUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.RenderRequestMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.deps.DLQ.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		metrics.RenderJobsTotal.WithLabelValues("malformed").Inc()
		return nil
	}
	if msg.JobID == uuid.Nil || msg.VideoKey == "" {
		uc.logger.Error("render request without job id or video key", zap.ByteString("body", rawMsg))
		_ = uc.deps.DLQ.PublishToDLQ(ctx, rawMsg, "invalid_message: missing job_id or video_key")
		metrics.RenderJobsTotal.WithLabelValues("malformed").Inc()
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))

	job, err := uc.deps.Repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewRenderJob(msg.UserID, msg.VideoKey, msg.FileSize, uc.cfg.MaxRetries)
		job.ID = msg.JobID
		if err := uc.deps.Repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if job.Status == entity.JobStatusCompleted {
		log.Info("job already completed, dropping duplicate request")
		return nil
	}
	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded", log)
		return nil
	}

	job.MarkProcessing()
	if err := uc.deps.Repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	if err := uc.renderPipeline(ctx, job, msg, log); err != nil {
		if interrupted(ctx, err) {
			return uc.handleInterrupted(ctx, job, err, log)
		}
		if isPermanent(err) {
			return uc.handlePermanentFailure(ctx, job, msg, rawMsg, err.Error(), log)
		}
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, err.Error(), log)
	}

	metrics.RenderJobsTotal.WithLabelValues("completed").Inc()
	metrics.RenderStageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())
	return nil
}

// interrupted reports a render stopped by shutdown rather than by the job.
func interrupted(ctx context.Context, err error) bool {
	return errors.Is(err, render.ErrAborted) || ctx.Err() != nil
}

// handleInterrupted hands the job back untouched: the attempt is not counted,
// nothing is published and the error makes the consumer requeue the message.
func (uc *RenderVideoUseCase) handleInterrupted(ctx context.Context, job *entity.RenderJob, cause error, log *zap.Logger) error {
	job.MarkInterrupted()
	if err := uc.deps.Repo.Update(context.WithoutCancel(ctx), job); err != nil {
		log.Error("failed to reset interrupted job", zap.Error(err))
	}
	metrics.RenderJobsTotal.WithLabelValues("interrupted").Inc()
	log.Warn("render interrupted, job will be redelivered", zap.Error(cause))
	return fmt.Errorf("render interrupted: %w", cause)
}

// stage runs fn inside a span and records its duration.
func stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := otel.Tracer("usecase").Start(ctx, name)
	defer span.End()
	start := time.Now()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%s: %w", name, err)
	}
	metrics.RenderStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return nil
}

func (uc *RenderVideoUseCase) renderPipeline(ctx context.Context, job *entity.RenderJob, msg entity.RenderRequestMessage, log *zap.Logger) error {
	prefs, err := ApplyOptions(uc.cfg.Defaults, msg.Options)
	if err != nil {
		return err
	}
	job.Interpolation = prefs.Interpolation.String()

	workDir := filepath.Join(uc.cfg.TempDir, job.ID.String())
	switch prefs.Target.Kind {
	case render.TargetImages:
		prefs.Target.ImagesDir = filepath.Join(workDir, "rendered")
	case render.TargetVideo:
		prefs.Target.VideoFile = filepath.Join(workDir, "rendered.mp4")
	}

	// Everything but the frame count is known now; reject bad requests
	// before downloading anything.
	if err := render.Validate(prefs, curve.NewNodeList(msg.Nodes...), msg.Tags, 1); err != nil {
		return err
	}

	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	videoPath := filepath.Join(workDir, "input"+filepath.Ext(msg.VideoKey))
	if err := stage(ctx, "download_video", func(ctx context.Context) error {
		return uc.deps.Storage.DownloadVideo(ctx, msg.VideoKey, videoPath)
	}); err != nil {
		return err
	}

	var info *port.VideoInfo
	if err := stage(ctx, "probe_video", func(ctx context.Context) (err error) {
		info, err = uc.deps.Prober.Probe(ctx, videoPath)
		return err
	}); err != nil {
		return fmt.Errorf("%w: %w", errPermanent, err)
	}

	src := frames.NewDirSource(filepath.Join(workDir, "frames"), uc.cfg.FrameFormat)
	var extracted *port.FrameExtractionResult
	if err := stage(ctx, "extract_frames", func(ctx context.Context) (err error) {
		extracted, err = uc.deps.Extractor.ExtractFrames(ctx, videoPath, src)
		return err
	}); err != nil {
		return err
	}
	job.MarkSource(extracted.FrameCount, info.FPS)
	log.Info("source ready",
		zap.Int("frames", extracted.FrameCount),
		zap.Float64("fps", info.FPS),
		zap.Int("width", info.Width),
		zap.Int("height", info.Height),
	)

	if prefs.Size == frames.Small {
		if err := stage(ctx, "build_small_frames", func(ctx context.Context) error {
			return src.BuildSmall(ctx, extracted.FrameCount, uc.cfg.SmallFrameWidth)
		}); err != nil {
			return err
		}
	}

	cache, err := uc.acquireCache(uc.projectDir(msg))
	if err != nil {
		return fmt.Errorf("open flow cache: %w", err)
	}
	defer uc.releaseCache(cache)
	flows := flow.NewCachedSource(cache, src, uc.deps.Estimator, log)

	target, err := uc.deps.Targets.Open(prefs.Target, prefs.FPS)
	if err != nil {
		return fmt.Errorf("open render target: %w", err)
	}

	task, err := render.NewTask(render.Config{
		Prefs:      prefs,
		Curve:      curve.NewNodeList(msg.Nodes...),
		Tags:       msg.Tags,
		Frames:     src,
		FrameCount: extracted.FrameCount,
		SourceFPS:  info.FPS,
		Flow:       flows,
		Target:     target,
		Logger:     log,
		Observers:  []render.Observer{progressLogger(log)},
	})
	if err != nil {
		_ = target.Close()
		return err
	}
	defer task.Discard()

	if uc.cfg.FlowPrebuild && prefs.Interpolation.UsesFlow() {
		if err := stage(ctx, "prebuild_flow", func(ctx context.Context) error {
			keys, err := task.FlowKeys()
			if err != nil {
				return err
			}
			b := &flow.Builder{Source: flows, Workers: uc.cfg.FlowWorkers}
			return b.Build(ctx, keys, func(done, total int, key flow.Key) {
				if done == total || done%50 == 0 {
					log.Debug("flow prebuild progress", zap.Int("done", done), zap.Int("total", total))
				}
			})
		}); err != nil {
			return err
		}
		log.Info("flow cache ready", zap.Int64("computed", flows.Computations()))
	}

	if err := stage(ctx, "render", task.Run); err != nil {
		return err
	}

	outputKey, err := uc.publishResult(ctx, job, msg, prefs.Target)
	if err != nil {
		return err
	}

	job.MarkCompleted(outputKey, task.Total())
	if err := uc.deps.Repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("render completed",
		zap.Int("rendered_frames", task.Total()),
		zap.Int64("flow_computations", flows.Computations()),
		zap.String("output_key", outputKey),
	)
	return nil
}

// projectDir is the per-video flow cache directory. It is keyed by the input
// object so retries and re-renders of the same upload reuse computed flow.
func (uc *RenderVideoUseCase) projectDir(msg entity.RenderRequestMessage) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s|%d|%d", msg.VideoKey, msg.FileSize, uc.cfg.SmallFrameWidth)))
	return filepath.Join(uc.cfg.FlowCacheDir, id.String())
}

// acquireCache points an idle cache from a finished job at projectDir, or
// opens a new one. Entries of the previous project stay on disk for later
// renders of that upload.
func (uc *RenderVideoUseCase) acquireCache(projectDir string) (*flow.Cache, error) {
	select {
	case c := <-uc.caches:
		if err := c.Relocate(projectDir, false); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return flow.NewCache(projectDir)
	}
}

func (uc *RenderVideoUseCase) releaseCache(c *flow.Cache) {
	select {
	case uc.caches <- c:
	default:
	}
}

// publishResult packages the rendered output and uploads it.
func (uc *RenderVideoUseCase) publishResult(ctx context.Context, job *entity.RenderJob, msg entity.RenderRequestMessage, ts render.TargetSettings) (string, error) {
	var path, key, contentType string
	switch ts.Kind {
	case render.TargetImages:
		path = filepath.Join(filepath.Dir(ts.ImagesDir), "rendered.zip")
		key = fmt.Sprintf("%s/slowmo_%s.zip", msg.UserID, job.ID)
		contentType = "application/zip"
		if err := stage(ctx, "create_zip", func(ctx context.Context) error {
			files, err := listFiles(ts.ImagesDir)
			if err != nil {
				return err
			}
			return uc.deps.Zipper.CreateZip(ctx, files, path)
		}); err != nil {
			return "", err
		}
	default:
		path = ts.VideoFile
		key = fmt.Sprintf("%s/slowmo_%s%s", msg.UserID, job.ID, filepath.Ext(ts.VideoFile))
		contentType = "video/mp4"
	}

	err := stage(ctx, "upload_result", func(ctx context.Context) error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		st, err := f.Stat()
		if err != nil {
			return err
		}
		return uc.deps.Storage.UploadResult(ctx, key, f, st.Size(), contentType)
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list rendered frames: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func progressLogger(log *zap.Logger) render.Observer {
	lastPct := -1
	return func(ev render.Event) {
		if ev.Kind != render.EventFrameRendered || ev.Total == 0 {
			return
		}
		pct := (ev.Frame + 1) * 100 / ev.Total
		if pct/10 == lastPct/10 {
			return
		}
		lastPct = pct
		log.Info("render progress",
			zap.Int("frame", ev.Frame+1),
			zap.Int("total", ev.Total),
			zap.Float64("speed", ev.Speed),
			zap.Duration("elapsed", ev.Elapsed),
		)
	}
}

func (uc *RenderVideoUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.RenderJob,
	msg entity.RenderRequestMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.deps.Repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg, log)
	}

	log.Warn("render failed, will retry", zap.Int("attempt", job.Attempt), zap.String("error", errMsg))
	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *RenderVideoUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.RenderJob,
	msg entity.RenderRequestMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	log.Error("render failed permanently", zap.String("error", errMsg))
	job.MarkFailed(errMsg)
	_ = uc.deps.Repo.Update(ctx, job)

	_ = uc.deps.DLQ.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, log)

	metrics.RenderJobsTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.deps.Notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), msg.VideoKey, errMsg)
	}

	return nil
}

func (uc *RenderVideoUseCase) publishStatus(ctx context.Context, job *entity.RenderJob, log *zap.Logger) {
	statusMsg := entity.RenderStatusMessage{
		JobID:         job.ID,
		UserID:        job.UserID,
		Status:        job.Status,
		VideoKey:      job.VideoKey,
		OutputKey:     job.OutputKey,
		SourceFrames:  job.SourceFrames,
		RenderedCount: job.RenderedCount,
		ErrorMessage:  job.ErrorMessage,
		Attempt:       job.Attempt,
		MaxAttempts:   job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.deps.Publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
