package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fiapx/fiapx-slowmo-service/internal/curve"
	"github.com/fiapx/fiapx-slowmo-service/internal/domain/entity"
	"github.com/fiapx/fiapx-slowmo-service/internal/domain/port"
	"github.com/fiapx/fiapx-slowmo-service/internal/flow"
	"github.com/fiapx/fiapx-slowmo-service/internal/frames"
	"github.com/fiapx/fiapx-slowmo-service/internal/infra/output"
	"github.com/fiapx/fiapx-slowmo-service/internal/render"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type fakeRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]entity.RenderJob
}

func newFakeRepo() *fakeRepo { return &fakeRepo{jobs: map[uuid.UUID]entity.RenderJob{}} }

func (r *fakeRepo) Create(_ context.Context, job *entity.RenderJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = *job
	return nil
}

func (r *fakeRepo) Update(ctx context.Context, job *entity.RenderJob) error {
	return r.Create(ctx, job)
}

func (r *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.RenderJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &j, nil
}

type fakeStorage struct {
	downloadErr error
	downloads   int
	uploads     map[string]string
	body        []byte
}

func (s *fakeStorage) DownloadVideo(_ context.Context, _ string, destPath string) error {
	s.downloads++
	if s.downloadErr != nil {
		return s.downloadErr
	}
	return os.WriteFile(destPath, []byte("video"), 0644)
}

func (s *fakeStorage) UploadResult(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if s.uploads == nil {
		s.uploads = map[string]string{}
	}
	s.uploads[key] = contentType
	var err error
	s.body, err = io.ReadAll(r)
	return err
}

type fakeProber struct{}

func (fakeProber) Probe(context.Context, string) (*port.VideoInfo, error) {
	return &port.VideoInfo{Width: 8, Height: 8, FPS: 1, Frames: 3, Duration: 3}, nil
}

// fakeExtractor writes n flat gray frames. Frames listed in junk are written
// as undecodable bytes; after runs once extraction is done.
type fakeExtractor struct {
	n     int
	junk  map[int]bool
	after func()
}

func (e fakeExtractor) ExtractFrames(_ context.Context, _ string, dst *frames.DirSource) (*port.FrameExtractionResult, error) {
	for i := 0; i < e.n; i++ {
		path := dst.FramePath(i, frames.Original)
		if e.junk[i] {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, err
			}
			if err := os.WriteFile(path, []byte("not a png"), 0644); err != nil {
				return nil, err
			}
			continue
		}
		img := image.NewGray(image.Rect(0, 0, 8, 8))
		for p := range img.Pix {
			img.Pix[p] = uint8(40 * i)
		}
		if err := frames.Save(path, img); err != nil {
			return nil, err
		}
	}
	if e.after != nil {
		e.after()
	}
	n, err := dst.Scan()
	if err != nil {
		return nil, err
	}
	return &port.FrameExtractionResult{FrameCount: n, VideoDuration: float64(n)}, nil
}

type fakeZipper struct{ files []string }

func (z *fakeZipper) CreateZip(_ context.Context, files []string, out string) error {
	z.files = files
	return os.WriteFile(out, []byte("zip"), 0644)
}

type recorder struct {
	mu       sync.Mutex
	statuses []entity.RenderStatusMessage
	dlq      []string
	mails    []string
}

func (r *recorder) PublishStatus(_ context.Context, msg []byte) error {
	var s entity.RenderStatusMessage
	if err := json.Unmarshal(msg, &s); err != nil {
		return err
	}
	r.mu.Lock()
	r.statuses = append(r.statuses, s)
	r.mu.Unlock()
	return nil
}

func (r *recorder) PublishToDLQ(_ context.Context, _ []byte, reason string) error {
	r.mu.Lock()
	r.dlq = append(r.dlq, reason)
	r.mu.Unlock()
	return nil
}

func (r *recorder) NotifyFailure(_ context.Context, to, _, _, _ string) error {
	r.mu.Lock()
	r.mails = append(r.mails, to)
	r.mu.Unlock()
	return nil
}

func (r *recorder) last() entity.RenderStatusMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[len(r.statuses)-1]
}

type zeroEstimator struct{ calls atomic.Int64 }

func (e *zeroEstimator) Name() string { return "zero" }

func (e *zeroEstimator) Estimate(_ context.Context, prev, _ *image.Gray) (*flow.Field, error) {
	e.calls.Add(1)
	return flow.NewField(prev.Bounds().Dx(), prev.Bounds().Dy()), nil
}

type fixture struct {
	uc      *RenderVideoUseCase
	repo    *fakeRepo
	storage *fakeStorage
	zipper  *fakeZipper
	rec     *recorder
	est     *zeroEstimator
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		repo:    newFakeRepo(),
		storage: &fakeStorage{},
		zipper:  &fakeZipper{},
		rec:     &recorder{},
		est:     &zeroEstimator{},
	}
	defaults := render.DefaultPreferences()
	defaults.FPS = 2
	f.uc = NewRenderVideoUseCase(RenderVideoDeps{
		Repo:      f.repo,
		Storage:   f.storage,
		Prober:    fakeProber{},
		Extractor: fakeExtractor{n: 3},
		Zipper:    f.zipper,
		Targets:   output.NewFactory(zap.NewNop()),
		Publisher: f.rec,
		DLQ:       f.rec,
		Notifier:  f.rec,
		Estimator: f.est,
	}, zaptest.NewLogger(t), RenderVideoConfig{
		TempDir:         t.TempDir(),
		MaxRetries:      3,
		FlowCacheDir:    t.TempDir(),
		SmallFrameWidth: 4,
		FlowPrebuild:    true,
		FlowWorkers:     2,
		Defaults:        defaults,
	})
	return f
}

func request(t *testing.T, nodes []curve.Node, opts entity.RenderOptions) (uuid.UUID, []byte) {
	t.Helper()
	id := uuid.New()
	body, err := json.Marshal(entity.RenderRequestMessage{
		JobID:     id,
		UserID:    "u1",
		VideoKey:  "u1/clip.mp4",
		UserEmail: "u1@example.com",
		Nodes:     nodes,
		Options:   opts,
	})
	require.NoError(t, err)
	return id, body
}

var slowCurve = []curve.Node{{X: 0, Y: 0}, {X: 2, Y: 1}}

func TestRenderVideo_ImagesCompleted(t *testing.T) {
	f := newFixture(t)
	id, body := request(t, slowCurve, entity.RenderOptions{Target: "images", MotionBlur: "nearest"})

	require.NoError(t, f.uc.Execute(context.Background(), body))

	job, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, 4, job.RenderedCount)
	assert.Equal(t, 3, job.SourceFrames)
	assert.Equal(t, "u1/slowmo_"+id.String()+".zip", job.OutputKey)

	assert.Equal(t, "application/zip", f.storage.uploads[job.OutputKey])
	assert.Len(t, f.zipper.files, 4)

	st := f.rec.last()
	assert.Equal(t, entity.JobStatusCompleted, st.Status)
	assert.Equal(t, 4, st.RenderedCount)
	assert.Empty(t, f.rec.dlq)

	// twoway on (0,1): forward and backward flow, computed once each
	assert.Equal(t, int64(2), f.est.calls.Load())
}

func TestRenderVideo_FlowCacheSharedAcrossJobs(t *testing.T) {
	f := newFixture(t)
	_, body := request(t, slowCurve, entity.RenderOptions{Target: "images"})
	require.NoError(t, f.uc.Execute(context.Background(), body))
	first := f.est.calls.Load()

	_, body = request(t, slowCurve, entity.RenderOptions{Target: "images"})
	require.NoError(t, f.uc.Execute(context.Background(), body))
	assert.Equal(t, first, f.est.calls.Load(), "second render of the same upload hits the cache")
}

func TestRenderVideo_IdleFlowCacheFollowsNextUpload(t *testing.T) {
	f := newFixture(t)

	var dirs []string
	for _, key := range []string{"u1/first.mp4", "u1/second.mp4"} {
		msg := entity.RenderRequestMessage{
			JobID:    uuid.New(),
			UserID:   "u1",
			VideoKey: key,
			Nodes:    slowCurve,
			Options:  entity.RenderOptions{Target: "images"},
		}
		body, err := json.Marshal(msg)
		require.NoError(t, err)
		require.NoError(t, f.uc.Execute(context.Background(), body))
		dirs = append(dirs, f.uc.projectDir(msg))
	}

	require.Len(t, f.uc.caches, 1, "one cache is reused across jobs")
	c := <-f.uc.caches
	assert.Equal(t, dirs[1], c.ProjectDir())

	// flow of the first upload is left in place, not migrated or deleted
	for _, dir := range dirs {
		files, err := filepath.Glob(filepath.Join(dir, "cache", "oFlowOrig", "*.sVflow"))
		require.NoError(t, err)
		assert.Len(t, files, 2, dir)
	}
	assert.Equal(t, int64(4), f.est.calls.Load())
}

func TestRenderVideo_MalformedMessageGoesToDLQ(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.uc.Execute(context.Background(), []byte(`{invalid json`)))
	require.Len(t, f.rec.dlq, 1)
	assert.Contains(t, f.rec.dlq[0], "unmarshal_error")
}

func TestRenderVideo_ValidationIsPermanent(t *testing.T) {
	f := newFixture(t)
	id, body := request(t, []curve.Node{{X: 0, Y: 0}}, entity.RenderOptions{})

	require.NoError(t, f.uc.Execute(context.Background(), body))

	job, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "at least 2 nodes")
	assert.Len(t, f.rec.dlq, 1)
	assert.Equal(t, []string{"u1@example.com"}, f.rec.mails)
	assert.Empty(t, f.storage.uploads)
	assert.Zero(t, f.storage.downloads, "invalid curve is rejected before the download")
}

func TestRenderVideo_UnresolvableSectionRejectedBeforeDownload(t *testing.T) {
	f := newFixture(t)
	_, body := request(t, slowCurve, entity.RenderOptions{SectionMode: "time", SectionStart: "1.5", SectionEnd: "0.5"})

	require.NoError(t, f.uc.Execute(context.Background(), body))
	require.Len(t, f.rec.dlq, 1)
	assert.Contains(t, f.rec.dlq[0], "section")
	assert.Zero(t, f.storage.downloads)
}

func TestRenderVideo_ShutdownRequeuesWithoutSpendingAttempt(t *testing.T) {
	f := newFixture(t)
	f.uc.cfg.MaxRetries = 1
	f.uc.cfg.FlowPrebuild = false

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.uc.deps.Extractor = fakeExtractor{n: 3, after: cancel}

	id, body := request(t, slowCurve, entity.RenderOptions{Target: "images"})
	err := f.uc.Execute(ctx, body)
	require.Error(t, err, "an error makes the consumer requeue")
	assert.ErrorIs(t, err, render.ErrAborted)

	job, ferr := f.repo.FindByID(context.Background(), id)
	require.NoError(t, ferr)
	assert.Equal(t, entity.JobStatusPending, job.Status)
	assert.Zero(t, job.Attempt)
	assert.Empty(t, f.rec.dlq)
	assert.Empty(t, f.rec.mails)
	assert.Empty(t, f.rec.statuses)

	// the redelivery after restart still has its only attempt
	f.uc.deps.Extractor = fakeExtractor{n: 3}
	require.NoError(t, f.uc.Execute(context.Background(), body))
	job, _ = f.repo.FindByID(context.Background(), id)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.Attempt)
}

func TestRenderVideo_UnreadableFrameIsPermanentInEveryMode(t *testing.T) {
	for _, interp := range []string{"linear", "nearest", "twoway"} {
		t.Run(interp, func(t *testing.T) {
			f := newFixture(t)
			f.uc.deps.Extractor = fakeExtractor{n: 3, junk: map[int]bool{1: true}}
			id, body := request(t, slowCurve, entity.RenderOptions{Target: "images", Interpolation: interp})

			require.NoError(t, f.uc.Execute(context.Background(), body))

			job, err := f.repo.FindByID(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, entity.JobStatusFailed, job.Status)
			assert.Equal(t, 1, job.Attempt)
			assert.Len(t, f.rec.dlq, 1)
			assert.Contains(t, f.rec.dlq[0], "frame_00001")
		})
	}
}

func TestRenderVideo_InvalidOptionsArePermanent(t *testing.T) {
	f := newFixture(t)
	_, body := request(t, slowCurve, entity.RenderOptions{Interpolation: "magic", MotionBlur: "gaussian"})

	require.NoError(t, f.uc.Execute(context.Background(), body))
	require.Len(t, f.rec.dlq, 1)
	assert.Contains(t, f.rec.dlq[0], "interpolation")
	assert.Contains(t, f.rec.dlq[0], "motion_blur")
}

func TestRenderVideo_DownloadFailureIsRetried(t *testing.T) {
	f := newFixture(t)
	f.storage.downloadErr = errors.New("connection reset")
	id, body := request(t, slowCurve, entity.RenderOptions{})

	err := f.uc.Execute(context.Background(), body)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attempt 1/3")

	job, _ := f.repo.FindByID(context.Background(), id)
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Empty(t, f.rec.dlq)
	assert.Equal(t, entity.JobStatusFailed, f.rec.last().Status)

	// the last allowed attempt goes to the DLQ
	require.Error(t, f.uc.Execute(context.Background(), body))
	require.NoError(t, f.uc.Execute(context.Background(), body))
	assert.Len(t, f.rec.dlq, 1)
}

func TestRenderVideo_CompletedJobIsNotRenderedAgain(t *testing.T) {
	f := newFixture(t)
	_, body := request(t, slowCurve, entity.RenderOptions{Target: "images"})
	require.NoError(t, f.uc.Execute(context.Background(), body))
	uploads := len(f.storage.uploads)

	require.NoError(t, f.uc.Execute(context.Background(), body))
	assert.Len(t, f.storage.uploads, uploads)
}

func TestRenderVideo_StagesAreTraced(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	f := newFixture(t)
	_, body := request(t, slowCurve, entity.RenderOptions{Target: "images"})
	require.NoError(t, f.uc.Execute(context.Background(), body))

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	assert.Subset(t, names, []string{
		"RenderVideoUseCase.Execute",
		"download_video",
		"probe_video",
		"extract_frames",
		"prebuild_flow",
		"render",
		"render.run",
		"create_zip",
		"upload_result",
	})
}
