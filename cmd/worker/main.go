package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fiapx/fiapx-slowmo-service/internal/domain/entity"
	"github.com/fiapx/fiapx-slowmo-service/internal/flow"
	"github.com/fiapx/fiapx-slowmo-service/internal/infra/config"
	"github.com/fiapx/fiapx-slowmo-service/internal/infra/email"
	"github.com/fiapx/fiapx-slowmo-service/internal/infra/ffmpeg"
	"github.com/fiapx/fiapx-slowmo-service/internal/infra/metrics"
	miniostorage "github.com/fiapx/fiapx-slowmo-service/internal/infra/minio"
	"github.com/fiapx/fiapx-slowmo-service/internal/infra/opencv"
	"github.com/fiapx/fiapx-slowmo-service/internal/infra/output"
	"github.com/fiapx/fiapx-slowmo-service/internal/infra/postgres"
	"github.com/fiapx/fiapx-slowmo-service/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-slowmo-service/internal/infra/tracing"
	"github.com/fiapx/fiapx-slowmo-service/internal/infra/vidio"
	"github.com/fiapx/fiapx-slowmo-service/internal/render"
	"github.com/fiapx/fiapx-slowmo-service/internal/usecase"
	"github.com/fiapx/fiapx-slowmo-service/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting " + cfg.ServiceName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint, cfg.ServiceName)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(context.Background())
	}

	defaults, err := renderDefaults(cfg.Render)
	fatalOnErr(err, "parse render defaults")

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     cfg.MinIOEndpoint,
		AccessKey:    cfg.MinIOAccessKey,
		SecretKey:    cfg.MinIOSecretKey,
		UseSSL:       cfg.MinIOUseSSL,
		UploadBucket: cfg.MinIOUploadBucket,
		ResultBucket: cfg.MinIOResultBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")
	defer pub.Close()

	uc := usecase.NewRenderVideoUseCase(usecase.RenderVideoDeps{
		Repo:      postgres.NewRenderJobRepository(pool),
		Storage:   storage,
		Prober:    vidio.NewProber(),
		Extractor: ffmpeg.NewExtractor(log),
		Zipper:    ffmpeg.NewZipCreator(),
		Targets:   output.NewFactory(log),
		Publisher: rabbitmq.NewStatusPublisher(pub, cfg.RabbitMQStatusRoutingKey),
		DLQ:       rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ),
		Notifier:  email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log),
		Estimator: newEstimator(cfg.FlowEstimator, log),
	}, log, usecase.RenderVideoConfig{
		TempDir:         cfg.TempDir,
		MaxRetries:      cfg.MaxRetries,
		FlowCacheDir:    cfg.FlowCacheDir,
		FrameFormat:     cfg.FFmpegFormat,
		SmallFrameWidth: cfg.SmallFrameWidth,
		FlowPrebuild:    cfg.FlowPrebuild,
		FlowWorkers:     cfg.FlowWorkers,
		Workers:         cfg.WorkerCount,
		Defaults:        defaults,
	})

	var consuming atomic.Bool
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, consuming.Load, log)

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:              cfg.RabbitMQURL,
		Queue:            cfg.RabbitMQRenderQueue,
		RoutingKey:       cfg.RabbitMQRenderRoutingKey,
		Exchange:         cfg.RabbitMQExchange,
		DLQ:              cfg.RabbitMQDLQ,
		StatusQueue:      cfg.RabbitMQStatusQueue,
		StatusRoutingKey: cfg.RabbitMQStatusRoutingKey,
		Prefetch:         cfg.RabbitMQPrefetch,
		WorkerCount:      cfg.WorkerCount,
		BaseDelayMs:      cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		consuming.Store(false)
		cancel()
	}()

	log.Info(cfg.ServiceName+" started, consuming render requests",
		zap.Stringer("interpolation", defaults.Interpolation),
		zap.Float64("fps", defaults.FPS),
		zap.String("target", string(defaults.Target.Kind)),
	)
	consuming.Store(true)

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}
	consuming.Store(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info(cfg.ServiceName + " stopped")
}

// renderDefaults maps the RENDER_* environment onto the built-in preferences.
func renderDefaults(rd config.RenderDefaults) (render.Preferences, error) {
	return usecase.ApplyOptions(render.DefaultPreferences(), entity.RenderOptions{
		FPS:           rd.FPS,
		Size:          rd.Size,
		Interpolation: rd.Interpolation,
		CurveMode:     rd.CurveMode,
		MotionBlur:    rd.MotionBlur,
		MaxSamples:    rd.MaxSamples,
		SlowmoSamples: rd.SlowmoSamples,
		Target:        rd.Target,
		VideoCodec:    rd.VideoCodec,
		FailurePolicy: rd.FailurePolicy,
	})
}

// newEstimator prefers OpenCV Farneback and falls back to block matching
// when the binary was built without gocv.
func newEstimator(name string, log *zap.Logger) flow.Estimator {
	if name == "blockmatch" {
		return flow.NewBlockMatcher()
	}
	fb, err := opencv.NewFarneback(opencv.DefaultFarnebackParams())
	if err != nil {
		if !errors.Is(err, opencv.ErrUnavailable) {
			log.Error("farneback init failed", zap.Error(err))
		}
		log.Warn("falling back to block matching flow estimator", zap.Error(err))
		return flow.NewBlockMatcher()
	}
	return fb
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
