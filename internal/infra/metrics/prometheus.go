package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RenderJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slowmo_render_jobs_total",
		Help: "Total number of render jobs processed, by outcome",
	}, []string{"status"})

	RenderStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "slowmo_render_stage_duration_seconds",
		Help:    "Duration of each stage of the render pipeline",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	}, []string{"stage"})

	FramesRenderedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slowmo_frames_rendered_total",
		Help: "Total number of output frames handed to render targets",
	})

	FrameRenderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "slowmo_frame_render_duration_seconds",
		Help:    "Time to synthesize one output frame, flow lookups included",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	FlowCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slowmo_flow_cache_requests_total",
		Help: "Flow cache lookups, by result (hit, miss, recompute)",
	}, []string{"result"})

	FlowBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "slowmo_flow_build_duration_seconds",
		Help:    "Duration of one dense optical flow computation",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"resolution"})

	FlowCacheWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slowmo_flow_cache_write_failures_total",
		Help: "Flow fields that were computed but could not be persisted",
	})

	ActiveRenders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slowmo_active_renders",
		Help: "Number of render tasks currently running",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slowmo_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})
)
