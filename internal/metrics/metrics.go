package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal counts finished jobs by terminal status.
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subtitles_jobs_total",
			Help: "Total number of finished transcription jobs",
		},
		[]string{"status"},
	)

	// RunDuration tracks how long external tool runs take, by model.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "subtitles_run_duration_seconds",
			Help:    "Duration of transcription runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 500ms to ~17min
		},
		[]string{"model"},
	)

	// QueueDepth tracks how many jobs are waiting for admission.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "subtitles_queue_depth",
			Help: "Number of jobs waiting in the admission queue",
		},
	)

	// ActiveRuns tracks how many runner invocations are in flight.
	ActiveRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "subtitles_active_runs",
			Help: "Number of transcription subprocesses currently running",
		},
	)

	// CacheHits counts jobs served from the result cache without a run.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "subtitles_cache_hits_total",
			Help: "Total number of jobs resolved from the result cache",
		},
	)
)
