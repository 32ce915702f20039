package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	FilesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptlib_files_processed_total",
		Help: "Source units processed, by build direction and outcome.",
	}, []string{"direction", "result"})

	DirectivesRewrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptlib_directives_rewritten_total",
		Help: "Module-reference directives commented out or restored.",
	}, []string{"direction"})

	TransformWarningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scriptlib_transform_warnings_total",
		Help: "Per-file warnings raised while transforming source units.",
	}, []string{"direction"})

	TransformDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scriptlib_transform_seconds",
		Help:    "Time spent transforming a single source unit.",
		Buckets: prometheus.DefBuckets,
	}, []string{"direction"})

	BuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scriptlib_build_seconds",
		Help:    "Wall time of a whole build.",
		Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"direction"})

	DirectiveCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scriptlib_directive_cache_entries",
		Help: "Parsed directives currently held in the LRU cache.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scriptlib_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	RebuildsThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scriptlib_rebuilds_throttled_total",
		Help: "Watch-mode rebuilds delayed by the rebuild rate limit.",
	})
)
