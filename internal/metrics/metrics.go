package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_library_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_library_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_library_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Probe metrics
var (
	ProbeAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_library_probe_attempts_total",
			Help: "Total number of duration probe invocations",
		},
	)

	ProbeNoDuration = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_library_probe_no_duration_total",
			Help: "Total number of probe invocations that yielded no usable duration",
		},
	)

	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_library_probe_duration_seconds",
			Help:    "Wall time of duration probe invocations in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

// Thumbnail metrics
var (
	ThumbnailsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_library_thumbnails_generated_total",
			Help: "Total number of thumbnail captures by outcome",
		},
		[]string{"outcome"}, // "ok", "error"
	)

	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_library_thumbnail_cache_hits_total",
			Help: "Total number of thumbnail requests served from an existing file",
		},
	)
)

// Sprite job metrics
var (
	SpriteJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_library_sprite_jobs_total",
			Help: "Total number of sprite generation jobs by outcome",
		},
		[]string{"outcome"}, // "ok", "error", "rejected"
	)

	SpriteJobsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_library_sprite_jobs_running",
			Help: "Number of sprite generation jobs currently running",
		},
	)

	SpriteJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_library_sprite_job_duration_seconds",
			Help:    "Wall time of sprite generation jobs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)
)

// Library metrics
var (
	LibraryListings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_library_listings_total",
			Help: "Total number of library listing requests",
		},
	)

	LibraryFilesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_library_files_skipped_total",
			Help: "Total number of files omitted from listings due to per-file errors",
		},
	)

	LibraryMissingDurations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_library_missing_durations",
			Help: "Number of records still missing a duration after the last regeneration",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_library_fs_stale_errors_total",
			Help: "Total number of NFS stale file handle errors",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_library_fs_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retry",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_library_fs_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation"},
	)
)

// Asset serving metrics
var (
	AssetBytesServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_library_asset_bytes_served_total",
			Help: "Total bytes served per asset class",
		},
		[]string{"class"},
	)

	AssetRangeRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_library_asset_range_requests_total",
			Help: "Total number of byte-range requests served",
		},
	)
)

// Memory monitor metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_library_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryForcedGC = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_library_memory_forced_gc_total",
			Help: "Total number of garbage collections forced by the memory monitor",
		},
	)
)
