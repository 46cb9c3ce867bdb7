package metrics

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, path, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// JobsArmed is the number of backup jobs with an outstanding timer.
	JobsArmed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "backup_jobs_armed",
			Help: "Number of backup jobs currently armed with a timer",
		},
	)

	// BackupRunsTotal counts finished backup runs by outcome (ok, error, degraded).
	BackupRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_runs_total",
			Help: "Total number of backup runs finished by outcome",
		},
		[]string{"outcome"},
	)

	// BackupRunDuration tracks how long one backup run takes, dump through prune.
	BackupRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backup_run_duration_seconds",
			Help:    "Duration of one backup run in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// ArchivesPruned counts archive files deleted by retention pruning.
	ArchivesPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "backup_archives_pruned_total",
			Help: "Total number of archive files deleted by retention pruning",
		},
	)
)

var (
	numericPathSegment = regexp.MustCompile(`/[0-9]+(/|$)`)
	jobPathSegment     = regexp.MustCompile(`(/jobs)/[^/]+`)
	filePathSegment    = regexp.MustCompile(`(/files)/[^/]+`)
	initOnce           sync.Once
)

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestDuration, RequestTotal, JobsArmed, BackupRunsTotal, BackupRunDuration, ArchivesPruned)
	})
}

// NormalizePath reduces cardinality by replacing variable path segments:
// numeric segments, job ids under /jobs, and filenames under /files.
func NormalizePath(path string) string {
	path = numericPathSegment.ReplaceAllString(path, "/{id}$1")
	path = jobPathSegment.ReplaceAllString(path, "$1/{id}")
	path = filePathSegment.ReplaceAllString(path, "$1/{name}")
	return path
}

// RecordRequest records duration and count for an HTTP request. Call from middleware with method, path, statusCode, duration.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	path = NormalizePath(path)
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

// RecordBackupRun records one finished backup run with its outcome and duration.
func RecordBackupRun(outcome string, durationSeconds float64) {
	BackupRunsTotal.WithLabelValues(outcome).Inc()
	BackupRunDuration.Observe(durationSeconds)
}
