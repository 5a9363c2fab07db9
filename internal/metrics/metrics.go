package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compilation_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "compilation_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Job Metrics
	JobsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compilation_jobs_submitted_total",
			Help: "Total number of compilation requests by outcome",
		},
		[]string{"result"},
	)

	JobsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compilation_jobs_completed_total",
			Help: "Total number of finished compilation jobs",
		},
		[]string{"status"},
	)

	JobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "compilation_jobs_in_progress",
			Help: "Number of jobs currently being processed",
		},
	)

	JobsQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "compilation_jobs_queue_depth",
			Help: "Number of jobs waiting for a worker",
		},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "compilation_job_duration_seconds",
			Help:    "Job processing duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		},
		[]string{"status"},
	)

	TrackedJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "compilation_tracked_jobs",
			Help: "Number of job snapshots held by the in-memory tracker",
		},
	)

	ClipsPerJob = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "compilation_clips_per_job",
			Help:    "Number of clips in a compilation request",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
		},
	)

	// Pipeline Metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "compilation_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		},
		[]string{"stage", "status"},
	)

	// Fetch Metrics
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compilation_source_fetches_total",
			Help: "Total number of source video downloads",
		},
		[]string{"status"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "compilation_source_fetch_duration_seconds",
			Help:    "Source download duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	FetchBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "compilation_source_fetch_bytes_total",
			Help: "Total bytes downloaded from sources",
		},
	)

	// Storage Metrics
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compilation_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "compilation_storage_operation_duration_seconds",
			Help:    "Storage operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"operation"},
	)

	StorageBytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compilation_storage_bytes_transferred_total",
			Help: "Total bytes transferred to/from storage",
		},
		[]string{"operation"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compilation_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordJobSubmitted records the outcome of a submission: accepted, rejected or saturated
func RecordJobSubmitted(result string, clips int) {
	JobsSubmittedTotal.WithLabelValues(result).Inc()
	if result == "accepted" {
		ClipsPerJob.Observe(float64(clips))
	}
}

// RecordJobCompleted records a job reaching a terminal state
func RecordJobCompleted(status string, duration float64) {
	JobsCompletedTotal.WithLabelValues(status).Inc()
	JobDuration.WithLabelValues(status).Observe(duration)
}

// JobStarted marks a job as running
func JobStarted() {
	JobsInProgress.Inc()
}

// JobFinished marks a running job as done
func JobFinished() {
	JobsInProgress.Dec()
}

// SetQueueDepth updates the number of waiting jobs
func SetQueueDepth(depth int) {
	JobsQueueDepth.Set(float64(depth))
}

// SetTrackedJobs updates the number of jobs held in memory
func SetTrackedJobs(n int) {
	TrackedJobs.Set(float64(n))
}

// RecordStage records the duration of one pipeline stage
func RecordStage(stage, status string, duration float64) {
	StageDuration.WithLabelValues(stage, status).Observe(duration)
}

// RecordFetch records a source download
func RecordFetch(status string, duration float64, bytes int64) {
	FetchesTotal.WithLabelValues(status).Inc()
	FetchDuration.Observe(duration)
	FetchBytes.Add(float64(bytes))
}

// RecordStorageOperation records a storage operation
func RecordStorageOperation(operation, status string, duration float64, bytesTransferred int64) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageOperationDuration.WithLabelValues(operation).Observe(duration)
	StorageBytesTransferred.WithLabelValues(operation).Add(float64(bytesTransferred))
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
