// Package metrics provides Prometheus metrics for the lasertrack service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	constLabels    map[string]string
	registry       prometheus.Registerer

	// Log decoding
	logsDecoded     prometheus.Counter
	logLinesSkipped *prometheus.CounterVec

	// Match import
	matchesImported  *prometheus.CounterVec
	matchesRejected  *prometheus.CounterVec
	matchesDuplicate prometheus.Counter
	importLatency    prometheus.Histogram

	// Replay
	replayFrames      prometheus.Counter
	replayLatency     prometheus.Histogram
	replayErrors      prometheus.Counter
	replayCacheHits   prometheus.Counter
	replayCacheMisses prometheus.Counter

	// Rating
	ratingUpdates       *prometheus.CounterVec
	ratingFailures      prometheus.Counter
	ratingLockWait      prometheus.Histogram
	recomputeRuns       prometheus.Counter
	recomputeMatches    prometheus.Counter
	recomputeLastSecond prometheus.Gauge

	// Leaderboard
	leaderboardAccounts *prometheus.GaugeVec
	leaderboardQuery    prometheus.Histogram

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "lasertrack",
		subsystem:      "core",
		latencyBuckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		constLabels:    map[string]string{},
		registry:       prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.logsDecoded = m.counter("logs_decoded_total", "Total number of event logs decoded")
	m.logLinesSkipped = m.counterVec("log_lines_skipped_total", "Log lines skipped by the decoder", "reason")

	m.matchesImported = m.counterVec("matches_imported_total", "Matches persisted after import", "mode")
	m.matchesRejected = m.counterVec("matches_rejected_total", "Logs that did not produce a match", "reason")
	m.matchesDuplicate = m.counter("matches_duplicate_total", "Imports resolved to an already stored match")
	m.importLatency = m.histogram("import_latency_milliseconds", "End-to-end import latency in milliseconds", m.latencyBuckets)

	m.replayFrames = m.counter("replay_frames_total", "Replay frames produced")
	m.replayLatency = m.histogram("replay_latency_milliseconds", "Replay generation latency in milliseconds", m.latencyBuckets)
	m.replayErrors = m.counter("replay_errors_total", "Replay generations that failed")
	m.replayCacheHits = m.counter("replay_cache_hits_total", "Replay requests served from cache")
	m.replayCacheMisses = m.counter("replay_cache_misses_total", "Replay requests that built a new script")

	m.ratingUpdates = m.counterVec("rating_updates_total", "Rating updates applied", "kind")
	m.ratingFailures = m.counter("rating_failures_total", "Per-account rating updates skipped after an error")
	m.ratingLockWait = m.histogram("rating_lock_wait_milliseconds", "Time spent waiting for account locks", m.latencyBuckets)
	m.recomputeRuns = m.counter("recompute_runs_total", "Full rating recomputations started")
	m.recomputeMatches = m.counter("recompute_matches_total", "Matches replayed by full recomputation")
	m.recomputeLastSecond = m.gauge("recompute_last_duration_seconds", "Duration of the last full recomputation")

	m.leaderboardAccounts = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "leaderboard_accounts",
		Help: "Accounts tracked per leaderboard", ConstLabels: m.constLabels,
	}, []string{"mode"})
	m.leaderboardQuery = m.histogram("leaderboard_query_latency_milliseconds", "Leaderboard query latency in milliseconds", m.latencyBuckets)

	m.queueSize = m.gauge("queue_size", "Import jobs waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Import queue capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Import jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Import jobs dequeued")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Import jobs rejected by the queue", "reason")

	m.workerCount = m.gauge("worker_count", "Import workers running")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Import job processing latency", m.latencyBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Import jobs that failed")

	m.httpRequests = promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "http_requests_total",
		Help: "Total number of HTTP requests", ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "http_request_duration_milliseconds",
		Help: "HTTP request duration in milliseconds", ConstLabels: m.constLabels, Buckets: m.latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordLogDecoded increments the decoded logs counter.
func RecordLogDecoded() { globalManager.logsDecoded.Inc() }

// RecordLogLineSkipped counts a line dropped by the decoder.
func RecordLogLineSkipped(reason string) { globalManager.logLinesSkipped.WithLabelValues(reason).Inc() }

// RecordMatchImported counts a persisted match.
func RecordMatchImported(mode string) { globalManager.matchesImported.WithLabelValues(mode).Inc() }

// RecordMatchRejected counts a log that produced no match.
func RecordMatchRejected(reason string) { globalManager.matchesRejected.WithLabelValues(reason).Inc() }

// RecordMatchDuplicate counts an import answered by an existing match.
func RecordMatchDuplicate() { globalManager.matchesDuplicate.Inc() }

// RecordImportLatency records import latency in milliseconds.
func RecordImportLatency(latencyMs float64) { globalManager.importLatency.Observe(latencyMs) }

// RecordReplayFrames adds n produced frames.
func RecordReplayFrames(n int) { globalManager.replayFrames.Add(float64(n)) }

// RecordReplayLatency records replay generation latency in milliseconds.
func RecordReplayLatency(latencyMs float64) { globalManager.replayLatency.Observe(latencyMs) }

// RecordReplayError counts a failed replay generation.
func RecordReplayError() { globalManager.replayErrors.Inc() }

// RecordReplayCacheHit counts a cached replay.
func RecordReplayCacheHit() { globalManager.replayCacheHits.Inc() }

// RecordReplayCacheMiss counts a replay that had to be built.
func RecordReplayCacheMiss() { globalManager.replayCacheMisses.Inc() }

// RecordRatingUpdate counts an applied rating update of the given kind (partial, full, snapshot).
func RecordRatingUpdate(kind string) { globalManager.ratingUpdates.WithLabelValues(kind).Inc() }

// RecordRatingFailure counts a skipped per-account update.
func RecordRatingFailure() { globalManager.ratingFailures.Inc() }

// RecordRatingLockWait records time spent acquiring account locks.
func RecordRatingLockWait(waitMs float64) { globalManager.ratingLockWait.Observe(waitMs) }

// RecordRecomputeRun counts a started recomputation.
func RecordRecomputeRun() { globalManager.recomputeRuns.Inc() }

// RecordRecomputeMatch counts a match replayed during recomputation.
func RecordRecomputeMatch() { globalManager.recomputeMatches.Inc() }

// UpdateRecomputeDuration sets the duration of the last recomputation.
func UpdateRecomputeDuration(seconds float64) { globalManager.recomputeLastSecond.Set(seconds) }

// UpdateLeaderboardAccounts sets the number of ranked accounts in a mode.
func UpdateLeaderboardAccounts(mode string, count int) {
	globalManager.leaderboardAccounts.WithLabelValues(mode).Set(float64(count))
}

// RecordLeaderboardQueryLatency records leaderboard read latency in milliseconds.
func RecordLeaderboardQueryLatency(latencyMs float64) { globalManager.leaderboardQuery.Observe(latencyMs) }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue counts an accepted job.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue counts a job handed to a worker.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError counts a rejected job.
func RecordQueueEnqueueError(reason string) { globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc() }

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records job processing latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a failed job.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateSystemMemoryUsage sets the memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
