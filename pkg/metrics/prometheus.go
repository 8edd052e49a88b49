// Package metrics provides Prometheus metrics for the pokerank service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ranking
	votesRecorded  prometheus.Counter
	votesRejected  *prometheus.CounterVec
	ratingDelta    prometheus.Histogram
	matchupsServed prometheus.Counter
	rankingsServed prometheus.Counter
	entitiesTotal  prometheus.Gauge
	votesTotal     prometheus.Gauge

	// Seeding
	seedRuns             *prometheus.CounterVec
	seedEntitiesUpserted prometheus.Counter
	seedDuration         prometheus.Histogram
	upstreamDuration     *prometheus.HistogramVec
	upstreamFailures     *prometheus.CounterVec
	breakerState         prometheus.Gauge

	// Storage
	repositoryLatency *prometheus.HistogramVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerActive  prometheus.Gauge
	workerJobs    *prometheus.CounterVec
	workerLatency prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide metrics

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pokerank",
		subsystem:        "ranking",
		histogramBuckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:         prometheus.DefaultRegisterer,
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.votesRecorded = m.counter("votes_recorded_total", "Votes committed to the ledger")
	m.votesRejected = m.counterVec("votes_rejected_total", "Votes rejected before commit", "reason")
	m.ratingDelta = m.histogram("rating_delta_points", "Absolute rating change applied to the winner", []float64{1, 2, 4, 8, 12, 16, 20, 24, 28, 32})
	m.matchupsServed = m.counter("matchups_served_total", "Matchups handed out to clients")
	m.rankingsServed = m.counter("rankings_served_total", "Ranking views materialised")
	m.entitiesTotal = m.gauge("entities_total", "Entities currently ranked")
	m.votesTotal = m.gauge("votes_total", "Votes currently in the ledger")

	m.seedRuns = m.counterVec("seed_runs_total", "Seeding runs by outcome", "outcome")
	m.seedEntitiesUpserted = m.counter("seed_entities_upserted_total", "Entities upserted by seeding")
	m.seedDuration = m.histogram("seed_duration_milliseconds", "Wall time of a seeding run", prometheus.ExponentialBuckets(10, 2, 14))
	m.upstreamDuration = m.histogramVec("upstream_request_duration_milliseconds", "Latency of seed source requests", m.histogramBuckets, "endpoint")
	m.upstreamFailures = m.counterVec("upstream_failures_total", "Failed seed source requests", "endpoint", "reason")
	m.breakerState = m.gauge("upstream_breaker_state", "Seed source circuit breaker state (0 closed, 1 half-open, 2 open)")

	m.repositoryLatency = m.histogramVec("repository_operation_duration_milliseconds", "Storage operation latency", m.histogramBuckets, "driver", "operation")

	m.queueSize = m.gauge("queue_size", "Jobs waiting in the enrichment queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the enrichment queue")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Jobs refused by the queue")

	m.workerActive = m.gauge("worker_active_count", "Enrichment workers running")
	m.workerJobs = m.counterVec("worker_jobs_total", "Enrichment jobs by outcome", "outcome")
	m.workerLatency = m.histogram("worker_processing_latency_milliseconds", "Enrichment job latency", m.histogramBuckets)

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request latency", m.histogramBuckets, "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by HTTP endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100})
}

// RecordVote counts a committed vote and the winner's rating change.
func RecordVote(winnerDelta int) {
	globalManager.votesRecorded.Inc()
	if winnerDelta < 0 {
		winnerDelta = -winnerDelta
	}
	globalManager.ratingDelta.Observe(float64(winnerDelta))
}

// RecordVoteRejected counts a vote refused before any store mutation.
func RecordVoteRejected(reason string) {
	globalManager.votesRejected.WithLabelValues(reason).Inc()
}

// RecordMatchupServed increments the matchups counter.
func RecordMatchupServed() {
	globalManager.matchupsServed.Inc()
}

// RecordRankingServed increments the rankings counter.
func RecordRankingServed() {
	globalManager.rankingsServed.Inc()
}

// UpdateEntitiesTotal sets the entity gauge.
func UpdateEntitiesTotal(n int) {
	globalManager.entitiesTotal.Set(float64(n))
}

// UpdateVotesTotal sets the ledger size gauge.
func UpdateVotesTotal(n int) {
	globalManager.votesTotal.Set(float64(n))
}

// RecordSeedRun records a seeding run; outcome is "full", "fallback" or "failed".
func RecordSeedRun(outcome string, durationMs float64, upserted int) {
	globalManager.seedRuns.WithLabelValues(outcome).Inc()
	globalManager.seedDuration.Observe(durationMs)
	globalManager.seedEntitiesUpserted.Add(float64(upserted))
}

// RecordUpstreamRequest observes one seed source request.
func RecordUpstreamRequest(endpoint string, durationMs float64) {
	globalManager.upstreamDuration.WithLabelValues(endpoint).Observe(durationMs)
}

// RecordUpstreamFailure counts one failed seed source request.
func RecordUpstreamFailure(endpoint, reason string) {
	globalManager.upstreamFailures.WithLabelValues(endpoint, reason).Inc()
}

// UpdateBreakerState publishes the circuit breaker state.
func UpdateBreakerState(state int) {
	globalManager.breakerState.Set(float64(state))
}

// RecordRepositoryLatency observes a storage operation.
func RecordRepositoryLatency(driver, operation string, latencyMs float64) {
	globalManager.repositoryLatency.WithLabelValues(driver, operation).Observe(latencyMs)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActive.Set(float64(count))
}

// RecordWorkerJob records one processed job; outcome is "ok" or "error".
func RecordWorkerJob(outcome string, latencyMs float64) {
	globalManager.workerJobs.WithLabelValues(outcome).Inc()
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
