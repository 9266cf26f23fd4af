// Package metrics provides Prometheus metrics for the civiclens media analysis service.
package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     prometheus.Labels
	registry         prometheus.Registerer

	// Analysis
	analysisRequests  *prometheus.CounterVec
	analysisLatency   *prometheus.HistogramVec
	fallbackTotal     *prometheus.CounterVec
	analysisFailures  *prometheus.CounterVec
	framesExtracted   prometheus.Counter
	framesFailed      prometheus.Counter
	providerCalls     *prometheus.CounterVec
	providerLatency   prometheus.Histogram
	providerAvailable prometheus.Gauge

	// Cache
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	cacheErrors *prometheus.CounterVec

	// Tasks
	taskTransitions *prometheus.CounterVec
	taskTimeouts    prometheus.Counter
	tasksTracked    prometheus.Gauge
	tasksEvicted    prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueRejected      prometheus.Counter
	queueProcessingLat prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "civiclens",
		subsystem:        "analysis",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		enabled:          true,
		customLabels:     prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// GetRegistry returns the registry the global manager writes to.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.analysisRequests = m.counterVec("requests_total", "Analysis requests by media type and result source", "media_type", "source")
	m.analysisLatency = m.histogramVec("latency_milliseconds", "End-to-end analysis latency in milliseconds", "media_type")
	m.fallbackTotal = m.counterVec("fallback_total", "Results produced by the keyword fallback, by reason", "reason")
	m.analysisFailures = m.counterVec("failures_total", "Analysis calls that returned an error, by kind", "kind")
	m.framesExtracted = m.counter("frames_extracted_total", "Video frames extracted and persisted")
	m.framesFailed = m.counter("frames_failed_total", "Video frames that could not be extracted or persisted")
	m.providerCalls = m.counterVec("provider_calls_total", "Outbound AI provider calls by outcome", "provider", "outcome")
	m.providerLatency = m.histogram("provider_latency_milliseconds", "AI provider call latency in milliseconds")
	m.providerAvailable = m.gauge("provider_available", "1 when the AI provider is considered available")

	m.cacheHits = m.counter("cache_hits_total", "Result cache hits")
	m.cacheMisses = m.counter("cache_misses_total", "Result cache misses")
	m.cacheErrors = m.counterVec("cache_errors_total", "Result cache backend errors by operation", "op")

	m.taskTransitions = m.counterVec("task_transitions_total", "Async task lifecycle transitions by target status", "status")
	m.taskTimeouts = m.counter("task_timeouts_total", "Async tasks forced to failed by the processing deadline")
	m.tasksTracked = m.gauge("tasks_tracked", "Async tasks currently held in the task store")
	m.tasksEvicted = m.counter("tasks_evicted_total", "Async tasks removed after their retention window")

	m.queueSize = m.gauge("queue_size", "Current size of the task queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the task queue")
	m.queueUtilization = m.gauge("queue_utilization_percent", "Task queue utilization percentage")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Jobs accepted into the task queue")
	m.queueDequeued = m.counter("queue_dequeued_total", "Jobs taken from the task queue")
	m.queueRejected = m.counter("queue_rejected_total", "Jobs rejected because the queue was full or closed")
	m.queueProcessingLat = m.histogram("queue_wait_milliseconds", "Time a job waited in the queue in milliseconds")

	m.workerCount = m.gauge("worker_count", "Number of task workers")
	m.workerProcessingLatency = m.histogram("worker_processing_milliseconds", "Task processing time per worker in milliseconds")
	m.workerErrors = m.counter("worker_errors_total", "Task processing errors reported by workers")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.httpErrors = m.counterVec("http_errors_total", "HTTP responses with status >= 400", "endpoint", "status_code")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes in use")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
}

func on() bool { return globalManager != nil && globalManager.enabled }

// RecordAnalysis records a finished analysis by media type and source (cache, provider, fallback).
func RecordAnalysis(mediaType, source string, latency time.Duration) {
	if !on() {
		return
	}
	globalManager.analysisRequests.WithLabelValues(mediaType, source).Inc()
	globalManager.analysisLatency.WithLabelValues(mediaType).Observe(float64(latency.Milliseconds()))
}

// RecordFallback increments the fallback counter for a reason.
func RecordFallback(reason string) {
	if on() {
		globalManager.fallbackTotal.WithLabelValues(reason).Inc()
	}
}

// RecordAnalysisFailure counts an analysis error by kind.
func RecordAnalysisFailure(kind string) {
	if on() {
		globalManager.analysisFailures.WithLabelValues(kind).Inc()
	}
}

// RecordFrames records frame extraction outcomes.
func RecordFrames(extracted, failed int) {
	if !on() {
		return
	}
	globalManager.framesExtracted.Add(float64(extracted))
	globalManager.framesFailed.Add(float64(failed))
}

// RecordProviderCall records one outbound provider call.
func RecordProviderCall(provider, outcome string, latency time.Duration) {
	if !on() {
		return
	}
	globalManager.providerCalls.WithLabelValues(provider, outcome).Inc()
	globalManager.providerLatency.Observe(float64(latency.Milliseconds()))
}

// UpdateProviderAvailable sets the provider availability gauge.
func UpdateProviderAvailable(available bool) {
	if !on() {
		return
	}
	if available {
		globalManager.providerAvailable.Set(1)
		return
	}
	globalManager.providerAvailable.Set(0)
}

// RecordCacheHit increments cache hits.
func RecordCacheHit() {
	if on() {
		globalManager.cacheHits.Inc()
	}
}

// RecordCacheMiss increments cache misses.
func RecordCacheMiss() {
	if on() {
		globalManager.cacheMisses.Inc()
	}
}

// RecordCacheError counts a backend error for an operation (get, put, invalidate, stats).
func RecordCacheError(op string) {
	if on() {
		globalManager.cacheErrors.WithLabelValues(op).Inc()
	}
}

// RecordTaskTransition counts a task entering status.
func RecordTaskTransition(status string) {
	if on() {
		globalManager.taskTransitions.WithLabelValues(status).Inc()
	}
}

// RecordTaskTimeout counts a task forced to failed by its deadline.
func RecordTaskTimeout() {
	if on() {
		globalManager.taskTimeouts.Inc()
	}
}

// UpdateTasksTracked sets the number of tasks held in the store.
func UpdateTasksTracked(n int) {
	if on() {
		globalManager.tasksTracked.Set(float64(n))
	}
}

// RecordTasksEvicted adds evicted tasks.
func RecordTasksEvicted(n int) {
	if on() && n > 0 {
		globalManager.tasksEvicted.Add(float64(n))
	}
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	if on() {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	if on() {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// UpdateQueueUtilization sets queue utilization in percent.
func UpdateQueueUtilization(pct float64) {
	if on() {
		globalManager.queueUtilization.Set(pct)
	}
}

// RecordQueueEnqueue counts an accepted job.
func RecordQueueEnqueue() {
	if on() {
		globalManager.queueEnqueued.Inc()
	}
}

// RecordQueueDequeue counts a delivered job.
func RecordQueueDequeue() {
	if on() {
		globalManager.queueDequeued.Inc()
	}
}

// RecordQueueReject counts a rejected job.
func RecordQueueReject() {
	if on() {
		globalManager.queueRejected.Inc()
	}
}

// RecordQueueWait records how long a job waited before a worker picked it up.
func RecordQueueWait(wait time.Duration) {
	if on() {
		globalManager.queueProcessingLat.Observe(float64(wait.Milliseconds()))
	}
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	if on() {
		globalManager.workerCount.Set(float64(count))
	}
}

// RecordWorkerProcessing records the processing time of one job.
func RecordWorkerProcessing(d time.Duration) {
	if on() {
		globalManager.workerProcessingLatency.Observe(float64(d.Milliseconds()))
	}
}

// RecordWorkerError counts a processing error.
func RecordWorkerError() {
	if on() {
		globalManager.workerErrors.Inc()
	}
}

// RecordHTTPRequest records an HTTP request with its duration in milliseconds.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if !on() {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordHTTPError counts an error response.
func RecordHTTPError(endpoint, statusCode string) {
	if on() {
		globalManager.httpErrors.WithLabelValues(endpoint, statusCode).Inc()
	}
}

// UpdateSystemMetrics samples memory and goroutine counts.
func UpdateSystemMetrics() {
	if !on() {
		return
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	globalManager.systemMemoryUsage.Set(float64(ms.HeapInuse))
	globalManager.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
}
