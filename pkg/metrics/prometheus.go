// Package metrics provides Prometheus metrics for the furlong rating service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exposed by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Rating engine
	ratingsInitialized prometheus.Counter
	resultsApplied     prometheus.Counter
	resultsDuplicate   prometheus.Counter
	ratingErrors       *prometheus.CounterVec
	ratingDelta        prometheus.Histogram
	updateLatency      prometheus.Histogram
	conversions        *prometheus.CounterVec
	horsesTotal        prometheus.Gauge

	// Store
	storeUpdateLatency prometheus.Histogram
	storeQueryLatency  prometheus.Histogram

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "furlong",
		subsystem:        "ratings",
		histogramBuckets: prometheus.DefBuckets,
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.ratingsInitialized = m.counter("initialized_total", "Total number of rating records created from pedigree")
	m.resultsApplied = m.counter("results_applied_total", "Total number of race results applied to a rating record")
	m.resultsDuplicate = m.counter("results_duplicate_total", "Total number of race results ignored because already applied")
	m.ratingErrors = m.counterVec("errors_total", "Rating engine errors by kind", "kind")
	m.ratingDelta = m.histogram("rating_delta", "Rating change caused by one race result",
		[]float64{-15, -10, -5, -2, -1, 0, 1, 2, 5, 10, 15})
	m.updateLatency = m.histogram("update_latency_milliseconds", "Latency of one read-modify-write rating update", m.histogramBuckets)
	m.conversions = m.counterVec("conversions_total", "Scale conversions by target scale", "scale")
	m.horsesTotal = m.gauge("horses_total", "Number of horses holding a rating record")

	m.storeUpdateLatency = m.histogram("store_update_latency_milliseconds", "Store update latency", m.histogramBuckets)
	m.storeQueryLatency = m.histogram("store_query_latency_milliseconds", "Store query latency", m.histogramBuckets)

	m.queueSize = m.gauge("queue_size", "Current number of queued race results")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of queued race results")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Race results accepted by the queue")
	m.queueDequeued = m.counter("queue_dequeued_total", "Race results handed to workers")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Race results rejected by the queue")

	m.workerCount = m.gauge("worker_count", "Number of result workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker processing latency", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Worker processing failures")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("component_errors_total", "Errors by component and type", "component", "error_type")
	m.errorsByEndpoint = m.counterVec("endpoint_errors_total", "Errors by endpoint, method and type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordRatingInitialized increments the initialized records counter.
func RecordRatingInitialized() { globalManager.ratingsInitialized.Inc() }

// RecordResultApplied counts an applied result and observes its rating change.
func RecordResultApplied(delta float64) {
	globalManager.resultsApplied.Inc()
	globalManager.ratingDelta.Observe(delta)
}

// RecordResultDuplicate increments the duplicate results counter.
func RecordResultDuplicate() { globalManager.resultsDuplicate.Inc() }

// RecordRatingError counts an engine error by kind (invalid_input, unknown_horse, ...).
func RecordRatingError(kind string) { globalManager.ratingErrors.WithLabelValues(kind).Inc() }

// RecordUpdateLatency records read-modify-write latency in milliseconds.
func RecordUpdateLatency(latencyMs float64) { globalManager.updateLatency.Observe(latencyMs) }

// RecordConversion counts a conversion to scale.
func RecordConversion(scale string) { globalManager.conversions.WithLabelValues(scale).Inc() }

// UpdateHorsesTotal sets the number of rated horses.
func UpdateHorsesTotal(count int) { globalManager.horsesTotal.Set(float64(count)) }

// RecordStoreUpdateLatency records store update latency in milliseconds.
func RecordStoreUpdateLatency(latencyMs float64) { globalManager.storeUpdateLatency.Observe(latencyMs) }

// RecordStoreQueryLatency records store query latency in milliseconds.
func RecordStoreQueryLatency(latencyMs float64) { globalManager.storeQueryLatency.Observe(latencyMs) }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

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
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
