// Package metrics provides Prometheus metrics for the learnrank service.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the learnrank service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Core business metrics
	leaderboardQueries *prometheus.CounterVec
	computationLatency *prometheus.HistogramVec
	usersRanked        *prometheus.GaugeVec
	computationErrors  prometheus.Counter
	totalUsers         prometheus.Gauge

	// Snapshot persistence
	snapshotWrites      prometheus.Counter
	snapshotWriteErrors prometheus.Counter

	// Administrator recompute
	recomputeRuns     *prometheus.CounterVec
	recomputeDuration prometheus.Histogram
	badgeMutations    *prometheus.CounterVec

	// HTTP performance metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository metrics
	repositoryLatency *prometheus.HistogramVec
	repositoryErrors  *prometheus.CounterVec

	// Worker pool metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Detailed error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System performance metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// installed pairs the process-wide manager with the registry it writes to.
type installed struct {
	manager  *Manager
	registry *prometheus.Registry
}

// Global metrics manager instance.
var global atomic.Pointer[installed] //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Initialize global metrics on a custom registry to avoid default Go metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	Configure()
}

// Configure replaces the process-wide manager with one built from opts on a
// fresh registry. Series recorded before the call are not carried over.
func Configure(opts ...Option) *Manager {
	registry := prometheus.NewRegistry()
	m := NewManager(append(opts, WithPrometheusRegistry(registry))...)
	global.Store(&installed{manager: m, registry: registry})
	return m
}

func current() *Manager { return global.Load().manager }

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "learnrank",
		subsystem:        "leaderboard",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// RefreshInterval is how often gauge updaters should sample.
func (m *Manager) RefreshInterval() time.Duration {
	return m.refreshInterval
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.leaderboardQueries = auto.NewCounterVec(
		m.counterOpts("queries_total", "Total number of leaderboard computations by scope"),
		[]string{"period", "category"},
	)
	m.computationLatency = auto.NewHistogramVec(
		m.histogramOpts("computation_latency_milliseconds", "Leaderboard computation latency in milliseconds", m.histogramBuckets),
		[]string{"period", "category"},
	)
	m.usersRanked = auto.NewGaugeVec(
		m.gaugeOpts("users_ranked", "Number of users ranked by the last computation of a scope"),
		[]string{"period", "category"},
	)
	m.computationErrors = auto.NewCounter(
		m.counterOpts("computation_errors_total", "Users omitted from a leaderboard because aggregation failed"),
	)
	m.totalUsers = auto.NewGauge(
		m.gaugeOpts("total_users", "Total number of users in the store"),
	)

	m.snapshotWrites = auto.NewCounter(
		m.counterOpts("snapshot_writes_total", "Total number of persisted standing writes"),
	)
	m.snapshotWriteErrors = auto.NewCounter(
		m.counterOpts("snapshot_write_errors_total", "Total number of failed standing writes"),
	)

	m.recomputeRuns = auto.NewCounterVec(
		m.counterOpts("recompute_runs_total", "Administrator recompute runs by outcome"),
		[]string{"outcome"},
	)
	m.recomputeDuration = auto.NewHistogram(
		m.histogramOpts("recompute_duration_milliseconds", "Administrator recompute duration in milliseconds", m.histogramBuckets),
	)
	m.badgeMutations = auto.NewCounterVec(
		m.counterOpts("badge_mutations_total", "Manual badge changes by action"),
		[]string{"action"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.repositoryLatency = auto.NewHistogramVec(
		m.histogramOpts("repository_latency_milliseconds", "Repository operation latency in milliseconds", m.histogramBuckets),
		[]string{"backend", "operation"},
	)
	m.repositoryErrors = auto.NewCounterVec(
		m.counterOpts("repository_errors_total", "Repository operation failures"),
		[]string{"backend", "operation"},
	)

	m.workerCount = auto.NewGauge(
		m.gaugeOpts("worker_count", "Configured number of snapshot writers"),
	)
	m.workerActiveCount = auto.NewGauge(
		m.gaugeOpts("worker_active_count", "Number of snapshot writers currently busy"),
	)
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogramOpts("worker_processing_latency_milliseconds", "Snapshot write latency in milliseconds", m.histogramBuckets),
	)
	m.workerErrorRate = auto.NewCounter(
		m.counterOpts("worker_errors_total", "Total number of snapshot writer errors"),
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)
	m.errorRateByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Total number of errors by type"),
		[]string{"error_type", "severity"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)
	m.errorLatency = auto.NewHistogramVec(
		m.histogramOpts("error_latency_milliseconds", "Latency of operations that resulted in errors", m.histogramBuckets),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(
		m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"),
	)
	m.systemGoroutineCount = auto.NewGauge(
		m.gaugeOpts("system_goroutine_count", "Number of goroutines"),
	)
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
			[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}),
	)
}

// RecordLeaderboardQuery counts one computation of a scope.
func RecordLeaderboardQuery(period, category string) {
	current().leaderboardQueries.WithLabelValues(period, category).Inc()
}

// RecordComputationLatency records how long a scope took to compute.
func RecordComputationLatency(period, category string, latencyMs float64) {
	current().computationLatency.WithLabelValues(period, category).Observe(latencyMs)
}

// UpdateUsersRanked sets the size of the last ranking of a scope.
func UpdateUsersRanked(period, category string, count int) {
	current().usersRanked.WithLabelValues(period, category).Set(float64(count))
}

// RecordComputationError counts a user dropped from a ranking.
func RecordComputationError() {
	current().computationErrors.Inc()
}

// UpdateTotalUsers sets the total users gauge.
func UpdateTotalUsers(count int) {
	current().totalUsers.Set(float64(count))
}

// RecordSnapshotWrite counts a persisted standing.
func RecordSnapshotWrite() {
	current().snapshotWrites.Inc()
}

// RecordSnapshotWriteError counts a standing that failed to persist.
func RecordSnapshotWriteError() {
	current().snapshotWriteErrors.Inc()
}

// RecordRecompute counts a recompute run and its duration.
func RecordRecompute(outcome string, durationMs float64) {
	current().recomputeRuns.WithLabelValues(outcome).Inc()
	current().recomputeDuration.Observe(durationMs)
}

// RecordBadgeMutation counts a manual badge change.
func RecordBadgeMutation(action string) {
	current().badgeMutations.WithLabelValues(action).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	current().httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	current().httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRepositoryLatency records the latency of one store operation.
func RecordRepositoryLatency(backend, operation string, latencyMs float64) {
	current().repositoryLatency.WithLabelValues(backend, operation).Observe(latencyMs)
}

// RecordRepositoryError counts a failed store operation.
func RecordRepositoryError(backend, operation string) {
	current().repositoryErrors.WithLabelValues(backend, operation).Inc()
}

// UpdateWorkerCount sets the configured number of writers.
func UpdateWorkerCount(count int) {
	current().workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy writers.
func UpdateWorkerActiveCount(count int) {
	current().workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	current().workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments worker error counter.
func RecordWorkerError() {
	current().workerErrorRate.Inc()
}

// RecordErrorByComponent records an error by component.
func RecordErrorByComponent(component, errorType string) {
	current().errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	current().errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error by endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	current().errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that failed.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	current().errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// UpdateSystemMemoryUsage updates system memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	current().systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates goroutine count.
func UpdateSystemGoroutineCount(count int) {
	current().systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	current().systemGCPauseTime.Observe(pauseMs)
}

// Global returns the process-wide manager.
func Global() *Manager {
	return current()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return global.Load().registry
}
