package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry manages all Prometheus metrics for the rule-tree service.
type Registry struct {
	config   Config
	registry *prometheus.Registry

	// HTTP metrics
	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Core metrics (validation and compilation)
	validationsTotal      *prometheus.CounterVec
	validationErrorsTotal *prometheus.CounterVec
	compilationsTotal     *prometheus.CounterVec
	compileDuration       *prometheus.HistogramVec

	// Cache metrics
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	cacheBreakerState *prometheus.GaugeVec

	// Store metrics
	storeOpsTotal   *prometheus.CounterVec
	storeOpDuration *prometheus.HistogramVec

	// Job metrics
	jobsProcessedTotal *prometheus.CounterVec
	jobsFailedTotal    *prometheus.CounterVec
	jobTaskDuration    *prometheus.HistogramVec
}

// Global registry instance
var (
	globalRegistry *Registry
	once           sync.Once
)

// NewRegistry creates a new metrics registry with the given configuration.
func NewRegistry(config Config) *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		config:   config,
		registry: reg,
	}

	r.registerHTTPMetrics()
	r.registerCoreMetrics()
	r.registerCacheMetrics()
	r.registerStoreMetrics()
	r.registerJobMetrics()

	// Register process and runtime metrics if enabled
	if config.EnableProcessMetrics {
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	if config.EnableRuntimeMetrics {
		reg.MustRegister(collectors.NewGoCollector())
	}

	return r
}

// Global returns the global registry instance, initializing it with default config if needed.
func Global() *Registry {
	once.Do(func() {
		globalRegistry = NewRegistry(DefaultConfig())
	})
	return globalRegistry
}

// SetGlobal sets the global registry instance.
func SetGlobal(r *Registry) {
	globalRegistry = r
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Config returns the registry configuration.
func (r *Registry) Config() Config {
	return r.config
}

func (r *Registry) registerHTTPMetrics() {
	ns := r.config.Namespace

	r.httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	r.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status_code"},
	)

	r.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   r.config.HistogramBuckets.HTTPDuration,
		},
		[]string{"method", "path"},
	)

	r.registry.MustRegister(
		r.httpInFlight,
		r.httpRequestsTotal,
		r.httpRequestDuration,
	)
}

func (r *Registry) registerCoreMetrics() {
	ns := r.config.Namespace

	r.validationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "validations_total",
			Help:      "Total number of tree validations performed",
		},
		[]string{"outcome"},
	)

	r.validationErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "validation_errors_total",
			Help:      "Total number of validation errors by error kind",
		},
		[]string{"kind"},
	)

	r.compilationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "compilations_total",
			Help:      "Total number of tree compilations by target",
		},
		[]string{"target", "outcome"},
	)

	r.compileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "compile_duration_seconds",
			Help:      "Tree compilation duration in seconds by target",
			Buckets:   r.config.HistogramBuckets.CompileDuration,
		},
		[]string{"target"},
	)

	r.registry.MustRegister(
		r.validationsTotal,
		r.validationErrorsTotal,
		r.compilationsTotal,
		r.compileDuration,
	)
}

func (r *Registry) registerCacheMetrics() {
	ns := r.config.Namespace

	r.cacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of compile cache hits",
		},
	)

	r.cacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of compile cache misses",
		},
	)

	r.cacheBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "breaker_state",
			Help:      "Compile cache circuit breaker state (1 marks the active state)",
		},
		[]string{"state"},
	)

	r.registry.MustRegister(
		r.cacheHits,
		r.cacheMisses,
		r.cacheBreakerState,
	)
}

func (r *Registry) registerStoreMetrics() {
	ns := r.config.Namespace

	r.storeOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of rule-set store operations",
		},
		[]string{"operation", "status"},
	)

	r.storeOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Rule-set store operation duration in seconds",
			Buckets:   r.config.HistogramBuckets.StoreDuration,
		},
		[]string{"operation"},
	)

	r.registry.MustRegister(
		r.storeOpsTotal,
		r.storeOpDuration,
	)
}

func (r *Registry) registerJobMetrics() {
	ns := r.config.Namespace

	r.jobsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "jobs",
			Name:      "processed_total",
			Help:      "Total number of background tasks processed",
		},
		[]string{"task"},
	)

	r.jobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "jobs",
			Name:      "failed_total",
			Help:      "Total number of background tasks that failed",
		},
		[]string{"task"},
	)

	r.jobTaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "jobs",
			Name:      "task_duration_seconds",
			Help:      "Background task duration in seconds",
			Buckets:   r.config.HistogramBuckets.JobDuration,
		},
		[]string{"task"},
	)

	r.registry.MustRegister(
		r.jobsProcessedTotal,
		r.jobsFailedTotal,
		r.jobTaskDuration,
	)
}
