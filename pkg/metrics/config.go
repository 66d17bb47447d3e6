// Package metrics provides Prometheus metrics collection for the rule-tree service.
package metrics

// Config holds configuration for the metrics module.
type Config struct {
	// Namespace is the prefix for all metrics (default: "ruletree")
	Namespace string

	// EnableProcessMetrics enables process metrics (CPU, memory, file descriptors)
	EnableProcessMetrics bool

	// EnableRuntimeMetrics enables Go runtime metrics (goroutines, GC)
	EnableRuntimeMetrics bool

	// HistogramBuckets allows customizing default histogram buckets
	HistogramBuckets HistogramBucketsConfig
}

// HistogramBucketsConfig holds custom bucket configurations for different metric types.
type HistogramBucketsConfig struct {
	// HTTPDuration buckets for HTTP request duration in seconds
	HTTPDuration []float64

	// CompileDuration buckets for tree compilation duration in seconds.
	// Compiling a tree is in-memory work, so the range starts well below
	// a millisecond.
	CompileDuration []float64

	// StoreDuration buckets for rule-set store operation duration in seconds
	StoreDuration []float64

	// JobDuration buckets for background task duration in seconds
	JobDuration []float64
}

// DefaultConfig returns the default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Namespace:            "ruletree",
		EnableProcessMetrics: true,
		EnableRuntimeMetrics: true,
		HistogramBuckets:     DefaultHistogramBuckets(),
	}
}

// DefaultHistogramBuckets returns the default histogram bucket configurations.
func DefaultHistogramBuckets() HistogramBucketsConfig {
	return HistogramBucketsConfig{
		HTTPDuration:    []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		CompileDuration: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .5},
		StoreDuration:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		JobDuration:     []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
	}
}
