package metrics

// CacheMetrics provides methods to record compile cache metrics.
type CacheMetrics struct {
	registry *Registry
}

// Cache returns the cache metrics interface for the registry.
func (r *Registry) Cache() *CacheMetrics {
	return &CacheMetrics{registry: r}
}

// RecordHit records a cache hit.
func (c *CacheMetrics) RecordHit() {
	c.registry.cacheHits.Inc()
}

// RecordMiss records a cache miss.
func (c *CacheMetrics) RecordMiss() {
	c.registry.cacheMisses.Inc()
}

// SetBreakerState exports the cache circuit breaker state as a one-hot
// gauge, one series per state with the active one set to 1.
func (c *CacheMetrics) SetBreakerState(state string) {
	for _, s := range []string{"closed", "open", "half-open"} {
		val := 0.0
		if s == state {
			val = 1.0
		}
		c.registry.cacheBreakerState.WithLabelValues(s).Set(val)
	}
}
