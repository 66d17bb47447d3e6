// Package jobs runs background work over asynq: warming the compile
// cache after rule-set writes, compiling uploaded batch documents, and
// periodically purging soft-disabled rule sets.
package jobs

import (
	"time"
)

// Queue names in priority order.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Config holds queue and worker configuration.
type Config struct {
	// RedisURI configures the queue backend from a single URI
	// (redis://:password@host:port/db). When set it wins over the
	// discrete fields below.
	RedisURI string

	// Redis connection for the queue backend
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Concurrency is the number of worker goroutines.
	Concurrency int

	// Queues maps queue name to priority weight.
	Queues map[string]int

	// ShutdownTimeout bounds how long Stop waits for in-flight tasks.
	ShutdownTimeout time.Duration

	// PurgeRetention is how long soft-disabled rule sets linger before
	// the periodic purge removes them.
	PurgeRetention time.Duration

	// PurgeSchedule is the cron spec for the purge job; empty disables
	// the periodic entry.
	PurgeSchedule string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RedisAddr:       "localhost:6379",
		Concurrency:     10,
		Queues:          map[string]int{QueueCritical: 6, QueueDefault: 3, QueueLow: 1},
		ShutdownTimeout: 30 * time.Second,
		PurgeRetention:  30 * 24 * time.Hour,
		PurgeSchedule:   "@daily",
	}
}
