// Package cache provides the compile result cache with redis and in-memory
// backends. Compilation is deterministic, so a result keyed by the tree
// fingerprint and the option set never goes stale; TTLs only bound memory.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrCacheMiss is returned when a key is not found in the cache.
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the interface for compile cache operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error

	Health(ctx context.Context) error
	Close() error
}

// Config holds cache configuration.
type Config struct {
	// Backend is the cache backend: "memory" or "redis"
	Backend string

	// RedisURL is the connection URL for the redis backend
	// (redis://localhost:6379/0)
	RedisURL string

	// Prefix namespaces all keys, so one redis instance can serve
	// several deployments
	Prefix string

	// DefaultTTL applies when Set is called with ttl 0
	DefaultTTL time.Duration

	// MaxItems caps the memory backend (0 = unlimited)
	MaxItems int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:    "memory",
		DefaultTTL: 5 * time.Minute,
		MaxItems:   10000,
	}
}

// New creates a new cache instance based on configuration.
func New(cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "redis":
		return NewRedisCache(cfg)
	case "memory", "":
		return NewMemoryCache(cfg), nil
	default:
		return nil, errors.New("unsupported cache backend: " + cfg.Backend)
	}
}

// CompileKey builds the cache key for a compiled tree. The options digest is
// part of the key because parameterization, dialect, and operator reversal
// all change the output for the same tree.
func CompileKey(target, treeFingerprint, optionsDigest string) string {
	return fmt.Sprintf("compile:%s:%s:%s", target, treeFingerprint, optionsDigest)
}

// OptionsDigest hashes a JSON-serializable option set into a short hex
// digest for cache keys. Marshaling a struct is deterministic, so equal
// option sets always digest equally.
func OptionsDigest(opts any) (string, error) {
	data, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("options digest: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8]), nil
}
