package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// sweepInterval is how often the janitor drops expired entries.
const sweepInterval = time.Minute

// MemoryCache implements Cache with a TTL map and a janitor goroutine.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	max     int
	stop    chan struct{}
	stopped bool
}

type entry struct {
	data     []byte
	deadline time.Time
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache(cfg Config) *MemoryCache {
	ttl := cfg.DefaultTTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	c := &MemoryCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		max:     cfg.MaxItems,
		stop:    make(chan struct{}),
	}
	go c.janitor()
	return c
}

func (c *MemoryCache) janitor() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Cleanup()
		case <-c.stop:
			return
		}
	}
}

// Cleanup drops every expired entry now instead of waiting for the
// janitor's next sweep.
func (c *MemoryCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropExpired()
}

// dropExpired removes expired entries. Callers hold the write lock.
func (c *MemoryCache) dropExpired() {
	now := time.Now()
	for key, e := range c.entries {
		if now.After(e.deadline) {
			delete(c.entries, key)
		}
	}
}

// Get retrieves a value from the cache. Expired entries read as misses;
// the janitor removes them.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(e.deadline) {
		return nil, ErrCacheMiss
	}

	// Callers may hold the slice past the entry's lifetime.
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, nil
}

// Set stores a value in the cache with the given TTL.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}

	data := make([]byte, len(value))
	copy(data, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	// The cap is a safety valve, not an LRU: expired entries go first,
	// an arbitrary entry after that.
	if c.max > 0 && len(c.entries) >= c.max {
		if _, exists := c.entries[key]; !exists {
			c.dropExpired()
			for len(c.entries) >= c.max {
				for victim := range c.entries {
					delete(c.entries, victim)
					break
				}
			}
		}
	}

	c.entries[key] = entry{data: data, deadline: time.Now().Add(ttl)}
	return nil
}

// Delete removes a key from the cache.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// GetJSON retrieves and unmarshals a JSON value from the cache.
func (c *MemoryCache) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("json unmarshal: %w", err)
	}
	return nil
}

// SetJSON marshals and stores a value as JSON in the cache.
func (c *MemoryCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return c.Set(ctx, key, data, ttl)
}

// Health always returns nil for the memory cache.
func (c *MemoryCache) Health(ctx context.Context) error {
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the janitor and clears the cache.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.stopped {
		close(c.stop)
		c.stopped = true
	}
	c.entries = make(map[string]entry)
	return nil
}
