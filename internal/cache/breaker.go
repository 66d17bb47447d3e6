package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ruletree/ruletree/pkg/resilience"
)

// WithBreaker wraps c with a circuit breaker. Backend failures trip the
// breaker; while it is open, reads report ErrCacheMiss and writes are
// dropped without touching the backend, so an unreachable backend costs
// one probe per reopen window instead of one timeout per request.
// Delete and Health still surface errors, deletes because callers need
// to know the key may survive, health because the periodic check doubles
// as the recovery probe.
func WithBreaker(c Cache, b *resilience.Breaker) Cache {
	return &breakerCache{next: c, breaker: b}
}

type breakerCache struct {
	next    Cache
	breaker *resilience.Breaker
}

// record feeds the call outcome into the breaker. A miss is a
// successful round trip; only backend errors count as failures.
func (c *breakerCache) record(err error) {
	if err == nil || errors.Is(err, ErrCacheMiss) {
		c.breaker.RecordSuccess()
		return
	}
	c.breaker.RecordFailure()
}

// Get retrieves a value, degrading to a miss while the circuit is open.
func (c *breakerCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c.breaker.Allow() != nil {
		return nil, ErrCacheMiss
	}
	data, err := c.next.Get(ctx, key)
	c.record(err)
	return data, err
}

// Set stores a value, dropping the write while the circuit is open.
func (c *breakerCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.breaker.Allow() != nil {
		return nil
	}
	err := c.next.Set(ctx, key, value, ttl)
	c.record(err)
	return err
}

// Delete removes a key. While the circuit is open the error is
// surfaced, so retrying callers get another attempt once it closes.
func (c *breakerCache) Delete(ctx context.Context, key string) error {
	if err := c.breaker.Allow(); err != nil {
		return err
	}
	err := c.next.Delete(ctx, key)
	c.record(err)
	return err
}

// GetJSON retrieves and unmarshals a JSON value from the cache. Decode
// failures never count against the breaker.
func (c *breakerCache) GetJSON(ctx context.Context, key string, dest any) error {
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
func (c *breakerCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return c.Set(ctx, key, data, ttl)
}

// Health always probes the backend and feeds the result into the
// breaker, so the health loop helps a half-open circuit close.
func (c *breakerCache) Health(ctx context.Context) error {
	err := c.next.Health(ctx)
	c.record(err)
	return err
}

// Close closes the underlying cache.
func (c *breakerCache) Close() error {
	return c.next.Close()
}
