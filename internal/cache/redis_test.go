package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisCache_WithURL(t *testing.T) {
	c, err := NewRedisCache(Config{
		Backend:    "redis",
		RedisURL:   "redis://localhost:6379/0",
		DefaultTTL: time.Minute,
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	defer c.Close()
}

func TestNewRedisCache_RequiresURL(t *testing.T) {
	_, err := NewRedisCache(Config{Backend: "redis"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a URL")
}

func TestNewRedisCache_InvalidURL(t *testing.T) {
	_, err := NewRedisCache(Config{
		Backend:  "redis",
		RedisURL: "invalid://url",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid redis URL")
}

func TestRedisCache_KeyPrefix(t *testing.T) {
	withPrefix, err := NewRedisCache(Config{
		Backend:  "redis",
		RedisURL: "redis://localhost:6379/0",
		Prefix:   "ruletree",
	})
	require.NoError(t, err)
	defer withPrefix.Close()

	assert.Equal(t, "ruletree:compile:sql:abc:def", withPrefix.key("compile:sql:abc:def"))

	bare, err := NewRedisCache(Config{
		Backend:  "redis",
		RedisURL: "redis://localhost:6379/0",
	})
	require.NoError(t, err)
	defer bare.Close()

	assert.Equal(t, "key", bare.key("key"))
}

func TestNew_Redis(t *testing.T) {
	c, err := New(Config{
		Backend:  "redis",
		RedisURL: "redis://localhost:6379/0",
	})
	require.NoError(t, err)
	require.NotNil(t, c)
	defer c.Close()

	_, ok := c.(*RedisCache)
	assert.True(t, ok)
}
