// Package infra provides shared infrastructure components used across
// FirmLens: page caching, rate limiting, circuit breaking and metrics.
package infra

import (
	"context"
	"time"

	"github.com/alphadose/haxmap"
	"golang.org/x/time/rate"
)

// --- TTL cache ---

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a concurrent in-memory cache with a fixed TTL.
type Cache[V any] struct {
	entries *haxmap.Map[string, cacheEntry[V]]
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a new cache with the given TTL. A non-positive TTL
// disables caching: Set becomes a no-op.
func NewCache[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		entries: haxmap.New[string, cacheEntry[V]](),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value for key, or false if missing or expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	entry, ok := c.entries.Get(key)
	if !ok {
		return zero, false
	}
	if c.now().After(entry.expiresAt) {
		c.entries.Del(key)
		return zero, false
	}
	return entry.value, true
}

// Set stores value under key for the cache TTL.
func (c *Cache[V]) Set(key string, value V) {
	if c.ttl <= 0 {
		return
	}
	c.entries.Set(key, cacheEntry[V]{value: value, expiresAt: c.now().Add(c.ttl)})
}

// Invalidate removes a key from the cache.
func (c *Cache[V]) Invalidate(key string) {
	c.entries.Del(key)
}

// Len returns the number of stored entries, including expired ones not
// yet swept.
func (c *Cache[V]) Len() int {
	return int(c.entries.Len())
}

// Cleanup removes expired entries. Can be called periodically.
func (c *Cache[V]) Cleanup() {
	now := c.now()
	var expired []string
	c.entries.ForEach(func(k string, e cacheEntry[V]) bool {
		if now.After(e.expiresAt) {
			expired = append(expired, k)
		}
		return true
	})
	if len(expired) > 0 {
		c.entries.Del(expired...)
	}
}

// --- Rate limiter ---

// RateLimiter paces outbound requests to a single upstream.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows perSec requests per second with the given burst.
// A non-positive rate means unlimited.
func NewRateLimiter(perSec float64, burst int) *RateLimiter {
	limit := rate.Limit(perSec)
	if perSec <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a request may proceed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}
