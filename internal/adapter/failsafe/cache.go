// Package failsafe wraps a cache with degrade-on-failure semantics: a
// broken backend turns reads into misses and writes into no-ops, so the
// caller always falls through to the primary store. Correctness never
// depends on the cache being reachable.
package failsafe

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/quizmasterhq/quizmaster/internal/port/cache"
	"github.com/quizmasterhq/quizmaster/internal/resilience"
)

// Cache wraps an inner cache behind a circuit breaker. Every backend
// error is absorbed and logged; none propagate to the caller.
type Cache struct {
	inner   cache.Cache
	breaker *resilience.Breaker
	log     *slog.Logger
}

// New creates a failsafe wrapper around inner. The breaker stops
// hammering an unreachable backend with per-request timeouts.
func New(inner cache.Cache, breaker *resilience.Breaker, log *slog.Logger) *Cache {
	return &Cache{inner: inner, breaker: breaker, log: log}
}

// Get returns a miss whenever the backend fails or the circuit is open.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	execErr := c.breaker.Execute(func() error {
		var innerErr error
		data, ok, innerErr = c.inner.Get(ctx, key)
		return innerErr
	})
	if execErr != nil {
		c.logDegrade("get", key, execErr)
		return nil, false, nil
	}
	return data, ok, nil
}

// Set is a no-op whenever the backend fails or the circuit is open.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.breaker.Execute(func() error {
		return c.inner.Set(ctx, key, value, ttl)
	}); err != nil {
		c.logDegrade("set", key, err)
	}
	return nil
}

// Delete is a no-op whenever the backend fails or the circuit is open.
// Invalidation that cannot reach the backend is safe to skip only
// because entries carry a TTL; the log line keeps the gap visible.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.breaker.Execute(func() error {
		return c.inner.Delete(ctx, key)
	}); err != nil {
		c.logDegrade("delete", key, err)
	}
	return nil
}

// DeletePrefix is a no-op whenever the backend fails or the circuit is open.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var n int
	if err := c.breaker.Execute(func() error {
		var innerErr error
		n, innerErr = c.inner.DeletePrefix(ctx, prefix)
		return innerErr
	}); err != nil {
		c.logDegrade("delete_prefix", prefix, err)
		return 0, nil
	}
	return n, nil
}

func (c *Cache) logDegrade(op, key string, err error) {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		c.log.Debug("cache degraded, circuit open", "op", op, "key", key)
		return
	}
	c.log.Warn("cache backend unavailable, degrading", "op", op, "key", key, "error", err)
}
