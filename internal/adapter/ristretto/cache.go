// Package ristretto implements the cache port using dgraph-io/ristretto
// as the in-process L1 cache.
package ristretto

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache wraps a ristretto cache as an in-process L1 cache.
//
// Ristretto does not expose key iteration, so the adapter keeps a side
// index of live keys and their expiry times to support DeletePrefix and
// to guarantee no entry is ever served past its TTL.
type Cache struct {
	c *ristretto.Cache[string, []byte]

	mu      sync.Mutex
	expires map[string]time.Time
}

// New creates a ristretto-backed cache. maxCostBytes is the maximum total
// size of cached values in bytes.
func New(maxCostBytes int64) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCostBytes / 100 * 10, // ~10x expected items
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, expires: make(map[string]time.Time)}, nil
}

// Get retrieves a value from the cache.
func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	c.mu.Lock()
	exp, tracked := c.expires[key]
	if tracked && time.Now().After(exp) {
		delete(c.expires, key)
		tracked = false
	}
	c.mu.Unlock()

	if !tracked {
		c.c.Del(key)
		return nil, false, nil
	}

	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores a value in the cache with the given TTL.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	c.expires[key] = time.Now().Add(ttl)
	c.mu.Unlock()

	c.c.SetWithTTL(key, value, int64(len(value)), ttl)
	c.c.Wait()
	return nil
}

// Delete removes a value from the cache.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.expires, key)
	c.mu.Unlock()

	c.c.Del(key)
	return nil
}

// DeletePrefix removes every entry whose key starts with prefix.
func (c *Cache) DeletePrefix(_ context.Context, prefix string) (int, error) {
	c.mu.Lock()
	var victims []string
	for key := range c.expires {
		if strings.HasPrefix(key, prefix) {
			victims = append(victims, key)
			delete(c.expires, key)
		}
	}
	c.mu.Unlock()

	for _, key := range victims {
		c.c.Del(key)
	}
	return len(victims), nil
}

// Close shuts down the cache and releases resources.
func (c *Cache) Close() {
	c.c.Close()
}
