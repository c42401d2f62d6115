// Package cache defines the port interface for caching.
package cache

import (
	"context"
	"time"
)

// Cache is the port interface for key-value caching.
//
// Implementations must be safe for concurrent use. Delete and
// DeletePrefix are idempotent: removing absent keys is a no-op.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every entry whose key starts with prefix.
	// It returns the number of entries removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}
