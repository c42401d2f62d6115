package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	leaderBucket = "scheduler_leader"
	leaderKey    = "lock"
)

// LeaderLock elects a single scheduler instance through a key-value
// bucket whose TTL releases the lock when the holder dies. Create
// succeeds for exactly one instance; the holder refreshes the entry on
// every tick to keep it from expiring.
type LeaderLock struct {
	kv       jetstream.KeyValue
	instance string
}

// NewLeaderLock ensures the lock bucket exists. ttl should be a small
// multiple of the scheduler tick so a dead leader is replaced quickly.
func NewLeaderLock(ctx context.Context, conn *Conn, instance string, ttl time.Duration) (*LeaderLock, error) {
	kv, err := openBucket(ctx, conn.js, jetstream.KeyValueConfig{
		Bucket: leaderBucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, err
	}
	return &LeaderLock{kv: kv, instance: instance}, nil
}

// TryAcquire attempts to take or refresh the lock for this instance.
func (l *LeaderLock) TryAcquire(ctx context.Context) (bool, error) {
	_, err := l.kv.Create(ctx, leaderKey, []byte(l.instance))
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, jetstream.ErrKeyExists) {
		return false, fmt.Errorf("leader lock create: %w", err)
	}

	entry, err := l.kv.Get(ctx, leaderKey)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		// Expired between Create and Get; next tick will take it.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("leader lock get: %w", err)
	}
	if string(entry.Value()) != l.instance {
		return false, nil
	}

	// Refresh resets the entry's age so the TTL keeps the lock alive.
	if _, err := l.kv.Update(ctx, leaderKey, []byte(l.instance), entry.Revision()); err != nil {
		return false, nil
	}
	return true, nil
}

// Release gives up the lock if this instance holds it.
func (l *LeaderLock) Release(ctx context.Context) error {
	entry, err := l.kv.Get(ctx, leaderKey)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("leader lock get: %w", err)
	}
	if string(entry.Value()) != l.instance {
		return nil
	}
	if err := l.kv.Delete(ctx, leaderKey); err != nil {
		return fmt.Errorf("leader lock delete: %w", err)
	}
	return nil
}
