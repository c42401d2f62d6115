// Package nats implements the job queue, result store and leader lock
// ports on NATS JetStream. Streams carry job envelopes; key-value
// buckets hold the disposable status records and the scheduler lock.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Conn wraps a NATS connection with its JetStream context. All adapters
// in this package share one Conn.
type Conn struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes a connection to NATS and initializes JetStream.
func Connect(url string) (*Conn, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	slog.Info("nats connected", "url", url)
	return &Conn{nc: nc, js: js}, nil
}

// JetStream exposes the JetStream context for bucket adapters.
func (c *Conn) JetStream() jetstream.JetStream { return c.js }

// KeyValue ensures a key-value bucket exists with the given TTL and
// returns it.
func (c *Conn) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	return openBucket(ctx, c.js, jetstream.KeyValueConfig{Bucket: bucket, TTL: ttl})
}

// Close shuts down the NATS connection.
func (c *Conn) Close() error {
	c.nc.Close()
	return nil
}

// openBucket ensures a key-value bucket exists and returns it.
func openBucket(ctx context.Context, js jetstream.JetStream, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("jetstream kv %s: %w", cfg.Bucket, err)
	}
	return kv, nil
}
