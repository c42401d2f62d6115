// Package jobqueue defines the job queue port (interfaces).
package jobqueue

import (
	"context"

	"github.com/quizmasterhq/quizmaster/internal/domain/job"
)

// Handler processes one dequeued job envelope. The returned error marks
// the delivery as failed; acknowledgement is handled by the adapter.
type Handler func(ctx context.Context, env job.Envelope) error

// Queue is the port interface for publishing and consuming job envelopes.
type Queue interface {
	// Publish sends an envelope to its lane. It must not block on job
	// execution: the envelope is handed to the broker and the call returns.
	Publish(ctx context.Context, env job.Envelope) error

	// Consume registers a handler for envelopes on the given lane.
	// The returned function cancels the subscription.
	Consume(ctx context.Context, lane string, handler Handler) (cancel func(), err error)

	// Close shuts down the queue connection.
	Close() error
}

// ResultStore is the port interface for the disposable job status store.
// Records expire after the store's TTL; a missing record is not an error.
type ResultStore interface {
	// Put writes a status record under its job id. Implementations must
	// refuse to overwrite a terminal record with a non-terminal one.
	Put(ctx context.Context, st job.Status) error

	// Get returns the status record for a job id. ok is false when the id
	// never existed or the record already expired.
	Get(ctx context.Context, id string) (st job.Status, ok bool, err error)
}

// LeaderLock is the port interface for scheduler leader election. Only
// the holder of the lock may enqueue scheduled jobs.
type LeaderLock interface {
	// TryAcquire attempts to take or refresh the lock for this instance.
	// It returns true when this instance is the leader.
	TryAcquire(ctx context.Context) (bool, error)

	// Release gives up the lock if held.
	Release(ctx context.Context) error
}
