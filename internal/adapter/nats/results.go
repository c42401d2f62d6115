package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/quizmasterhq/quizmaster/internal/domain/job"
)

const resultsBucket = "job_results"

// ResultStore keeps job status records in a key-value bucket whose TTL
// reaps them after the result retention window. Expired and never-seen
// ids are indistinguishable, as intended.
type ResultStore struct {
	kv jetstream.KeyValue
}

// NewResultStore ensures the results bucket exists with the given
// retention TTL and returns a store bound to it.
func NewResultStore(ctx context.Context, conn *Conn, ttl time.Duration) (*ResultStore, error) {
	kv, err := openBucket(ctx, conn.js, jetstream.KeyValueConfig{
		Bucket: resultsBucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, err
	}
	return &ResultStore{kv: kv}, nil
}

// Put writes a status record under its job id. Writes race between the
// enqueuer and the worker, so Put enforces lifecycle order with a
// compare-and-swap loop: a record never regresses, and a terminal
// record is never overwritten by a non-terminal one.
func (s *ResultStore) Put(ctx context.Context, st job.Status) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	for attempt := 0; attempt < 5; attempt++ {
		entry, err := s.kv.Get(ctx, st.ID)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			if _, err := s.kv.Create(ctx, st.ID, data); err != nil {
				if errors.Is(err, jetstream.ErrKeyExists) {
					continue // lost the race, re-read and re-check
				}
				return fmt.Errorf("kv create %s: %w", st.ID, err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("kv get %s: %w", st.ID, err)
		}

		var current job.Status
		if err := json.Unmarshal(entry.Value(), &current); err != nil {
			return fmt.Errorf("unmarshal status %s: %w", st.ID, err)
		}
		if !current.State.CanTransition(st.State) {
			// Late PENDING arriving after the worker already finished is an
			// expected race; dropping it keeps the record monotonic.
			return nil
		}

		_, err = s.kv.Update(ctx, st.ID, data, entry.Revision())
		if err == nil {
			return nil
		}
		if isRevisionMismatch(err) {
			continue
		}
		return fmt.Errorf("kv update %s: %w", st.ID, err)
	}
	return fmt.Errorf("kv put %s: too many concurrent writers", st.ID)
}

// Get returns the status record for a job id.
func (s *ResultStore) Get(ctx context.Context, id string) (job.Status, bool, error) {
	entry, err := s.kv.Get(ctx, id)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return job.Status{}, false, nil
	}
	if err != nil {
		return job.Status{}, false, fmt.Errorf("kv get %s: %w", id, err)
	}

	var st job.Status
	if err := json.Unmarshal(entry.Value(), &st); err != nil {
		return job.Status{}, false, fmt.Errorf("unmarshal status %s: %w", id, err)
	}
	return st, true, nil
}

func isRevisionMismatch(err error) bool {
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}
