package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quizmasterhq/quizmaster/internal/domain"
	"github.com/quizmasterhq/quizmaster/internal/domain/job"
	"github.com/quizmasterhq/quizmaster/internal/jobs"
	"github.com/quizmasterhq/quizmaster/internal/port/jobqueue"
)

// JobService submits jobs and answers status polls. Submission is
// fire-and-forget: the caller gets a job id immediately and polls for
// the outcome.
type JobService struct {
	queue    jobqueue.Queue
	results  jobqueue.ResultStore
	registry *jobs.Registry
	obs      jobs.Observer
	log      *slog.Logger
}

// NewJobService creates a JobService.
func NewJobService(queue jobqueue.Queue, results jobqueue.ResultStore, registry *jobs.Registry, obs jobs.Observer, log *slog.Logger) *JobService {
	if obs == nil {
		obs = jobs.NoopObserver
	}
	return &JobService{queue: queue, results: results, registry: registry, obs: obs, log: log}
}

// Enqueue validates the task name, records a PENDING status and hands
// the envelope to the queue. It returns the initial status record.
func (s *JobService) Enqueue(ctx context.Context, task string, args map[string]string) (job.Status, error) {
	_, opts, err := s.registry.Lookup(task)
	if err != nil {
		return job.Status{}, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	env := job.Envelope{
		ID:         uuid.NewString(),
		Task:       task,
		Args:       args,
		Lane:       opts.Lane,
		EnqueuedAt: time.Now().UTC(),
	}
	st := job.Status{
		ID:         env.ID,
		Task:       env.Task,
		Lane:       env.Lane,
		State:      job.StatePending,
		EnqueuedAt: env.EnqueuedAt,
	}

	// The status record goes first so a poller never sees UNKNOWN for an
	// id the API just returned.
	if err := s.results.Put(ctx, st); err != nil {
		return job.Status{}, fmt.Errorf("record pending: %w", err)
	}
	if err := s.queue.Publish(ctx, env); err != nil {
		return job.Status{}, fmt.Errorf("publish job: %w", err)
	}

	s.obs.JobEnqueued(ctx, env.Lane, env.Task)
	s.log.Info("job enqueued", "job_id", env.ID, "task", env.Task, "lane", env.Lane)
	return st, nil
}

// Status returns the current status record for a job id. Ids that never
// existed and ids whose record expired both come back UNKNOWN; the
// distinction is gone once the record is reaped, so the API does not
// pretend to have it.
func (s *JobService) Status(ctx context.Context, id string) (job.Status, error) {
	st, ok, err := s.results.Get(ctx, id)
	if err != nil {
		return job.Status{}, fmt.Errorf("load status: %w", err)
	}
	if !ok {
		return job.Status{ID: id, State: job.StateUnknown, Detail: job.UnknownDetail}, nil
	}
	return st, nil
}
