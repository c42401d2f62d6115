package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quizmasterhq/quizmaster/internal/domain/job"
	"github.com/quizmasterhq/quizmaster/internal/port/jobqueue"
)

// Observer receives job lifecycle events for metrics.
type Observer interface {
	JobEnqueued(ctx context.Context, lane, task string)
	JobStarted(ctx context.Context, lane, task string)
	JobFinished(ctx context.Context, lane, task string, d time.Duration, success bool)
}

type noopObserver struct{}

func (noopObserver) JobEnqueued(context.Context, string, string)                      {}
func (noopObserver) JobStarted(context.Context, string, string)                       {}
func (noopObserver) JobFinished(context.Context, string, string, time.Duration, bool) {}

// NoopObserver is the Observer used when metrics are disabled.
var NoopObserver Observer = noopObserver{}

// Worker consumes envelopes from every registered lane and drives each
// job through its lifecycle: STARTED on pickup, then exactly one
// terminal state.
type Worker struct {
	queue    jobqueue.Queue
	results  jobqueue.ResultStore
	registry *Registry
	obs      Observer
	log      *slog.Logger
}

// NewWorker creates a worker over the given queue and result store.
func NewWorker(queue jobqueue.Queue, results jobqueue.ResultStore, registry *Registry, obs Observer, log *slog.Logger) *Worker {
	if obs == nil {
		obs = NoopObserver
	}
	return &Worker{queue: queue, results: results, registry: registry, obs: obs, log: log}
}

// Run subscribes to every lane and blocks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	var cancels []func()
	for _, lane := range w.registry.Lanes() {
		cancel, err := w.queue.Consume(ctx, lane, w.handle)
		if err != nil {
			for _, c := range cancels {
				c()
			}
			return fmt.Errorf("consume lane %s: %w", lane, err)
		}
		w.log.Info("worker consuming", "lane", lane)
		cancels = append(cancels, cancel)
	}

	<-ctx.Done()
	for _, c := range cancels {
		c()
	}
	return nil
}

// handle executes one envelope. It returns an error only when the
// status record could not be written; handler failures are terminal
// states, not delivery failures.
func (w *Worker) handle(ctx context.Context, env job.Envelope) error {
	handler, opts, err := w.registry.Lookup(env.Task)
	if err != nil {
		// An unknown task will not become known on redelivery.
		w.log.Error("unknown task in envelope", "job_id", env.ID, "task", env.Task)
		return w.finish(ctx, env, "", fmt.Errorf("unknown task %q", env.Task), time.Time{})
	}

	startedAt := time.Now().UTC()
	if err := w.results.Put(ctx, job.Status{
		ID:         env.ID,
		Task:       env.Task,
		Lane:       env.Lane,
		State:      job.StateStarted,
		EnqueuedAt: env.EnqueuedAt,
		StartedAt:  startedAt,
	}); err != nil {
		return fmt.Errorf("record started: %w", err)
	}
	w.obs.JobStarted(ctx, env.Lane, env.Task)
	w.log.Info("job started", "job_id", env.ID, "task", env.Task, "lane", env.Lane)

	result, runErr := w.run(ctx, handler, opts, env)
	return w.finish(ctx, env, result, runErr, startedAt)
}

// run executes the handler with retries, the soft limit as a context
// deadline and the hard limit as the point of abandonment.
func (w *Worker) run(ctx context.Context, handler HandlerFunc, opts Options, env job.Envelope) (string, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		result, err := w.attempt(ctx, handler, opts, env)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if isTimeout(err) || attempt >= opts.MaxRetries {
			return "", lastErr
		}
		w.log.Warn("job attempt failed, retrying",
			"job_id", env.ID, "task", env.Task, "attempt", attempt+1, "error", err)

		select {
		case <-time.After(opts.RetryBackoff):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// attempt runs the handler once. The soft limit cancels the handler's
// context; the hard limit abandons the goroutine entirely and reports a
// timeout failure even if the handler never returns.
func (w *Worker) attempt(parent context.Context, handler HandlerFunc, opts Options, env job.Envelope) (string, error) {
	ctx := parent
	var cancel context.CancelFunc
	if opts.SoftLimit > 0 {
		ctx, cancel = context.WithTimeout(parent, opts.SoftLimit)
		defer cancel()
	}

	type outcome struct {
		result string
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := handler(ctx, env.Args)
		done <- outcome{result: result, err: err}
	}()

	var hard <-chan time.Time
	if opts.HardLimit > 0 {
		timer := time.NewTimer(opts.HardLimit)
		defer timer.Stop()
		hard = timer.C
	}

	select {
	case out := <-done:
		// Only the soft deadline itself is a timeout. A handler that fails
		// for its own reasons after the deadline fired keeps its error and
		// its retry budget.
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) {
			return "", timeoutError(fmt.Sprintf("soft limit %s exceeded", opts.SoftLimit))
		}
		return out.result, out.err
	case <-hard:
		// The goroutine is abandoned; its context is already past the soft
		// deadline, so a cooperative handler will unwind on its own.
		w.log.Error("job exceeded hard limit, abandoning",
			"job_id", env.ID, "task", env.Task, "hard_limit", opts.HardLimit)
		return "", timeoutError(fmt.Sprintf("hard limit %s exceeded", opts.HardLimit))
	}
}

// finish records the terminal state. startedAt is zero when the job
// never started (unknown task).
func (w *Worker) finish(ctx context.Context, env job.Envelope, result string, runErr error, startedAt time.Time) error {
	finishedAt := time.Now().UTC()
	st := job.Status{
		ID:         env.ID,
		Task:       env.Task,
		Lane:       env.Lane,
		State:      job.StateSuccess,
		Result:     result,
		EnqueuedAt: env.EnqueuedAt,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
	if runErr != nil {
		st.State = job.StateFailure
		st.Error = runErr.Error()
		st.Result = ""
	}

	if err := w.results.Put(ctx, st); err != nil {
		return fmt.Errorf("record terminal state: %w", err)
	}

	var dur time.Duration
	if !startedAt.IsZero() {
		dur = finishedAt.Sub(startedAt)
	}
	w.obs.JobFinished(ctx, env.Lane, env.Task, dur, runErr == nil)

	if runErr != nil {
		w.log.Error("job failed", "job_id", env.ID, "task", env.Task, "duration", dur, "error", runErr)
	} else {
		w.log.Info("job succeeded", "job_id", env.ID, "task", env.Task, "duration", dur)
	}
	return nil
}

type timeoutErr string

func (e timeoutErr) Error() string { return job.TimeoutErrorPrefix + string(e) }

func timeoutError(msg string) error { return timeoutErr(msg) }

func isTimeout(err error) bool {
	_, ok := err.(timeoutErr)
	return ok
}
