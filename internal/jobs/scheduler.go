package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quizmasterhq/quizmaster/internal/domain/job"
	"github.com/quizmasterhq/quizmaster/internal/port/jobqueue"
)

// Enqueuer submits a job by task name. The jobs service implements it;
// the scheduler only depends on this slice of it.
type Enqueuer interface {
	Enqueue(ctx context.Context, task string, args map[string]string) (job.Status, error)
}

// Scheduler evaluates the static schedule once per tick and enqueues
// every entry whose cron expression matches the current minute. A
// leader lock keeps multiple scheduler instances from duplicating
// enqueues; the minute-window dedup keeps one instance from firing an
// entry twice within the same minute.
type Scheduler struct {
	entries   []job.ScheduleEntry
	schedules []job.CronSchedule
	enqueuer  Enqueuer
	lock      jobqueue.LeaderLock
	tick      time.Duration
	log       *slog.Logger

	lastFired []time.Time
}

// NewScheduler validates the schedule entries and returns a scheduler.
func NewScheduler(entries []job.ScheduleEntry, enqueuer Enqueuer, lock jobqueue.LeaderLock, tick time.Duration, log *slog.Logger) (*Scheduler, error) {
	schedules := make([]job.CronSchedule, len(entries))
	for i, e := range entries {
		cs, err := job.ParseCronExpr(e.Cron)
		if err != nil {
			return nil, fmt.Errorf("schedule entry %s: %w", e.Task, err)
		}
		schedules[i] = cs
	}
	if tick <= 0 {
		tick = 30 * time.Second
	}
	return &Scheduler{
		entries:   entries,
		schedules: schedules,
		enqueuer:  enqueuer,
		lock:      lock,
		tick:      tick,
		log:       log,
		lastFired: make([]time.Time, len(entries)),
	}, nil
}

// Run ticks until ctx is canceled, releasing the leader lock on exit.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.Tick(ctx, time.Now().UTC())
	for {
		select {
		case <-ctx.Done():
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.lock.Release(releaseCtx); err != nil {
				s.log.Warn("leader lock release failed", "error", err)
			}
			return nil
		case now := <-ticker.C:
			s.Tick(ctx, now.UTC())
		}
	}
}

// Tick evaluates the schedule against one instant. Exported so tests
// can drive the scheduler without real time.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	due := false
	for i := range s.entries {
		if s.isDue(i, now) {
			due = true
			break
		}
	}
	if !due {
		return
	}

	leader, err := s.lock.TryAcquire(ctx)
	if err != nil {
		s.log.Error("leader lock check failed", "error", err)
		return
	}
	if !leader {
		// Another instance fires this minute. Mark the window consumed so a
		// late leadership change does not double-fire.
		for i := range s.entries {
			if s.isDue(i, now) {
				s.lastFired[i] = now.Truncate(time.Minute)
			}
		}
		return
	}

	for i, entry := range s.entries {
		if !s.isDue(i, now) {
			continue
		}
		s.lastFired[i] = now.Truncate(time.Minute)

		st, err := s.enqueuer.Enqueue(ctx, entry.Task, nil)
		if err != nil {
			s.log.Error("scheduled enqueue failed", "task", entry.Task, "error", err)
			continue
		}
		s.log.Info("scheduled job enqueued", "task", entry.Task, "job_id", st.ID, "cron", entry.Cron)
	}
}

func (s *Scheduler) isDue(i int, now time.Time) bool {
	if !s.schedules[i].Matches(now) {
		return false
	}
	return !s.lastFired[i].Equal(now.Truncate(time.Minute))
}
