package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/quizmasterhq/quizmaster/internal/domain/job"
)

type recordingEnqueuer struct {
	mu    sync.Mutex
	tasks []string
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, task string, _ map[string]string) (job.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append(e.tasks, task)
	return job.Status{ID: "test", Task: task, State: job.StatePending}, nil
}

func (e *recordingEnqueuer) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}

type fakeLock struct {
	leader bool
}

func (l *fakeLock) TryAcquire(context.Context) (bool, error) { return l.leader, nil }
func (l *fakeLock) Release(context.Context) error            { return nil }

func newTestScheduler(t *testing.T, entries []job.ScheduleEntry, enq Enqueuer, lock *fakeLock) *Scheduler {
	t.Helper()
	s, err := NewScheduler(entries, enq, lock, time.Second, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestScheduler_FiresOncePerMinuteWindow(t *testing.T) {
	enq := &recordingEnqueuer{}
	s := newTestScheduler(t, []job.ScheduleEntry{
		{Task: "send_daily_reminders", Cron: "daily:18:00", Lane: "reminders"},
	}, enq, &fakeLock{leader: true})

	at := time.Date(2026, 3, 5, 18, 0, 10, 0, time.UTC)

	// Several ticks land inside the same minute.
	s.Tick(context.Background(), at)
	s.Tick(context.Background(), at.Add(20*time.Second))
	s.Tick(context.Background(), at.Add(40*time.Second))

	if enq.count() != 1 {
		t.Fatalf("expected 1 enqueue within the minute window, got %d", enq.count())
	}

	// The same wall-clock minute a day later fires again.
	s.Tick(context.Background(), at.Add(24*time.Hour))
	if enq.count() != 2 {
		t.Fatalf("expected 2 enqueues across days, got %d", enq.count())
	}
}

func TestScheduler_SkipsNonMatchingMinutes(t *testing.T) {
	enq := &recordingEnqueuer{}
	s := newTestScheduler(t, []job.ScheduleEntry{
		{Task: "send_daily_reminders", Cron: "daily:18:00", Lane: "reminders"},
	}, enq, &fakeLock{leader: true})

	s.Tick(context.Background(), time.Date(2026, 3, 5, 17, 59, 0, 0, time.UTC))
	s.Tick(context.Background(), time.Date(2026, 3, 5, 18, 1, 0, 0, time.UTC))

	if enq.count() != 0 {
		t.Fatalf("expected no enqueues outside the scheduled minute, got %d", enq.count())
	}
}

func TestScheduler_NonLeaderDoesNotEnqueue(t *testing.T) {
	enq := &recordingEnqueuer{}
	lock := &fakeLock{leader: false}
	s := newTestScheduler(t, []job.ScheduleEntry{
		{Task: "send_daily_reminders", Cron: "daily:18:00", Lane: "reminders"},
	}, enq, lock)

	at := time.Date(2026, 3, 5, 18, 0, 0, 0, time.UTC)
	s.Tick(context.Background(), at)
	if enq.count() != 0 {
		t.Fatalf("non-leader must not enqueue, got %d", enq.count())
	}

	// Gaining leadership later in the same minute must not double-fire a
	// window another instance already owned.
	lock.leader = true
	s.Tick(context.Background(), at.Add(30*time.Second))
	if enq.count() != 0 {
		t.Fatalf("late leader must not re-fire a consumed window, got %d", enq.count())
	}
}

func TestScheduler_MonthlyEntry(t *testing.T) {
	enq := &recordingEnqueuer{}
	s := newTestScheduler(t, []job.ScheduleEntry{
		{Task: "generate_monthly_reports", Cron: "monthly:1:06:00", Lane: "reports"},
	}, enq, &fakeLock{leader: true})

	s.Tick(context.Background(), time.Date(2026, 4, 1, 6, 0, 5, 0, time.UTC))
	if enq.count() != 1 {
		t.Fatalf("expected monthly fire on the 1st, got %d", enq.count())
	}

	s.Tick(context.Background(), time.Date(2026, 4, 2, 6, 0, 5, 0, time.UTC))
	if enq.count() != 1 {
		t.Fatalf("expected no fire on the 2nd, got %d", enq.count())
	}
}

func TestNewScheduler_RejectsBadCron(t *testing.T) {
	_, err := NewScheduler([]job.ScheduleEntry{
		{Task: "broken", Cron: "fortnightly", Lane: "reports"},
	}, &recordingEnqueuer{}, &fakeLock{}, time.Second, testLogger())
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}
