package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/quizmasterhq/quizmaster/internal/domain"
	"github.com/quizmasterhq/quizmaster/internal/domain/job"
	"github.com/quizmasterhq/quizmaster/internal/jobs"
	"github.com/quizmasterhq/quizmaster/internal/port/jobqueue"
)

// memQueue hands published envelopes to handlers on demand via deliver.
type memQueue struct {
	mu       sync.Mutex
	handlers map[string]jobqueue.Handler
	pending  []job.Envelope
}

func newMemQueue() *memQueue {
	return &memQueue{handlers: make(map[string]jobqueue.Handler)}
}

func (q *memQueue) Publish(_ context.Context, env job.Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, env)
	return nil
}

func (q *memQueue) Consume(_ context.Context, lane string, handler jobqueue.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[lane] = handler
	return func() {}, nil
}

func (q *memQueue) Close() error { return nil }

func (q *memQueue) hasHandler(lane string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.handlers[lane]
	return ok
}

// deliver runs every pending envelope through its lane's handler.
func (q *memQueue) deliver(ctx context.Context) {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	handlers := make(map[string]jobqueue.Handler, len(q.handlers))
	for lane, h := range q.handlers {
		handlers[lane] = h
	}
	q.mu.Unlock()

	for _, env := range pending {
		if h, ok := handlers[env.Lane]; ok {
			_ = h(ctx, env)
		}
	}
}

// memResults mirrors the result store's monotonic-write contract.
type memResults struct {
	mu   sync.Mutex
	data map[string]job.Status
}

func newMemResults() *memResults {
	return &memResults{data: make(map[string]job.Status)}
}

func (m *memResults) Put(_ context.Context, st job.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.data[st.ID]; ok && !current.State.CanTransition(st.State) {
		return nil
	}
	m.data[st.ID] = st
	return nil
}

func (m *memResults) Get(_ context.Context, id string) (job.Status, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.data[id]
	return st, ok, nil
}

func newEchoRegistry() *jobs.Registry {
	r := jobs.NewRegistry()
	r.Register("echo", func(_ context.Context, args map[string]string) (string, error) {
		return "echo:" + args["msg"], nil
	}, jobs.Options{Lane: "exports", SoftLimit: time.Second, HardLimit: 2 * time.Second})
	return r
}

func TestJobService_EnqueueThenPoll(t *testing.T) {
	queue := newMemQueue()
	results := newMemResults()
	registry := newEchoRegistry()
	svc := NewJobService(queue, results, registry, nil, testLogger())
	worker := jobs.NewWorker(queue, results, registry, nil, testLogger())
	ctx := context.Background()

	runCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	go func() { _ = worker.Run(runCtx) }()
	for i := 0; i < 200 && !queue.hasHandler("exports"); i++ {
		time.Sleep(time.Millisecond)
	}
	if !queue.hasHandler("exports") {
		t.Fatal("worker never subscribed to the exports lane")
	}

	st, err := svc.Enqueue(ctx, "echo", map[string]string{"msg": "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if st.State != job.StatePending {
		t.Fatalf("expected PENDING on enqueue, got %s", st.State)
	}
	if st.ID == "" {
		t.Fatal("expected a job id")
	}

	// Poll before the worker runs anything: PENDING, never UNKNOWN.
	polled, err := svc.Status(ctx, st.ID)
	if err != nil {
		t.Fatal(err)
	}
	if polled.State != job.StatePending {
		t.Fatalf("expected PENDING before execution, got %s", polled.State)
	}

	queue.deliver(ctx)

	polled, err = svc.Status(ctx, st.ID)
	if err != nil {
		t.Fatal(err)
	}
	if polled.State != job.StateSuccess {
		t.Fatalf("expected SUCCESS after execution, got %s", polled.State)
	}
	if polled.Result != "echo:hi" {
		t.Fatalf("unexpected result %q", polled.Result)
	}
	if polled.StartedAt.IsZero() || polled.FinishedAt.IsZero() {
		t.Fatal("expected lifecycle timestamps on terminal record")
	}
}

func TestJobService_UnknownTaskRejected(t *testing.T) {
	svc := NewJobService(newMemQueue(), newMemResults(), newEchoRegistry(), nil, testLogger())

	_, err := svc.Enqueue(context.Background(), "mine_bitcoin", nil)
	if err == nil {
		t.Fatal("expected error for unknown task")
	}
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestJobService_UnknownIDIsUnknownState(t *testing.T) {
	svc := NewJobService(newMemQueue(), newMemResults(), newEchoRegistry(), nil, testLogger())

	st, err := svc.Status(context.Background(), "never-existed")
	if err != nil {
		t.Fatal(err)
	}
	if st.State != job.StateUnknown {
		t.Fatalf("expected UNKNOWN, got %s", st.State)
	}
	if st.ID != "never-existed" {
		t.Fatalf("expected echoed id, got %q", st.ID)
	}
	if st.Detail != job.UnknownDetail {
		t.Fatalf("expected the expired-record hint, got %q", st.Detail)
	}
}
