package nats_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	natsadapter "github.com/quizmasterhq/quizmaster/internal/adapter/nats"
	"github.com/quizmasterhq/quizmaster/internal/domain/job"
)

// These tests require a running NATS server with JetStream enabled.
// Set NATS_URL (e.g. nats://localhost:4222) to run them.

func connectOrSkip(t *testing.T) *natsadapter.Conn {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set, skipping integration test")
	}
	conn, err := natsadapter.Connect(url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestQueue_PublishConsume(t *testing.T) {
	conn := connectOrSkip(t)
	ctx := context.Background()

	q, err := natsadapter.NewQueue(ctx, conn, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	lane := fmt.Sprintf("test-%d", time.Now().UnixNano())
	received := make(chan job.Envelope, 1)

	cancel, err := q.Consume(ctx, lane, func(_ context.Context, env job.Envelope) error {
		received <- env
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	env := job.Envelope{
		ID:         uuid.NewString(),
		Task:       "export_user_csv",
		Args:       map[string]string{"user_id": "7"},
		Lane:       lane,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := q.Publish(ctx, env); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-received:
		if got.ID != env.ID || got.Task != env.Task || got.Args["user_id"] != "7" {
			t.Fatalf("envelope mismatch: %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for envelope")
	}
}

func TestResultStore_MonotonicWrites(t *testing.T) {
	conn := connectOrSkip(t)
	ctx := context.Background()

	store, err := natsadapter.NewResultStore(ctx, conn, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()

	if err := store.Put(ctx, job.Status{ID: id, Task: "t", State: job.StatePending, EnqueuedAt: now}); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, job.Status{ID: id, Task: "t", State: job.StateSuccess, EnqueuedAt: now, FinishedAt: now}); err != nil {
		t.Fatal(err)
	}

	// A late PENDING write must not regress the terminal record.
	if err := store.Put(ctx, job.Status{ID: id, Task: "t", State: job.StatePending, EnqueuedAt: now}); err != nil {
		t.Fatal(err)
	}

	st, ok, err := store.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected record")
	}
	if st.State != job.StateSuccess {
		t.Fatalf("expected SUCCESS, got %s", st.State)
	}
}

func TestResultStore_MissingID(t *testing.T) {
	conn := connectOrSkip(t)
	ctx := context.Background()

	store, err := natsadapter.NewResultStore(ctx, conn, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	_, ok, err := store.Get(ctx, uuid.NewString())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected miss for unknown id")
	}
}

func TestLeaderLock_SingleHolder(t *testing.T) {
	conn := connectOrSkip(t)
	ctx := context.Background()

	a, err := natsadapter.NewLeaderLock(ctx, conn, "instance-a", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	b, err := natsadapter.NewLeaderLock(ctx, conn, "instance-b", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = a.Release(ctx) }()

	gotA, err := a.TryAcquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	gotB, err := b.TryAcquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if gotA == gotB {
		t.Fatalf("expected exactly one leader, got a=%v b=%v", gotA, gotB)
	}

	// The holder can refresh; the other instance still loses.
	if gotA {
		again, err := a.TryAcquire(ctx)
		if err != nil || !again {
			t.Fatalf("holder failed to refresh: %v %v", again, err)
		}
		if err := a.Release(ctx); err != nil {
			t.Fatal(err)
		}
		taken, err := b.TryAcquire(ctx)
		if err != nil || !taken {
			t.Fatalf("expected b to take released lock: %v %v", taken, err)
		}
		_ = b.Release(ctx)
	}
}
