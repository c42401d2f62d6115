package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/quizmasterhq/quizmaster/internal/domain/job"
	"github.com/quizmasterhq/quizmaster/internal/port/jobqueue"
)

const (
	streamName    = "JOBS"
	subjectPrefix = "jobs."

	// maxDeliver bounds broker-level redelivery of envelopes whose handler
	// keeps failing before it can record a terminal status.
	maxDeliver = 5
)

// Queue implements jobqueue.Queue on a JetStream stream. Each lane maps
// to one subject and one durable consumer, so workers on the same lane
// share the load.
type Queue struct {
	conn    *Conn
	ackWait time.Duration
}

// NewQueue ensures the job stream exists and returns a queue bound to
// it. ackWait must exceed the longest hard time limit of any task, or
// the broker will redeliver envelopes mid-run.
func NewQueue(ctx context.Context, conn *Conn, ackWait time.Duration) (*Queue, error) {
	_, err := conn.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectPrefix + ">"},
	})
	if err != nil {
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}
	return &Queue{conn: conn, ackWait: ackWait}, nil
}

// Publish hands an envelope to the broker on its lane's subject. The
// call returns as soon as the broker acknowledges persistence; it never
// waits for a worker.
func (q *Queue) Publish(ctx context.Context, env job.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	subject := subjectPrefix + env.Lane
	if _, err := q.conn.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Consume registers a handler for envelopes on the given lane. The
// returned function cancels the subscription.
func (q *Queue) Consume(ctx context.Context, lane string, handler jobqueue.Handler) (func(), error) {
	consumer, err := q.conn.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		Durable:       "WORKER_" + lane,
		FilterSubject: subjectPrefix + lane,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       q.ackWait,
		MaxDeliver:    maxDeliver,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		var env job.Envelope
		if err := json.Unmarshal(msg.Data(), &env); err != nil {
			// A malformed envelope will never parse on redelivery either.
			slog.Error("dropping malformed job envelope", "lane", lane, "error", err)
			if termErr := msg.Term(); termErr != nil {
				slog.Error("nats term failed", "error", termErr)
			}
			return
		}
		if err := handler(context.Background(), env); err != nil {
			slog.Error("job handler failed", "job_id", env.ID, "task", env.Task, "error", err)
			if nakErr := msg.Nak(); nakErr != nil {
				slog.Error("nats nak failed", "error", nakErr)
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			slog.Error("nats ack failed", "error", ackErr)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

// Close shuts down the underlying connection.
func (q *Queue) Close() error {
	return q.conn.Close()
}
