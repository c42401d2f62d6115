package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "quizmaster"

// Metrics holds all quizmaster metric instruments. It implements the
// job and cache observer interfaces consumed by the services.
type Metrics struct {
	JobsEnqueued metric.Int64Counter
	JobsStarted  metric.Int64Counter
	JobsFinished metric.Int64Counter
	JobDuration  metric.Float64Histogram
	CacheHits    metric.Int64Counter
	CacheMisses  metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.JobsEnqueued, err = meter.Int64Counter("quizmaster.jobs.enqueued",
		metric.WithDescription("Number of jobs enqueued"))
	if err != nil {
		return nil, err
	}

	m.JobsStarted, err = meter.Int64Counter("quizmaster.jobs.started",
		metric.WithDescription("Number of jobs started"))
	if err != nil {
		return nil, err
	}

	m.JobsFinished, err = meter.Int64Counter("quizmaster.jobs.finished",
		metric.WithDescription("Number of jobs finished, by outcome"))
	if err != nil {
		return nil, err
	}

	m.JobDuration, err = meter.Float64Histogram("quizmaster.jobs.duration_seconds",
		metric.WithDescription("Job execution duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.CacheHits, err = meter.Int64Counter("quizmaster.cache.hits",
		metric.WithDescription("Number of cache hits"))
	if err != nil {
		return nil, err
	}

	m.CacheMisses, err = meter.Int64Counter("quizmaster.cache.misses",
		metric.WithDescription("Number of cache misses"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// JobEnqueued records a job submission.
func (m *Metrics) JobEnqueued(ctx context.Context, lane, task string) {
	m.JobsEnqueued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("lane", lane),
		attribute.String("task", task),
	))
}

// JobStarted records a job pickup.
func (m *Metrics) JobStarted(ctx context.Context, lane, task string) {
	m.JobsStarted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("lane", lane),
		attribute.String("task", task),
	))
}

// JobFinished records a terminal state and the execution duration.
func (m *Metrics) JobFinished(ctx context.Context, lane, task string, d time.Duration, success bool) {
	attrs := metric.WithAttributes(
		attribute.String("lane", lane),
		attribute.String("task", task),
		attribute.Bool("success", success),
	)
	m.JobsFinished.Add(ctx, 1, attrs)
	m.JobDuration.Record(ctx, d.Seconds(), attrs)
}

// CacheHit records a cache hit for a read operation.
func (m *Metrics) CacheHit(ctx context.Context, op string) {
	m.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// CacheMiss records a cache miss for a read operation.
func (m *Metrics) CacheMiss(ctx context.Context, op string) {
	m.CacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
