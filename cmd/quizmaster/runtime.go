package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizmasterhq/quizmaster/internal/adapter/email"
	qmnats "github.com/quizmasterhq/quizmaster/internal/adapter/nats"
	"github.com/quizmasterhq/quizmaster/internal/adapter/postgres"
	"github.com/quizmasterhq/quizmaster/internal/config"
	"github.com/quizmasterhq/quizmaster/internal/jobs"
	"github.com/quizmasterhq/quizmaster/internal/port/notifier"
	"github.com/quizmasterhq/quizmaster/internal/service"
)

// runtime holds the infrastructure shared by the serve, worker and
// scheduler commands.
type runtime struct {
	pool     *pgxpool.Pool
	store    *postgres.Store
	conn     *qmnats.Conn
	queue    *qmnats.Queue
	results  *qmnats.ResultStore
	registry *jobs.Registry
}

func (rt *runtime) close() {
	_ = rt.conn.Close()
	rt.pool.Close()
}

// buildRuntime wires PostgreSQL, NATS JetStream, the notification
// dispatcher and the task registry.
func buildRuntime(ctx context.Context, cfg *config.Config, log *slog.Logger) (*runtime, error) {
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	store := postgres.NewStore(pool)
	log.Info("postgres connected")

	conn, err := qmnats.Connect(cfg.NATS.URL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("nats: %w", err)
	}

	// The ack wait must exceed every task's hard limit or the broker
	// redelivers envelopes while their handler is still running.
	queue, err := qmnats.NewQueue(ctx, conn, maxHardLimit(cfg.Jobs)+time.Minute)
	if err != nil {
		_ = conn.Close()
		pool.Close()
		return nil, fmt.Errorf("job stream: %w", err)
	}
	results, err := qmnats.NewResultStore(ctx, conn, cfg.Jobs.ResultTTL)
	if err != nil {
		_ = conn.Close()
		pool.Close()
		return nil, fmt.Errorf("result store: %w", err)
	}

	dispatch := buildDispatcher(cfg, log)

	registry := jobs.NewRegistry()
	jobs.RegisterAll(registry, store, dispatch, jobLimits(cfg.Jobs))

	return &runtime{
		pool:     pool,
		store:    store,
		conn:     conn,
		queue:    queue,
		results:  results,
		registry: registry,
	}, nil
}

// jobLimits maps the jobs config, routing table included, onto the
// registry's limit set.
func jobLimits(jobsCfg config.Jobs) jobs.Limits {
	limits := jobs.Limits{
		Soft:         jobsCfg.SoftLimit,
		Hard:         jobsCfg.HardLimit,
		MaxRetries:   jobsCfg.MaxRetries,
		RetryBackoff: jobsCfg.RetryBackoff,
	}
	if len(jobsCfg.Tasks) > 0 {
		limits.Tasks = make(map[string]jobs.TaskLimits, len(jobsCfg.Tasks))
		for name, t := range jobsCfg.Tasks {
			limits.Tasks[name] = jobs.TaskLimits{
				Lane:         t.Lane,
				Soft:         t.SoftLimit,
				Hard:         t.HardLimit,
				MaxRetries:   t.MaxRetries,
				RetryBackoff: t.RetryBackoff,
			}
		}
	}
	return limits
}

// maxHardLimit returns the largest effective hard limit across the
// routing table.
func maxHardLimit(jobsCfg config.Jobs) time.Duration {
	hard := jobsCfg.HardLimit
	for _, t := range jobsCfg.Tasks {
		if t.HardLimit > hard {
			hard = t.HardLimit
		}
	}
	return hard
}

// buildDispatcher assembles the notification channels. Missing SMTP or
// webhook configuration disables the channel instead of failing.
func buildDispatcher(cfg *config.Config, log *slog.Logger) *service.Dispatcher {
	var emailSender notifier.EmailSender
	if s := email.NewSender(cfg.SMTP); s != nil {
		emailSender = s
	} else {
		log.Info("smtp not configured, email notifications disabled")
	}

	var notifiers []notifier.Notifier
	if cfg.Webhook.URL != "" {
		n, err := notifier.New("webhook", map[string]string{"url": cfg.Webhook.URL})
		if err != nil {
			log.Warn("webhook notifier unavailable", "error", err)
		} else {
			notifiers = append(notifiers, n)
		}
	}

	return service.NewDispatcher(emailSender, notifiers, log)
}
