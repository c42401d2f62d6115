package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	qmnats "github.com/quizmasterhq/quizmaster/internal/adapter/nats"
	qmotel "github.com/quizmasterhq/quizmaster/internal/adapter/otel"
	"github.com/quizmasterhq/quizmaster/internal/config"
	"github.com/quizmasterhq/quizmaster/internal/jobs"
	"github.com/quizmasterhq/quizmaster/internal/logger"
	"github.com/quizmasterhq/quizmaster/internal/service"
)

// runWorker consumes every lane until terminated.
func runWorker() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	ctx, stop := signalContext()
	defer stop()

	shutdownOtel, err := qmotel.Init(ctx, cfg.Otel, cfg.Logging.Service+"-worker")
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer flushOtel(shutdownOtel, log)
	metrics, err := qmotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	rt, err := buildRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.close()

	worker := jobs.NewWorker(rt.queue, rt.results, rt.registry, metrics, log)
	log.Info("worker starting", "lanes", rt.registry.Lanes(), "tasks", rt.registry.Names())
	return worker.Run(ctx)
}

// runScheduler evaluates the recurring schedule until terminated. Any
// number of instances may run; the leader lock picks one to enqueue.
func runScheduler() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	ctx, stop := signalContext()
	defer stop()

	shutdownOtel, err := qmotel.Init(ctx, cfg.Otel, cfg.Logging.Service+"-scheduler")
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer flushOtel(shutdownOtel, log)
	metrics, err := qmotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	rt, err := buildRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.close()

	instance := uuid.NewString()
	lock, err := qmnats.NewLeaderLock(ctx, rt.conn, instance, cfg.Scheduler.LockTTL)
	if err != nil {
		return fmt.Errorf("leader lock: %w", err)
	}

	jobSvc := service.NewJobService(rt.queue, rt.results, rt.registry, metrics, log)
	sched, err := jobs.NewScheduler(cfg.Scheduler.Entries, jobSvc, lock, cfg.Scheduler.Tick, log)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	log.Info("scheduler starting", "instance", instance, "entries", len(cfg.Scheduler.Entries), "tick", cfg.Scheduler.Tick)
	return sched.Run(ctx)
}

func flushOtel(shutdown qmotel.ShutdownFunc, log *slog.Logger) {
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(flushCtx); err != nil {
		log.Warn("otel shutdown failed", "error", err)
	}
}
