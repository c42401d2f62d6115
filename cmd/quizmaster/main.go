// Command quizmaster runs the quiz platform: the HTTP API server, the
// job worker, the job scheduler and admin maintenance commands.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/quizmasterhq/quizmaster/internal/adapter/failsafe"
	qmhttp "github.com/quizmasterhq/quizmaster/internal/adapter/http"
	"github.com/quizmasterhq/quizmaster/internal/adapter/natskv"
	qmotel "github.com/quizmasterhq/quizmaster/internal/adapter/otel"
	"github.com/quizmasterhq/quizmaster/internal/adapter/ristretto"
	"github.com/quizmasterhq/quizmaster/internal/adapter/tiered"
	_ "github.com/quizmasterhq/quizmaster/internal/adapter/webhook" // register the webhook notifier
	"github.com/quizmasterhq/quizmaster/internal/cachekey"
	"github.com/quizmasterhq/quizmaster/internal/config"
	"github.com/quizmasterhq/quizmaster/internal/logger"
	"github.com/quizmasterhq/quizmaster/internal/middleware"
	"github.com/quizmasterhq/quizmaster/internal/resilience"
	"github.com/quizmasterhq/quizmaster/internal/service"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd := "serve"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "serve":
		return runServe()
	case "worker":
		return runWorker()
	case "scheduler":
		return runScheduler()
	case "admin":
		return runAdmin(args[1:])
	case "help", "--help", "-h":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: quizmaster <command>

Commands:
  serve       Run the HTTP API server (default)
  worker      Run the job worker
  scheduler   Run the recurring-job scheduler
  admin       Database maintenance commands
  help        Show this help message
`)
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	ctx, stop := signalContext()
	defer stop()

	shutdownOtel, err := qmotel.Init(ctx, cfg.Otel, cfg.Logging.Service)
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

	quizSvc, err := buildQuizService(ctx, cfg, log, rt, metrics)
	if err != nil {
		return err
	}
	jobSvc := service.NewJobService(rt.queue, rt.results, rt.registry, metrics, log)

	idemKV, err := rt.conn.KeyValue(ctx, cfg.Idempotency.Bucket, cfg.Idempotency.TTL)
	if err != nil {
		return fmt.Errorf("idempotency bucket: %w", err)
	}

	handlers := qmhttp.NewHandlers(quizSvc, jobSvc, log)

	r := chi.NewRouter()
	if cfg.Otel.Enabled {
		r.Use(qmotel.HTTPMiddleware(cfg.Logging.Service))
	}
	r.Use(qmhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(qmhttp.RequestID)
	r.Use(qmhttp.Logger)
	r.Use(qmhttp.SecurityHeaders)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health", healthHandler(cfg))
	qmhttp.MountRoutes(r, handlers, middleware.Idempotency(idemKV))

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// healthHandler returns an http.HandlerFunc reporting the configured
// backing services.
func healthHandler(cfg *config.Config) http.HandlerFunc {
	type healthStatus struct {
		Status   string `json:"status"`
		Postgres string `json:"postgres"`
		NATS     string `json:"nats"`
		Cache    string `json:"cache"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		status := healthStatus{
			Status:   "ok",
			Postgres: cfg.Postgres.DSN,
			NATS:     cfg.NATS.URL,
			Cache:    cfg.Cache.L2Bucket,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}

// buildQuizService assembles the cache stack in front of the store:
// ristretto in process, a JetStream bucket shared across instances, a
// circuit breaker that degrades the whole stack to pass-through.
func buildQuizService(ctx context.Context, cfg *config.Config, log *slog.Logger, rt *runtime, metrics *qmotel.Metrics) (*service.QuizService, error) {
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	l2, err := natskv.OpenBucket(ctx, rt.conn.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("cache bucket: %w", err)
	}

	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	cacheLayer := failsafe.New(tiered.New(l1, l2, cfg.Cache.TTL), breaker, log)

	rules := cachekey.DefaultRules(log)
	return service.NewQuizService(rt.store, cacheLayer, rules, cfg.Cache.TTL, metrics, log), nil
}
