// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

// Command worker is the entry point for the Serina ingestion worker.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire the gateway, scrapers, queue, lock, and repositories.
//  7. Start the poll scheduler, worker pool, DLQ monitor, and ops server.
//  8. Drain gracefully on SIGTERM/SIGINT.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/owarin/serina/internal/api"
	"github.com/owarin/serina/internal/chapter"
	"github.com/owarin/serina/internal/dlq"
	"github.com/owarin/serina/internal/gateway"
	"github.com/owarin/serina/internal/platform/config"
	"github.com/owarin/serina/internal/platform/constants"
	"github.com/owarin/serina/internal/platform/lock"
	"github.com/owarin/serina/internal/platform/migration"
	pgstore "github.com/owarin/serina/internal/platform/postgres"
	redisstore "github.com/owarin/serina/internal/platform/redis"
	"github.com/owarin/serina/internal/poller"
	"github.com/owarin/serina/internal/queue"
	"github.com/owarin/serina/internal/reconciler"
	"github.com/owarin/serina/internal/scraper"
	"github.com/owarin/serina/internal/source"
	"github.com/owarin/serina/internal/worker"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("[Serina] worker_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Int("worker_concurrency", cfg.WorkerConcurrency),
	)

	// Root context for startup. A deadline here catches misconfiguration
	// quickly instead of hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Resilience Gateway ─────────────────────────────────────────────
	gw := gateway.New(gateway.Options{
		FailureThreshold: cfg.BreakerThreshold,
		RecoveryInterval: cfg.BreakerRecovery,
		RateRPS:          cfg.ScrapeRateRPS,
		RateBurst:        cfg.ScrapeRateBurst,
		TokenWait:        cfg.TokenWaitTimeout,
		AllowedHosts:     cfg.AllowedHostList(),
	}, log)

	// ── 7. Scrape Capabilities ────────────────────────────────────────────
	// New source families register their implementations here.
	scrapers := scraper.NewRegistry()
	scrapers.Register(scraper.NewKyoshiro(cfg.KyoshiroBaseURL))

	// ── 8. Queue, Lock, Repositories ──────────────────────────────────────
	jobQueue := queue.NewRedisQueue(rdb)
	locker := lock.NewRedisLocker(rdb, cfg.LockLease, cfg.LockWaitTimeout)
	sourceRepository := source.NewRepository(pool)
	chapterRepository := chapter.NewRepository(pool)

	// ── 9. Pipeline Services ──────────────────────────────────────────────
	pollService := poller.NewService(sourceRepository, scrapers, gw, jobQueue,
		poller.Options{
			Interval:         cfg.PollInterval,
			DisableThreshold: cfg.SourceDisableThreshold,
		}, log)

	reconcileService := reconciler.NewService(chapterRepository, locker, jobQueue, log)

	ingestPool := worker.NewPool(jobQueue, constants.QueueIngest,
		func(ctx context.Context, envelope *queue.Envelope) error {
			var job queue.IngestJob
			if err := envelope.Decode(&job); err != nil {
				return err
			}
			_, err := reconcileService.Reconcile(ctx, &job)
			return err
		},
		cfg.WorkerConcurrency, cfg.JobMaxAttempts, log)

	monitor := dlq.NewMonitor(jobQueue, dlq.Options{
		Queues: []string{constants.QueueIngest, constants.QueueNotify},
		Thresholds: dlq.Thresholds{
			Warning:  int64(cfg.DLQWarningThreshold),
			Error:    int64(cfg.DLQErrorThreshold),
			Critical: int64(cfg.DLQCriticalThreshold),
		},
		Cooldown: cfg.DLQAlertCooldown,
		Interval: cfg.DLQCheckInterval,
	}, log)

	// ── 10. Ops HTTP Server ───────────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	server := api.NewServer(cfg, log, api.Dependencies{
		Liveness:  liveness,
		Readiness: readiness,
		Monitor:   monitor,
		Gateway:   gw,
	})

	// ── 11. Run ───────────────────────────────────────────────────────────
	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	ingestPool.Start(runCtx)
	go pollService.Run(runCtx)
	go monitor.Run(runCtx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("ops server startup error", slog.Any("error", err))
	}

	// ── 12. Graceful Shutdown ─────────────────────────────────────────────
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("ops server shutdown error", slog.Any("error", err))
	}

	runCancel()
	ingestPool.Wait()

	log.Info("worker stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
