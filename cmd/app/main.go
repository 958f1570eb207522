// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"jobsee-orchestrator/internal/config"
	"jobsee-orchestrator/internal/domain/ports/adapter"
	"jobsee-orchestrator/internal/domain/ports/repository"
	"jobsee-orchestrator/internal/infra/adapters/browser"
	"jobsee-orchestrator/internal/infra/adapters/platform"
	tele "jobsee-orchestrator/internal/infra/adapters/telegram"
	pg "jobsee-orchestrator/internal/infra/db/postgres"
	httpapi "jobsee-orchestrator/internal/infra/http"
	"jobsee-orchestrator/internal/infra/logging"
	"jobsee-orchestrator/internal/infra/metrics"
	"jobsee-orchestrator/internal/infra/observability"
	"jobsee-orchestrator/internal/infra/pacing"
	red "jobsee-orchestrator/internal/infra/redis"
	"jobsee-orchestrator/internal/infra/sched"
	"jobsee-orchestrator/internal/infra/scheduler"
	"jobsee-orchestrator/internal/infra/security"
	"jobsee-orchestrator/internal/infra/worker"
	"jobsee-orchestrator/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "console logs and verbose output")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().Str("version", version).Str("commit", commit).Bool("dev", cfg.Runtime.Dev).Msg("starting orchestrator")

	// ---- Tracing ----
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTel, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("otel setup failed")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	var userRepo repository.UserRepository = pg.NewPostgresUserRepo(pool)
	taskRepo := pg.NewTaskRepo(pool)
	quotaRepo := pg.NewQuotaRepo(pool)
	appRepo := pg.NewApplicationRepo(pool)

	// ---- Redis (optional) ----
	// Interfaces stay nil when Redis is off so consumers see no budget or lock.
	var (
		budget adapter.DailyBudget
		locker adapter.Locker
		marker adapter.OnceMarker
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connect failed")
		}
		defer redisClient.Close()
		budget = red.NewDailyBudget(redisClient)
		locker = red.NewLocker(redisClient)
		marker = red.NewOnceMarker(redisClient)
		userRepo = pg.NewUserRepoCacheDecorator(userRepo, redisClient, cfg.Redis.TTL)
	} else {
		logger.Warn().Msg("redis disabled: no daily budgets, user cache or monitor lock")
	}

	// ---- Credential vault ----
	vault, err := security.NewVault(cfg.Security.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("vault init failed")
	}

	// ---- Alerts ----
	var alerter adapter.Alerter
	if cfg.Alerts.TelegramToken != "" {
		host, _ := os.Hostname()
		a, err := tele.NewAlerter(cfg.Alerts, host, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram alerter init failed")
		}
		alerter = a
	} else {
		alerter = tele.NewLogAlerter(logger)
	}

	// ---- Platforms ----
	factory := browser.NewFactory(cfg.Browser, logger)
	plans, err := platform.Build(cfg, factory, pacing.New(cfg.Pacing), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("platform setup failed")
	}
	for _, p := range plans {
		logger.Info().Str("platform", p.Name()).Float64("weight", p.Weight).Int("hard_cap", p.HardCap).Int("daily_cap", p.DailyCap).Msg("platform enabled")
	}

	// ---- Use cases ----
	quotaUC := usecase.NewQuotaUseCase(quotaRepo, tm, logger)
	orchestrator := usecase.NewOrchestrator(taskRepo, userRepo, appRepo, quotaUC, tm, plans, vault, budget, alerter,
		usecase.OrchestratorConfig{
			WorkerID:        cfg.Worker.ID,
			RunTimeout:      cfg.Worker.RunTimeout,
			ClaimRetries:    cfg.Worker.ClaimRetries,
			FinalizeRetries: cfg.Worker.FinalizeRetries,
		}, logger)
	runUC := usecase.NewRunUseCase(userRepo, quotaRepo, taskRepo, plans, logger)
	historyUC := usecase.NewHistoryUseCase(userRepo, quotaRepo, appRepo, taskRepo, logger)

	// ---- Workers ----
	workers := worker.NewPool(cfg.Worker.PoolSize, cfg.Worker.QueueSize, logger)
	workers.Start(ctx)
	dispatcher := worker.NewDispatcher(orchestrator, workers, logger)

	poller := scheduler.NewScheduler("queue-poller", cfg.Worker.PollInterval, 10*time.Second, func(ctx context.Context) error {
		_, err := dispatcher.Fill(ctx)
		return err
	}, logger)
	poller.Start(ctx)

	poolStats := scheduler.NewScheduler("db-pool-stats", 15*time.Second, 5*time.Second, func(context.Context) error {
		reportPoolStats(pool)
		return nil
	}, logger)
	poolStats.Start(ctx)

	monitor := sched.NewStuckTaskMonitor(taskRepo, locker, marker, alerter, cfg.Worker.StuckScanInterval, cfg.Worker.StuckAfter, logger)
	go func() { _ = monitor.Run(ctx) }()

	// ---- HTTP ----
	srv := httpapi.NewServer(cfg.HTTP, dispatcher, runUC, historyUC, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	logger.Info().Str("worker_id", orchestrator.WorkerID()).Int("pool_size", workers.Size()).Msg("orchestrator ready")

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}

	shutdown(cancel, srv, poller, poolStats, workers, shutdownOTel, logger)
}

func shutdown(stopRuns context.CancelFunc, srv *httpapi.Server, poller, poolStats *scheduler.Scheduler, workers *worker.Pool, otelShutdown observability.Shutdown, logger *zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	poller.Stop()
	poolStats.Stop()
	// In-flight runs stop early; what they applied so far is still finalized.
	stopRuns()
	workers.Stop()
	if err := otelShutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("otel shutdown")
	}
	logger.Info().Msg("shutdown complete")
}

func reportPoolStats(pool *pgxpool.Pool) {
	s := pool.Stat()
	metrics.SetDBPoolStats(metrics.PoolStats{
		Total:         s.TotalConns(),
		Idle:          s.IdleConns(),
		Acquired:      s.AcquiredConns(),
		EmptyAcquires: s.EmptyAcquireCount(),
	})
}
