package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newsmap/internal/bootstrap"
	"newsmap/internal/config"
	"newsmap/internal/infra/adapter/persistence/postgres"
	"newsmap/internal/infra/db"
	"newsmap/internal/infra/events"
	"newsmap/internal/infra/notifier"
	workerPkg "newsmap/internal/infra/worker"
	"newsmap/internal/observability/logging"
	"newsmap/internal/observability/slo"
	"newsmap/internal/observability/tracing"
	pkgconfig "newsmap/internal/pkg/config"
	"newsmap/internal/repository"
	"newsmap/internal/usecase/notify"
)

// workerOptions are the worker process flags.
type workerOptions struct {
	bootstrap.Options
	MetricsAddr string `long:"metrics-addr" env:"NEWSMAP_METRICS_ADDR" default:":9091" description:"Admin, health and metrics listen address"`
	NATSURL     string `long:"nats-url" env:"NATS_URL" description:"NATS server for content-change events; empty disables the subscriber"`
}

func waitForMigrations(logger *slog.Logger, db *sql.DB) {
	const probe = "SELECT 1 FROM ping_attempts LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := db.Exec(probe); err == nil {
			return
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		time.Sleep(3 * time.Second)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
}

func main() {
	var opts workerOptions
	ok, err := bootstrap.Parse(&opts, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if !ok {
		return
	}

	logger := initLogger()
	version := getVersion()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing := initTracing(ctx, logger, opts.Options, version)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("failed to flush traces", slog.Any("error", err))
		}
	}()

	database := initDatabase(ctx, logger, opts.DatabaseURL)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	stack, err := bootstrap.NewStack(ctx, opts.Options, database, "newsmap_worker", logger)
	if err != nil {
		logger.Error("failed to build sitemap stack", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logger.Error("failed to close cache", slog.Any("error", err))
		}
	}()

	pingLog := postgres.NewPingLogRepo(database)
	notifyService := setupNotifyService(ctx, logger, stack, pingLog)
	processor := events.NewProcessor(stack.Cache, notifyService, stack.Settings, logger)

	subscriber := startSubscriber(logger, opts.NATSURL, processor)
	if subscriber != nil {
		defer func() {
			if err := subscriber.Close(); err != nil {
				logger.Error("failed to close subscriber", slog.Any("error", err))
			}
		}()
	}

	server := startMetricsServer(ctx, logger, opts.MetricsAddr, database, stack, notifyService, processor, pingLog)

	scheduler := startScheduler(logger, stack, notifyService)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for s := range sig {
		if s != syscall.SIGHUP {
			break
		}
		if err := stack.Reload(logger); err != nil {
			logger.Error("settings reload rejected", slog.Any("error", err))
			continue
		}
		logger.Info("settings reloaded")
	}
	logger.Info("shutting down worker...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler did not drain", slog.Any("error", err))
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown failed", slog.Any("error", err))
	}
	logger.Info("worker stopped")
}

func initLogger() *slog.Logger {
	logger := logging.NewLogger("newsmap-worker")
	slog.SetDefault(logger)
	return logger
}

func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}

func initTracing(ctx context.Context, logger *slog.Logger, opts bootstrap.Options, version string) func(context.Context) error {
	shutdown, err := tracing.Init(ctx, tracing.Config{
		ServiceName: "newsmap-worker",
		Version:     version,
		Endpoint:    opts.OTLPEndpoint,
		SampleRatio: opts.TraceRatio,
	})
	if err != nil {
		logger.Error("failed to initialise tracing", slog.Any("error", err))
		os.Exit(1)
	}
	return shutdown
}

func initDatabase(ctx context.Context, logger *slog.Logger, dsn string) *sql.DB {
	database, err := db.Open(ctx, dsn)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	waitForMigrations(logger, database)
	return database
}

func setupNotifyService(ctx context.Context, logger *slog.Logger, stack *bootstrap.Stack, pingLog repository.PingLog) notify.Service {
	key, generated, err := stack.Settings.EnsureIndexNowKey()
	if err != nil {
		logger.Error("failed to generate indexnow key", slog.Any("error", err))
		os.Exit(1)
	}
	if generated {
		logger.Info("indexnow key generated; persist it in the settings file to keep it across restarts",
			slog.String("key", key))
	}

	indexNow := notifier.NewIndexNow(stack.Settings, stack.Artifacts, notifier.WithLogger(logger))
	if indexNow.Enabled() && indexNow.Configured() {
		if err := indexNow.Prepare(ctx); err != nil {
			logger.Warn("indexnow verification file not written", slog.Any("error", err))
		}
	}
	// A key change from a reload needs a new verification file.
	stack.Settings.Subscribe(func(s config.Settings) {
		if s.Ping.IndexNowEnabled && notifier.ValidKey(s.Ping.IndexNowKey) {
			if err := indexNow.Prepare(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("indexnow verification file not written", slog.Any("error", err))
			}
		}
	})

	targets := []notify.Target{
		notifier.NewGooglePing(stack.Settings, notifier.WithLogger(logger)),
		notifier.NewBingPing(stack.Settings, notifier.WithLogger(logger)),
		indexNow,
		notifier.NewConsole(stack.Settings),
	}

	svc := notify.NewService(stack.Settings, stack.Content, stack.Sitemap, pingLog, targets, logger,
		notify.WithAnalytics(stack.Analytics),
		notify.WithHashWindow(stack.Hashes))

	for _, h := range svc.TargetHealth() {
		logger.Info("notification target",
			slog.String("target", h.Name),
			slog.Bool("enabled", h.Enabled),
			slog.Bool("configured", h.Configured))
	}
	return svc
}

func startSubscriber(logger *slog.Logger, url string, processor *events.Processor) *events.Subscriber {
	if url == "" {
		logger.Info("NATS subscriber disabled, events accepted over HTTP only")
		return nil
	}
	nc, err := events.Connect(url, logger)
	if err != nil {
		logger.Error("failed to connect to NATS", slog.Any("error", err))
		os.Exit(1)
	}
	subscriber := events.NewSubscriber(nc, processor, logger)
	if err := subscriber.Start(); err != nil {
		logger.Error("failed to subscribe", slog.Any("error", err))
		os.Exit(1)
	}
	return subscriber
}

func startScheduler(logger *slog.Logger, stack *bootstrap.Stack, notifyService notify.Service) *workerPkg.Scheduler {
	cfg := workerPkg.LoadConfigFromEnv(logger, pkgconfig.NewConfigMetrics("newsmap_scheduler"))
	logger.Info("worker configuration loaded",
		slog.String("sweep_schedule", cfg.SweepSchedule),
		slog.String("deferred_schedule", cfg.DeferredSchedule),
		slog.String("warmup_schedule", cfg.WarmupSchedule),
		slog.String("timezone", cfg.Timezone),
		slog.Duration("job_timeout", cfg.JobTimeout))

	scheduler, err := workerPkg.NewScheduler(cfg, logger)
	if err != nil {
		logger.Error("failed to create scheduler", slog.Any("error", err))
		os.Exit(1)
	}

	jobs := []struct {
		name     string
		schedule string
		fn       workerPkg.JobFunc
	}{
		{name: "sweep", schedule: cfg.SweepSchedule, fn: sweepJob(notifyService)},
		{name: "deferred", schedule: cfg.DeferredSchedule, fn: deferredJob(logger, notifyService)},
		{name: "warmup", schedule: cfg.WarmupSchedule, fn: warmupJob(stack)},
	}
	for _, j := range jobs {
		if err := scheduler.Add(j.name, j.schedule, j.fn); err != nil {
			logger.Error("failed to schedule job", slog.String("job", j.name), slog.Any("error", err))
			os.Exit(1)
		}
	}

	scheduler.Start()
	go scheduler.RunNow("warmup", warmupJob(stack))
	return scheduler
}

// sweepJob runs the retry sweep; the service logs its summary.
func sweepJob(svc notify.Service) workerPkg.JobFunc {
	return func(ctx context.Context) error {
		svc.Sweep(ctx)
		return nil
	}
}

func deferredJob(logger *slog.Logger, svc notify.Service) workerPkg.JobFunc {
	return func(ctx context.Context) error {
		if n := svc.ProcessDeferred(ctx); n > 0 {
			logging.WithRequestID(ctx, logger).Info("deferred bursts dispatched", slog.Int("count", n))
		}
		return nil
	}
}

// warmupJob regenerates the first page and the index when they have
// expired, then refreshes the SLO gauges from today's analytics.
func warmupJob(stack *bootstrap.Stack) workerPkg.JobFunc {
	return func(ctx context.Context) error {
		if _, err := stack.Sitemap.Index(ctx); err != nil {
			return err
		}
		if _, err := stack.Sitemap.Page(ctx, 1); err != nil {
			return err
		}
		if err := stack.Sitemap.FlushStats(ctx); err != nil {
			return err
		}
		days, err := stack.Analytics.Summary(ctx, 1)
		if err != nil {
			return err
		}
		// Newest day first.
		if len(days) > 0 {
			slo.Update(days[0])
		}
		return nil
	}
}
