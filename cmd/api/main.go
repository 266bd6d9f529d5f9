package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newsmap/internal/bootstrap"
	hhttp "newsmap/internal/handler/http"
	"newsmap/internal/handler/http/admin"
	"newsmap/internal/handler/http/requestid"
	"newsmap/internal/handler/http/sitemap"
	"newsmap/internal/infra/db"
	"newsmap/internal/observability/logging"
	"newsmap/internal/observability/tracing"

	"github.com/robfig/cron/v3"
)

// apiOptions are the api process flags.
type apiOptions struct {
	bootstrap.Options
	Addr       string `long:"addr" env:"NEWSMAP_ADDR" default:":8080" description:"Listen address"`
	RateLimit  int    `long:"rate-limit" env:"NEWSMAP_RATE_LIMIT" default:"120" description:"Document requests per client per minute"`
	TrustProxy bool   `long:"trust-proxy" env:"NEWSMAP_TRUST_PROXY" description:"Take the client address from X-Forwarded-For"`
}

const (
	requestTimeout = 30 * time.Second
	maxRequestBody = 1 << 20
	statsFlush     = "@every 1m"
)

func main() {
	var opts apiOptions
	ok, err := bootstrap.Parse(&opts, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if !ok {
		return
	}

	logger := initLogger()
	version := getVersion()
	ctx := context.Background()

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

	stack, err := bootstrap.NewStack(ctx, opts.Options, database, "newsmap_api", logger)
	if err != nil {
		logger.Error("failed to build sitemap stack", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logger.Error("failed to close cache", slog.Any("error", err))
		}
	}()

	handler := setupServer(logger, database, stack, opts, version)
	runServer(logger, stack, handler, opts.Addr, version)
}

func initLogger() *slog.Logger {
	logger := logging.NewLogger("newsmap-api")
	slog.SetDefault(logger)
	return logger
}

func initTracing(ctx context.Context, logger *slog.Logger, opts bootstrap.Options, version string) func(context.Context) error {
	shutdown, err := tracing.Init(ctx, tracing.Config{
		ServiceName: "newsmap-api",
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
	version, dirty, err := db.RunMigrations(database)
	if err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("database migrated", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	return database
}

func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}

func setupServer(logger *slog.Logger, database *sql.DB, stack *bootstrap.Stack, opts apiOptions, version string) http.Handler {
	limiter := hhttp.NewRateLimiter(opts.RateLimit, time.Minute, opts.TrustProxy)
	logger.Info("document rate limiting initialized",
		slog.Int("limit_per_minute", opts.RateLimit),
		slog.Bool("trust_proxy", opts.TrustProxy))

	mux := setupRoutes(logger, database, stack, limiter, version)
	return applyMiddleware(logger, tracing.Route(mux))
}

func setupRoutes(
	logger *slog.Logger,
	database *sql.DB,
	stack *bootstrap.Stack,
	limiter *hhttp.RateLimiter,
	version string,
) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("GET    /health", &hhttp.HealthHandler{DB: database, Cache: stack.Cache, Version: version})
	mux.Handle("GET    /ready", &hhttp.ReadyHandler{DB: database})
	mux.Handle("GET    /live", &hhttp.LiveHandler{})
	mux.Handle("GET    /metrics", hhttp.MetricsHandler())

	admin.RegisterAPI(mux, stack.Sitemap, stack.Cache, stack.Analytics, logger)

	sitemap.Register(mux, sitemap.Handler{
		Docs:      stack.Sitemap,
		Artifacts: stack.Artifacts,
		Settings:  stack.Settings,
		Logger:    logger,
	}, limiter.Limit)

	return mux
}

// applyMiddleware wraps handler outermost first: request id, tracing,
// logging, panic recovery, metrics, timeout, body limit.
func applyMiddleware(logger *slog.Logger, handler http.Handler) http.Handler {
	return hhttp.Chain(handler,
		requestid.Middleware,
		tracing.Middleware,
		hhttp.Logging(logger),
		hhttp.Recover(logger),
		hhttp.MetricsMiddleware,
		hhttp.Timeout(requestTimeout),
		hhttp.LimitRequestBody(maxRequestBody),
	)
}

func runServer(logger *slog.Logger, stack *bootstrap.Stack, handler http.Handler, addr, version string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cache statistics are batched in memory and flushed to analytics.
	c := cron.New()
	if _, err := c.AddFunc(statsFlush, func() {
		if err := stack.Sitemap.FlushStats(requestid.Ensure(ctx)); err != nil {
			logger.Warn("cache stats flush failed", slog.Any("error", err))
		}
	}); err != nil {
		logger.Error("failed to schedule stats flush", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

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
	logger.Info("shutting down server...")

	<-c.Stop().Done()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	// Keep the counts gathered since the last tick.
	if err := stack.Sitemap.FlushStats(shutdownCtx); err != nil {
		logger.Warn("final cache stats flush failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
