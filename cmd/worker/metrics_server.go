package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"newsmap/internal/bootstrap"
	hhttp "newsmap/internal/handler/http"
	"newsmap/internal/handler/http/admin"
	"newsmap/internal/handler/http/requestid"
	"newsmap/internal/infra/events"
	"newsmap/internal/observability/tracing"
	"newsmap/internal/repository"
	"newsmap/internal/usecase/notify"
)

// maxEventBody bounds POST /admin/events; one event is a few hundred bytes.
const maxEventBody = 64 << 10

// startMetricsServer serves the worker admin routes, the health probes and
// /metrics on addr. The returned server is already listening. The write
// timeout covers manual pings and batch submissions, which wait on every
// target.
func startMetricsServer(
	ctx context.Context,
	logger *slog.Logger,
	addr string,
	database *sql.DB,
	stack *bootstrap.Stack,
	notifyService notify.Service,
	processor *events.Processor,
	pingLog repository.PingLog,
) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET    /metrics", hhttp.MetricsHandler())
	mux.Handle("GET    /health", &hhttp.HealthHandler{DB: database, Cache: stack.Cache, Version: getVersion()})
	mux.Handle("GET    /ready", &hhttp.ReadyHandler{DB: database})
	mux.Handle("GET    /live", &hhttp.LiveHandler{})

	admin.RegisterWorker(mux, admin.WorkerDeps{
		Notifier:  notifyService,
		Corpus:    stack.Sitemap,
		Processor: processor,
		Log:       pingLog,
	})

	handler := hhttp.Chain(tracing.Route(mux),
		requestid.Middleware,
		tracing.Middleware,
		hhttp.Logging(logger),
		hhttp.Recover(logger),
		hhttp.MetricsMiddleware,
		hhttp.LimitRequestBody(maxEventBody),
	)

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("metrics server starting", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	return server
}
