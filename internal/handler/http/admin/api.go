// Package admin holds the operator routes of both processes. They assume
// a trusted internal caller and are never exposed publicly.
package admin

import (
	"context"
	"log/slog"
	"net/http"

	"newsmap/internal/handler/http/respond"
	"newsmap/internal/observability/logging"
	"newsmap/internal/repository"
	sitemapUC "newsmap/internal/usecase/sitemap"
)

// analyticsDays is how many days GET /admin/status summarises.
const analyticsDays = 7

// Documents is the part of the generation pipeline the api routes use.
type Documents interface {
	Audit(ctx context.Context) ([]sitemapUC.DocumentReport, error)
	Invalidate(ctx context.Context) error
	PageCount(ctx context.Context) (int, error)
	DocumentURL(ctx context.Context) string
}

// CacheInfo names the active cache backend.
type CacheInfo interface {
	Backend() string
}

// ValidateHandler answers GET /admin/validate with a compliance report for
// the index and every page. Violations do not change the status code.
type ValidateHandler struct {
	Docs Documents
}

func (h ValidateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Docs.Audit(r.Context())
	if err != nil {
		respond.FromError(w, err)
		return
	}

	compliant := true
	for _, rep := range reports {
		if !rep.Report.OK() {
			compliant = false
			break
		}
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"compliant": compliant,
		"documents": reports,
	})
}

// FlushHandler answers POST /admin/cache/flush.
type FlushHandler struct {
	Docs   Documents
	Logger *slog.Logger
}

func (h FlushHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.Docs.Invalidate(r.Context()); err != nil {
		respond.FromError(w, err)
		return
	}
	logging.WithRequestID(r.Context(), h.Logger).Info("sitemap cache flushed by operator")
	w.WriteHeader(http.StatusNoContent)
}

// StatusHandler answers GET /admin/status.
type StatusHandler struct {
	Docs      Documents
	Cache     CacheInfo
	Analytics repository.AnalyticsRepository
}

func (h StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	count, err := h.Docs.PageCount(ctx)
	if err != nil {
		respond.FromError(w, err)
		return
	}

	out := StatusDTO{
		CacheBackend: h.Cache.Backend(),
		PageCount:    count,
		DocumentURL:  h.Docs.DocumentURL(ctx),
		Analytics:    []DailyStatsDTO{},
	}
	if h.Analytics != nil {
		days, err := h.Analytics.Summary(ctx, analyticsDays)
		if err != nil {
			respond.FromError(w, err)
			return
		}
		out.Analytics = toDailyStatsDTOs(days)
	}
	respond.JSON(w, http.StatusOK, out)
}

// RegisterAPI mounts the api process admin routes.
func RegisterAPI(mux *http.ServeMux, docs Documents, cache CacheInfo, analytics repository.AnalyticsRepository, logger *slog.Logger) {
	mux.Handle("GET    /admin/validate", ValidateHandler{Docs: docs})
	mux.Handle("POST   /admin/cache/flush", FlushHandler{Docs: docs, Logger: logger})
	mux.Handle("GET    /admin/status", StatusHandler{Docs: docs, Cache: cache, Analytics: analytics})
}
