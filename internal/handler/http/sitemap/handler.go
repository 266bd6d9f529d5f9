// Package sitemap serves the generated news sitemap documents and the
// IndexNow verification file to anonymous clients.
package sitemap

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"newsmap/internal/config"
	"newsmap/internal/domain/entity"
	"newsmap/internal/observability/logging"
	sitemapUC "newsmap/internal/usecase/sitemap"
)

const (
	contentTypeXML  = "application/xml; charset=UTF-8"
	contentTypeText = "text/plain; charset=utf-8"
	robotsTag       = "noindex, follow"

	// retryAfterSeconds is sent with 503 while the content store is down.
	retryAfterSeconds = 120
)

// Documents produces the served pages and index.
type Documents interface {
	Page(ctx context.Context, n int) (entity.DocumentPage, error)
	Index(ctx context.Context) (entity.DocumentIndex, error)
}

// Artifacts opens verification files by request name.
type Artifacts interface {
	Open(name string) ([]byte, error)
}

// SettingsSource returns the settings in effect.
type SettingsSource interface {
	Get() config.Settings
}

// Handler dispatches GET /{name} to a sitemap document or a verification
// file depending on the extension.
type Handler struct {
	Docs      Documents
	Artifacts Artifacts
	Settings  SettingsSource
	Logger    *slog.Logger
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		name = strings.TrimPrefix(r.URL.Path, "/")
	}

	switch {
	case strings.HasSuffix(name, ".xml"):
		h.serveDocument(w, r, name)
	case strings.HasSuffix(name, ".txt") && h.Artifacts != nil:
		h.serveArtifact(w, name)
	default:
		http.NotFound(w, r)
	}
}

func (h Handler) serveDocument(w http.ResponseWriter, r *http.Request, name string) {
	settings := h.Settings.Get()
	doc, ok := sitemapUC.ParseDocumentName(settings.Publication.Slug, name)
	if !ok {
		http.NotFound(w, r)
		return
	}

	var (
		body        []byte
		generatedAt time.Time
		err         error
	)
	if doc.Index {
		var index entity.DocumentIndex
		index, err = h.Docs.Index(r.Context())
		body, generatedAt = index.Body, index.GeneratedAt
	} else {
		var page entity.DocumentPage
		page, err = h.Docs.Page(r.Context(), doc.Page)
		body, generatedAt = page.Body, page.GeneratedAt
	}

	if err != nil {
		h.writeError(w, r, name, err)
		return
	}

	header := w.Header()
	header.Set("Content-Type", contentTypeXML)
	header.Set("X-Robots-Tag", robotsTag)

	// a zero modtime makes ServeContent omit Last-Modified
	var modtime time.Time
	if settings.Publication.CDNCompatibility {
		header.Set("Cache-Control", "public, max-age="+strconv.Itoa(settings.Cache.DurationSeconds))
		header.Set("Vary", "Accept-Encoding")
		modtime = generatedAt
	}
	http.ServeContent(w, r, name, modtime, bytes.NewReader(body))
}

func (h Handler) writeError(w http.ResponseWriter, r *http.Request, name string, err error) {
	switch {
	case errors.Is(err, entity.ErrPageNotFound):
		http.NotFound(w, r)
	case errors.Is(err, entity.ErrUpstreamUnavailable):
		h.logger(r.Context()).Warn("sitemap unavailable",
			slog.String("document", name),
			slog.Any("error", err))
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		w.Header().Set("Content-Type", contentTypeText)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("temporarily unavailable\n"))
	default:
		h.logger(r.Context()).Error("sitemap generation failed",
			slog.String("document", name),
			slog.Any("error", err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h Handler) serveArtifact(w http.ResponseWriter, name string) {
	data, err := h.Artifacts.Open(name)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentTypeText)
	w.Header().Set("X-Robots-Tag", "noindex")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h Handler) logger(ctx context.Context) *slog.Logger {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return logging.WithRequestID(ctx, logger)
}

// Register mounts the public document routes. limit wraps them, typically
// with the per-client rate limiter; nil leaves them unwrapped.
func Register(mux *http.ServeMux, h Handler, limit func(http.Handler) http.Handler) {
	var handler http.Handler = h
	if limit != nil {
		handler = limit(handler)
	}
	mux.Handle("GET /{name}", handler)
}
