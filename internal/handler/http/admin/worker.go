package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"newsmap/internal/domain/entity"
	"newsmap/internal/handler/http/respond"
	"newsmap/internal/infra/events"
	"newsmap/internal/repository"
	"newsmap/internal/usecase/notify"
)

const (
	defaultPingsLimit = 50
	maxPingsLimit     = 500
)

// Notifier is the part of the notification service the worker routes use.
type Notifier interface {
	PingFeed(ctx context.Context) []entity.PingAttempt
	SubmitBatch(ctx context.Context, urls []string) (entity.PingAttempt, error)
	LifetimePings() int64
	Pending() int
	TargetHealth() []notify.TargetHealth
}

// Corpus returns the eligible items currently in the sitemap.
type Corpus interface {
	Corpus(ctx context.Context) ([]entity.ContentItem, error)
}

// EventProcessor applies a content-change event.
type EventProcessor interface {
	Process(ctx context.Context, ev events.ContentChanged) events.Result
}

// PingHandler answers POST /admin/ping with the attempts of a manual
// feed-level ping.
type PingHandler struct {
	Notifier Notifier
}

func (h PingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	attempts := h.Notifier.PingFeed(r.Context())
	respond.JSON(w, http.StatusOK, map[string]any{
		"attempts": toAttemptDTOs(attempts),
	})
}

// BatchHandler answers POST /admin/indexnow/batch by submitting every
// eligible URL in one request.
type BatchHandler struct {
	Notifier Notifier
	Corpus   Corpus
}

func (h BatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	items, err := h.Corpus.Corpus(r.Context())
	if err != nil {
		respond.FromError(w, err)
		return
	}
	urls := make([]string, 0, len(items))
	for _, item := range items {
		urls = append(urls, item.URL)
	}

	attempt, err := h.Notifier.SubmitBatch(r.Context(), urls)
	switch {
	case errors.Is(err, notify.ErrEmptyBatch):
		respond.SafeError(w, http.StatusUnprocessableEntity, fmt.Errorf("no eligible urls: %w", entity.ErrInvalidInput))
		return
	case errors.Is(err, notify.ErrNoBatchTarget):
		respond.SafeError(w, http.StatusConflict, errors.New("indexnow target not configured"))
		return
	case err != nil:
		respond.FromError(w, err)
		return
	}

	code := http.StatusOK
	if !attempt.Success {
		code = http.StatusBadGateway
	}
	respond.JSON(w, code, map[string]any{
		"urls":    len(urls),
		"attempt": toAttemptDTO(attempt),
	})
}

// EventHandler answers POST /admin/events, the HTTP intake for
// content-change events.
type EventHandler struct {
	Processor EventProcessor
}

func (h EventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		respond.SafeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	ev, err := events.Decode(data)
	if err != nil {
		events.RecordRejected()
		respond.FromError(w, err)
		return
	}
	respond.JSON(w, http.StatusAccepted, h.Processor.Process(r.Context(), ev))
}

// PingsHandler answers GET /admin/pings?limit=n.
type PingsHandler struct {
	Notifier Notifier
	Log      repository.PingLog
}

func (h PingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit := defaultPingsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPingsLimit {
			respond.SafeError(w, http.StatusBadRequest,
				fmt.Errorf("limit must be between 1 and %d", maxPingsLimit))
			return
		}
		limit = n
	}

	attempts, err := h.Log.Recent(r.Context(), limit)
	if err != nil {
		respond.FromError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, PingsDTO{
		LifetimePings: h.Notifier.LifetimePings(),
		Pending:       h.Notifier.Pending(),
		Attempts:      toAttemptDTOs(attempts),
	})
}

// TargetsHandler answers GET /health/targets.
type TargetsHandler struct {
	Notifier Notifier
}

func (h TargetsHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]any{
		"targets": h.Notifier.TargetHealth(),
	})
}

// WorkerDeps groups what the worker admin routes need.
type WorkerDeps struct {
	Notifier  Notifier
	Corpus    Corpus
	Processor EventProcessor
	Log       repository.PingLog
}

// RegisterWorker mounts the worker process admin routes.
func RegisterWorker(mux *http.ServeMux, deps WorkerDeps) {
	mux.Handle("POST   /admin/ping", PingHandler{Notifier: deps.Notifier})
	mux.Handle("POST   /admin/indexnow/batch", BatchHandler{Notifier: deps.Notifier, Corpus: deps.Corpus})
	mux.Handle("POST   /admin/events", EventHandler{Processor: deps.Processor})
	mux.Handle("GET    /admin/pings", PingsHandler{Notifier: deps.Notifier, Log: deps.Log})
	mux.Handle("GET    /health/targets", TargetsHandler{Notifier: deps.Notifier})
}
