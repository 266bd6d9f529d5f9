package events

import (
	"context"
	"log/slog"

	"newsmap/internal/config"
	"newsmap/internal/observability/logging"
	"newsmap/internal/usecase/notify"
)

// Invalidator drops every cached sitemap document.
type Invalidator interface {
	InvalidateAll(ctx context.Context) error
}

// Notifier starts the notification pipeline for one item.
type Notifier interface {
	HandleContentChange(ctx context.Context, itemID int64) notify.Outcome
}

// SettingsSource returns the settings in effect.
type SettingsSource interface {
	Get() config.Settings
}

// Result reports what processing one event did.
type Result struct {
	Invalidated bool           `json:"invalidated"`
	Notified    bool           `json:"notified"`
	Outcome     notify.Outcome `json:"outcome,omitempty"`
}

// Processor applies content-change events. It is shared by the NATS
// subscriber and the HTTP intake.
type Processor struct {
	cache    Invalidator
	notifier Notifier
	settings SettingsSource
	logger   *slog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(cache Invalidator, notifier Notifier, settings SettingsSource, logger *slog.Logger) *Processor {
	return &Processor{cache: cache, notifier: notifier, settings: settings, logger: logger}
}

// Process invalidates the cache for every change, then notifies for
// publications and, when PingOnUpdate is on, significant updates. A failed
// invalidation is logged and does not stop the notification.
func (p *Processor) Process(ctx context.Context, ev ContentChanged) Result {
	logger := logging.WithRequestID(ctx, p.logger).With(
		slog.Int64("item_id", ev.ItemID),
		slog.String("change", string(ev.Change)))

	var res Result
	if err := p.cache.InvalidateAll(ctx); err != nil {
		logger.Warn("cache invalidation failed", slog.Any("error", err))
	} else {
		res.Invalidated = true
	}

	if p.shouldNotify(ev) {
		res.Notified = true
		res.Outcome = p.notifier.HandleContentChange(ctx, ev.ItemID)
	}
	RecordEvent(ev.Change, res.Outcome)

	logger.Info("content change processed",
		slog.Bool("invalidated", res.Invalidated),
		slog.Bool("notified", res.Notified),
		slog.String("outcome", string(res.Outcome)))
	return res
}

func (p *Processor) shouldNotify(ev ContentChanged) bool {
	switch ev.Change {
	case ChangePublished:
		return true
	case ChangeUpdated:
		return ev.Significant && p.settings.Get().Ping.PingOnUpdate
	default:
		return false
	}
}
