package notify

import (
	"context"
	"log/slog"
	"time"

	"newsmap/internal/config"
	"newsmap/internal/domain/entity"
	"newsmap/internal/handler/http/requestid"
	"newsmap/internal/observability/logging"
	"newsmap/internal/observability/tracing"
	"newsmap/internal/repository"
	"newsmap/internal/resilience/circuitbreaker"
	"newsmap/internal/usecase/validation"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// DefaultTargetTimeout bounds every call to a single target.
const DefaultTargetTimeout = 10 * time.Second

// Outcome is the result of evaluating one content item for notification.
type Outcome string

const (
	// OutcomeDispatched means a burst ran for the item.
	OutcomeDispatched Outcome = "dispatched"
	// OutcomeDeferred means the throttle window was open; the item is queued.
	OutcomeDeferred Outcome = "deferred"
	// OutcomeIneligible means the item no longer qualifies for the sitemap.
	OutcomeIneligible Outcome = "ineligible"
	// OutcomeNotFound means the content store has no such item.
	OutcomeNotFound Outcome = "not_found"
	// OutcomeFailed means the item could not be loaded.
	OutcomeFailed Outcome = "failed"
)

// SweepResult summarises one retry sweep.
type SweepResult struct {
	Candidates int `json:"candidates"`
	Dispatched int `json:"dispatched"`
	Deferred   int `json:"deferred"`
	Skipped    int `json:"skipped"`
}

// Burst triggers used as metric labels.
const (
	triggerEvent    = "event"
	triggerDeferred = "deferred"
	triggerSweep    = "sweep"
	triggerManual   = "manual"
	triggerBatch    = "batch"
)

// SettingsSource returns the settings in effect.
type SettingsSource interface {
	Get() config.Settings
}

// ContentSource reloads single items before a burst.
type ContentSource interface {
	Get(ctx context.Context, id int64) (*entity.ContentItem, error)
}

// DocumentLocator returns the canonical URL of the served sitemap.
type DocumentLocator interface {
	DocumentURL(ctx context.Context) string
}

// Service handles search-engine notification for content changes.
type Service interface {
	// HandleContentChange evaluates a changed item and either dispatches a
	// burst, defers it behind the throttle, or skips it.
	//
	// Parameters:
	//   - ctx: Context carrying the request_id for logging
	//   - itemID: The changed content item
	//
	// Returns:
	//   - Outcome: What happened to the event (never an error)
	HandleContentChange(ctx context.Context, itemID int64) Outcome

	// ProcessDeferred re-evaluates every due deferred item and returns the
	// number of bursts dispatched.
	ProcessDeferred(ctx context.Context) int

	// Sweep retries items whose latest attempt for some target failed within
	// the lookback window. Failures are logged and audited only.
	Sweep(ctx context.Context) SweepResult

	// PingFeed notifies every configured target about the whole feed. It
	// bypasses the throttle and is audited with the feed-level item id.
	PingFeed(ctx context.Context) []entity.PingAttempt

	// SubmitBatch sends urls to the batch-capable target in one request.
	//
	// Returns:
	//   - entity.PingAttempt: The audited attempt (check Success)
	//   - error: ErrEmptyBatch or ErrNoBatchTarget when nothing was sent
	SubmitBatch(ctx context.Context, urls []string) (entity.PingAttempt, error)

	// LifetimePings returns the number of bursts since process start.
	LifetimePings() int64

	// Pending returns the number of deferred items.
	Pending() int

	// TargetHealth reports the configuration and breaker state per target.
	TargetHealth() []TargetHealth
}

// guarded pairs a target with its circuit breaker.
type guarded struct {
	Target
	breaker *circuitbreaker.CircuitBreaker
}

// service is the concrete implementation of Service interface.
type service struct {
	settings  SettingsSource
	content   ContentSource
	locator   DocumentLocator
	pingLog   repository.PingLog
	analytics repository.AnalyticsRepository
	targets   []guarded
	throttle  *Throttle
	deferred  *Deferred
	hashes    *validation.HashWindow
	logger    *slog.Logger
	clock     func() time.Time
	timeout   time.Duration
}

// Option configures the service.
type Option func(*service)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *service) { s.clock = clock }
}

// WithAnalytics records daily ping totals.
func WithAnalytics(repo repository.AnalyticsRepository) Option {
	return func(s *service) { s.analytics = repo }
}

// WithThrottle injects shared throttle state.
func WithThrottle(t *Throttle) Option {
	return func(s *service) { s.throttle = t }
}

// WithHashWindow shares duplicate-detection state with the generation
// pipeline so both paths agree on which item owns a body.
func WithHashWindow(h *validation.HashWindow) Option {
	return func(s *service) { s.hashes = h }
}

// WithTargetTimeout overrides the per-target call timeout.
func WithTargetTimeout(d time.Duration) Option {
	return func(s *service) { s.timeout = d }
}

// NewService creates a notification service over targets. Each target gets
// its own circuit breaker.
func NewService(
	settings SettingsSource,
	content ContentSource,
	locator DocumentLocator,
	pingLog repository.PingLog,
	targets []Target,
	logger *slog.Logger,
	opts ...Option,
) Service {
	s := &service{
		settings: settings,
		content:  content,
		locator:  locator,
		pingLog:  pingLog,
		throttle: NewThrottle(),
		deferred: NewDeferred(),
		hashes:   validation.NewHashWindow(),
		logger:   logger,
		clock:    time.Now,
		timeout:  DefaultTargetTimeout,
	}
	for _, t := range targets {
		s.targets = append(s.targets, guarded{
			Target:  t,
			breaker: circuitbreaker.New(circuitbreaker.TargetConfig(t.Name())),
		})
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) HandleContentChange(ctx context.Context, itemID int64) Outcome {
	ctx = requestid.Ensure(ctx)
	settings := s.settings.Get()
	return s.evaluate(ctx, itemID, settings, s.clock(), triggerEvent)
}

func (s *service) ProcessDeferred(ctx context.Context) int {
	ctx = requestid.Ensure(ctx)
	settings := s.settings.Get()
	now := s.clock()

	dispatched := 0
	for _, id := range s.deferred.PopDue(now) {
		if s.evaluate(ctx, id, settings, now, triggerDeferred) == OutcomeDispatched {
			dispatched++
		}
	}
	SetPending(s.deferred.Len())
	return dispatched
}

func (s *service) Sweep(ctx context.Context) SweepResult {
	ctx = requestid.Ensure(ctx)
	logger := logging.WithRequestID(ctx, s.logger)
	settings := s.settings.Get()
	now := s.clock()

	var result SweepResult
	ids, err := s.pingLog.RecentFailures(ctx, now.Add(-settings.RetryLookback()), settings.Retry.BatchSize)
	if err != nil {
		logger.Warn("retry sweep could not read the audit log", slog.Any("error", err))
		return result
	}

	result.Candidates = len(ids)
	for _, id := range ids {
		RecordSweepRetry()
		switch s.evaluate(ctx, id, settings, now, triggerSweep) {
		case OutcomeDispatched:
			result.Dispatched++
		case OutcomeDeferred:
			result.Deferred++
		default:
			result.Skipped++
		}
	}

	logger.Info("retry sweep finished",
		slog.Int("candidates", result.Candidates),
		slog.Int("dispatched", result.Dispatched),
		slog.Int("deferred", result.Deferred),
		slog.Int("skipped", result.Skipped))
	return result
}

func (s *service) PingFeed(ctx context.Context) []entity.PingAttempt {
	ctx = requestid.Ensure(ctx)
	sitemapURL := s.locator.DocumentURL(ctx)
	sub := Submission{
		ItemID:     entity.FeedLevelItemID,
		SitemapURL: sitemapURL,
		URLs:       []string{sitemapURL},
	}

	attempts := s.dispatch(ctx, sub, s.clock(), triggerManual)
	s.throttle.CountManual()
	SetLifetimePings(s.throttle.Lifetime())
	return attempts
}

func (s *service) SubmitBatch(ctx context.Context, urls []string) (entity.PingAttempt, error) {
	if len(urls) == 0 {
		return entity.PingAttempt{}, ErrEmptyBatch
	}
	ctx = requestid.Ensure(ctx)
	logger := logging.WithRequestID(ctx, s.logger)

	for _, t := range s.targets {
		batch, ok := t.Target.(BatchTarget)
		if !ok || !t.Enabled() || !t.Configured() {
			continue
		}

		now := s.clock()
		attempt := s.call(ctx, t, entity.FeedLevelItemID, now, func(ctx context.Context) (int, error) {
			return batch.SubmitBatch(ctx, urls)
		})
		s.record(ctx, []entity.PingAttempt{attempt}, now)
		RecordBurst(triggerBatch)

		logger.Info("batch submission finished",
			slog.String("target", t.Name()),
			slog.Int("urls", len(urls)),
			slog.Int("code", attempt.Code),
			slog.Bool("success", attempt.Success))
		return attempt, nil
	}
	return entity.PingAttempt{}, ErrNoBatchTarget
}

func (s *service) LifetimePings() int64 {
	return s.throttle.Lifetime()
}

func (s *service) Pending() int {
	return s.deferred.Len()
}

func (s *service) TargetHealth() []TargetHealth {
	out := make([]TargetHealth, 0, len(s.targets))
	for _, t := range s.targets {
		out = append(out, TargetHealth{
			Name:           t.Name(),
			Enabled:        t.Enabled(),
			Configured:     t.Configured(),
			CircuitBreaker: t.breaker.State().String(),
		})
	}
	return out
}

// evaluate reloads and re-validates one item, then either dispatches a burst
// or defers it behind the throttle.
func (s *service) evaluate(ctx context.Context, itemID int64, settings config.Settings, now time.Time, trigger string) Outcome {
	logger := logging.WithRequestID(ctx, s.logger).With(slog.Int64("item_id", itemID))

	item, err := s.content.Get(ctx, itemID)
	if err != nil {
		logger.Warn("notification skipped, item could not be loaded",
			slog.String("trigger", trigger),
			slog.Any("error", err))
		return OutcomeFailed
	}
	if item == nil {
		logger.Debug("notification skipped, item not found", slog.String("trigger", trigger))
		return OutcomeNotFound
	}

	verdict := validation.New(validation.RulesFromSettings(settings), s.hashes).Validate(*item, now)
	if !verdict.Eligible {
		logger.Debug("notification skipped, item not eligible",
			slog.String("trigger", trigger),
			slog.Any("reasons", verdict.Reasons))
		return OutcomeIneligible
	}

	interval := settings.ThrottleInterval()
	if !s.throttle.TryBegin(now, interval) {
		due := now.Add(interval)
		if next := s.throttle.NextAllowed(interval); next.After(due) {
			due = next
		}
		if s.deferred.Schedule(itemID, due) {
			RecordDeferral()
		}
		SetPending(s.deferred.Len())
		logger.Info("notification deferred by throttle",
			slog.String("trigger", trigger),
			slog.Time("due", due))
		return OutcomeDeferred
	}

	sub := Submission{
		ItemID:     itemID,
		SitemapURL: s.locator.DocumentURL(ctx),
		URLs:       []string{item.URL},
	}
	s.dispatch(ctx, sub, now, trigger)
	s.throttle.Complete(s.clock())
	SetLifetimePings(s.throttle.Lifetime())
	return OutcomeDispatched
}

// dispatch calls every enabled and configured target concurrently, one call
// per target, and audits each attempt. A failing target never cancels the
// others.
func (s *service) dispatch(ctx context.Context, sub Submission, now time.Time, trigger string) []entity.PingAttempt {
	ctx, span := tracing.GetTracer().Start(ctx, "notify.dispatch")
	defer span.End()

	logger := logging.WithRequestID(ctx, s.logger)

	active := make([]guarded, 0, len(s.targets))
	for _, t := range s.targets {
		if t.Enabled() && t.Configured() {
			active = append(active, t)
		}
	}
	SetTargetsConfigured(len(active))
	span.SetAttributes(
		attribute.Int64("notify.item_id", sub.ItemID),
		attribute.String("notify.trigger", trigger),
		attribute.Int("notify.targets", len(active)),
	)

	logger.Info("dispatching notification burst",
		slog.Int64("item_id", sub.ItemID),
		slog.String("sitemap_url", sub.SitemapURL),
		slog.String("trigger", trigger),
		slog.Int("targets", len(active)))

	attempts := make([]entity.PingAttempt, len(active))
	var g errgroup.Group
	for i, t := range active {
		g.Go(func() error {
			attempts[i] = s.call(ctx, t, sub.ItemID, now, func(ctx context.Context) (int, error) {
				return t.Submit(ctx, sub)
			})
			return nil
		})
	}
	_ = g.Wait()

	s.record(ctx, attempts, now)
	RecordBurst(trigger)
	return attempts
}

// call runs fn through the target's breaker with the per-target timeout and
// turns the result into an audit record.
func (s *service) call(ctx context.Context, t guarded, itemID int64, now time.Time, fn func(context.Context) (int, error)) entity.PingAttempt {
	logger := logging.WithRequestID(ctx, s.logger)
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	var code int
	err := t.breaker.Run(func() error {
		var err error
		code, err = fn(callCtx)
		return err
	})
	duration := time.Since(start)

	attempt := entity.PingAttempt{
		ItemID:      itemID,
		Target:      t.Name(),
		Code:        code,
		Success:     err == nil,
		Message:     "accepted",
		AttemptedAt: now,
	}
	if err != nil {
		attempt.Message = err.Error()
		outcome := "failure"
		if circuitbreaker.Rejected(err) {
			outcome = "circuit_open"
			attempt.Code = 0
		}
		RecordAttempt(t.Name(), outcome, duration)
		logger.Warn("notification target failed",
			slog.String("target", t.Name()),
			slog.Int64("item_id", itemID),
			slog.Int("code", attempt.Code),
			slog.Duration("duration", duration),
			slog.Any("error", err))
		return attempt
	}

	RecordAttempt(t.Name(), "success", duration)
	logger.Info("notification target accepted",
		slog.String("target", t.Name()),
		slog.Int64("item_id", itemID),
		slog.Int("code", code),
		slog.Duration("duration", duration))
	return attempt
}

// record appends attempts to the audit log and the daily analytics.
func (s *service) record(ctx context.Context, attempts []entity.PingAttempt, now time.Time) {
	logger := logging.WithRequestID(ctx, s.logger)

	succeeded, failed := 0, 0
	for _, a := range attempts {
		if a.Success {
			succeeded++
		} else {
			failed++
		}
		if err := s.pingLog.Append(ctx, a); err != nil {
			logger.Error("failed to append ping attempt",
				slog.String("target", a.Target),
				slog.Int64("item_id", a.ItemID),
				slog.Any("error", err))
		}
	}

	if s.analytics == nil || len(attempts) == 0 {
		return
	}
	if err := s.analytics.RecordPings(ctx, now, succeeded, failed); err != nil {
		logger.Warn("failed to record ping analytics", slog.Any("error", err))
	}
}
