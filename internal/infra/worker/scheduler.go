// Package worker runs the worker process's periodic jobs: the retry
// sweep, the deferred notification queue and the cache warm-up.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"newsmap/internal/handler/http/requestid"
	"newsmap/internal/handler/http/respond"
	"newsmap/internal/observability/logging"

	"github.com/robfig/cron/v3"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
	statusSkipped = "skipped"
)

// JobFunc is one run of a periodic job.
type JobFunc func(ctx context.Context) error

// Scheduler wraps a cron runner. Every run gets its own request ID and the
// configured timeout, and a run that is still going when the next tick
// arrives causes that tick to be skipped.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler in cfg's timezone.
func NewScheduler(cfg Config, logger *slog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("NewScheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		timeout: cfg.JobTimeout,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Add registers fn under name on schedule.
func (s *Scheduler) Add(name, schedule string, fn JobFunc) error {
	var running atomic.Bool
	_, err := s.cron.AddFunc(schedule, func() {
		if !running.CompareAndSwap(false, true) {
			RecordJobRun(name, statusSkipped, 0)
			s.logger.Warn("previous run still in progress, skipping", slog.String("job", name))
			return
		}
		defer running.Store(false)
		s.run(name, fn)
	})
	if err != nil {
		return fmt.Errorf("Add %s: %w", name, err)
	}
	return nil
}

// RunNow runs fn once, synchronously, with the same bookkeeping as a
// scheduled run.
func (s *Scheduler) RunNow(name string, fn JobFunc) {
	s.run(name, fn)
}

func (s *Scheduler) run(name string, fn JobFunc) {
	ctx, cancel := context.WithTimeout(requestid.Ensure(s.ctx), s.timeout)
	defer cancel()
	logger := logging.WithRequestID(ctx, s.logger).With(slog.String("job", name))

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)
	if err != nil {
		RecordJobRun(name, statusFailure, duration)
		logger.Error("job failed",
			slog.Duration("duration", duration),
			slog.String("error", respond.SanitizeError(err)))
		return
	}
	RecordJobRun(name, statusSuccess, duration)
	logger.Debug("job finished", slog.Duration("duration", duration))
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels in-flight runs and waits for them to return or for ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("Stop: %w", ctx.Err())
	}
}
