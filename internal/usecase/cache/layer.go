// Package cache selects a document cache backend at runtime and falls back
// to the durable store when no external cache is reachable.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"newsmap/internal/config"
)

// Namespace prefixes every key written through a Layer.
const Namespace = "newsmap:sitemap:"

// ProbeTimeout bounds each reachability check during backend selection.
const ProbeTimeout = 500 * time.Millisecond

// Backend is one cache storage strategy. Implementations must treat
// expired entries as absent.
type Backend interface {
	Name() string
	// Get reports found=false with a nil error for absent or expired keys.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

// Probe connects to an optional external backend. Connect must verify the
// backend is reachable before returning it.
type Probe struct {
	Name    string
	Connect func(ctx context.Context, s config.Settings) (Backend, error)
}

type selection struct {
	backend     Backend
	fingerprint string
}

// Layer fronts the active backend. Reads never fail: backend errors are
// logged and reported as misses.
type Layer struct {
	durable Backend
	probes  []Probe
	logger  *slog.Logger

	active atomic.Pointer[selection]

	mu       sync.Mutex // serializes Reconfigure and guards previous
	previous map[string]Backend
}

// NewLayer creates a Layer that uses durable until Reconfigure selects otherwise.
func NewLayer(durable Backend, probes []Probe, logger *slog.Logger) *Layer {
	l := &Layer{durable: durable, probes: probes, logger: logger, previous: make(map[string]Backend)}
	l.active.Store(&selection{backend: durable})
	SetActiveBackend(durable.Name())
	return l
}

// Reconfigure selects the backend for s. Selection is skipped when the
// cache-relevant settings are unchanged since the last call.
func (l *Layer) Reconfigure(ctx context.Context, s config.Settings) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fingerprint := s.CacheFingerprint()
	current := l.active.Load()
	if current.fingerprint == fingerprint {
		return
	}

	next := l.choose(ctx, s)
	if next != current.backend && current.backend != l.durable {
		l.retire(current.backend, next)
	}
	l.active.Store(&selection{backend: next, fingerprint: fingerprint})
	SetActiveBackend(next.Name())

	l.logger.Info("cache backend selected",
		slog.String("backend", next.Name()),
		slog.Bool("object_cache_enabled", s.Cache.ObjectCacheEnabled))
}

func (l *Layer) choose(ctx context.Context, s config.Settings) Backend {
	if !s.Cache.ObjectCacheEnabled {
		return l.durable
	}
	for _, p := range l.probes {
		probeCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
		b, err := p.Connect(probeCtx, s)
		cancel()
		if err != nil {
			RecordProbeFailure(p.Name)
			l.logger.Warn("cache backend unreachable",
				slog.String("backend", p.Name),
				slog.Any("error", err))
			continue
		}
		return b
	}
	return l.durable
}

// retire keeps b for InvalidateAll, one backend per name. The backend it
// replaces is closed unless it is active again.
func (l *Layer) retire(b, active Backend) {
	old, ok := l.previous[b.Name()]
	l.previous[b.Name()] = b
	if !ok || old == b || old == active {
		return
	}
	if err := old.Close(); err != nil {
		l.logger.Warn("failed to close superseded cache backend",
			slog.String("backend", old.Name()),
			slog.Any("error", err))
	}
}

// Backend names the active backend.
func (l *Layer) Backend() string {
	return l.active.Load().backend.Name()
}

// Ping checks that the active backend answers a read.
func (l *Layer) Ping(ctx context.Context) error {
	b := l.active.Load().backend
	if _, _, err := b.Get(ctx, Namespace+"health"); err != nil {
		return fmt.Errorf("Ping: %s: %w", b.Name(), err)
	}
	return nil
}

// Get returns the value stored under key in the active backend.
func (l *Layer) Get(ctx context.Context, key string) ([]byte, bool) {
	b := l.active.Load().backend
	value, ok, err := b.Get(ctx, Namespace+key)
	if err != nil {
		RecordError(b.Name(), "get")
		l.logger.Warn("cache read failed, treating as miss",
			slog.String("backend", b.Name()),
			slog.String("key", key),
			slog.Any("error", err))
		ok = false
	}
	RecordLookup(b.Name(), ok)
	return value, ok
}

// Set stores value under key in the active backend.
func (l *Layer) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	b := l.active.Load().backend
	if err := b.Set(ctx, Namespace+key, value, ttl); err != nil {
		RecordError(b.Name(), "set")
		return fmt.Errorf("Set %s: %w", b.Name(), err)
	}
	return nil
}

// InvalidateAll removes every namespaced key from the active backend, from
// the last superseded backend of each name, and from the durable backend.
func (l *Layer) InvalidateAll(ctx context.Context) error {
	l.mu.Lock()
	active := l.active.Load().backend
	targets := []Backend{active}
	for _, b := range l.previous {
		if b != active {
			targets = append(targets, b)
		}
	}
	l.mu.Unlock()
	if active != l.durable {
		targets = append(targets, l.durable)
	}

	var errs []error
	for _, b := range targets {
		if err := b.DeletePrefix(ctx, Namespace); err != nil {
			RecordError(b.Name(), "invalidate")
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("InvalidateAll: %w", err)
	}
	return nil
}

// Close releases every backend the layer has used.
func (l *Layer) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	all := []Backend{l.active.Load().backend, l.durable}
	for _, b := range l.previous {
		all = append(all, b)
	}
	seen := map[Backend]bool{}
	var errs []error
	for _, b := range all {
		if seen[b] {
			continue
		}
		seen[b] = true
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
