package config

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Provider hands out immutable Settings snapshots and applies validated updates.
// Reads are lock-free; updates are serialized and fan out to subscribers
// after the new snapshot is visible.
type Provider struct {
	current atomic.Pointer[Settings]

	mu          sync.Mutex
	subscribers []func(Settings)
}

// NewProvider wraps already validated settings.
func NewProvider(s Settings) *Provider {
	p := &Provider{}
	snapshot := s.Clone()
	p.current.Store(&snapshot)
	return p
}

// Get returns a copy of the current settings.
func (p *Provider) Get() Settings {
	return p.current.Load().Clone()
}

// Update applies mutate to a copy of the current settings, validates the
// result, and publishes it. On validation failure nothing changes.
func (p *Provider) Update(mutate func(*Settings)) (Settings, error) {
	p.mu.Lock()
	next := p.current.Load().Clone()
	mutate(&next)
	next.Normalize()
	if err := next.Validate(); err != nil {
		p.mu.Unlock()
		return Settings{}, fmt.Errorf("Update: %w", err)
	}
	stored := next.Clone()
	p.current.Store(&stored)
	subs := slices.Clone(p.subscribers)
	p.mu.Unlock()

	for _, fn := range subs {
		fn(next.Clone())
	}
	return next, nil
}

// Subscribe registers fn to receive every successfully applied update.
func (p *Provider) Subscribe(fn func(Settings)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// EnsureIndexNowKey generates and stores a key when IndexNow is enabled
// without one. It returns the key in effect and whether one was generated.
func (p *Provider) EnsureIndexNowKey() (string, bool, error) {
	current := p.Get()
	if !current.Ping.IndexNowEnabled || current.Ping.IndexNowKey != "" {
		return current.Ping.IndexNowKey, false, nil
	}

	key := NewIndexNowKey()
	updated, err := p.Update(func(s *Settings) {
		if s.Ping.IndexNowKey == "" {
			s.Ping.IndexNowKey = key
		}
	})
	if err != nil {
		return "", false, err
	}
	return updated.Ping.IndexNowKey, updated.Ping.IndexNowKey == key, nil
}

// NewIndexNowKey returns a fresh 32-character hexadecimal key.
func NewIndexNowKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
