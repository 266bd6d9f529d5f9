// Package selector turns sitemap business filters into content-store queries.
// It loads per-item metadata for the whole candidate set in one round trip
// and memoizes identical queries within a generation cycle.
package selector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"newsmap/internal/config"
	"newsmap/internal/domain/entity"
	"newsmap/internal/repository"

	"golang.org/x/sync/singleflight"
)

// Filters are the business-level selection criteria.
type Filters struct {
	Types              []string
	Window             time.Duration
	Now                time.Time
	ExcludedCategories []int64
	ExcludedTags       []int64
	ExcludedAuthors    []int64
	PriorityFirst      bool
	Offset             int
	// Limit of 0 selects every matching item.
	Limit int
}

// FiltersFromSettings builds the filters for a full-corpus selection at now.
func FiltersFromSettings(s config.Settings, now time.Time) Filters {
	return Filters{
		Types:              s.Selection.IncludedTypes,
		Window:             s.FreshnessWindow(),
		Now:                now,
		ExcludedCategories: s.Selection.ExcludedCategories,
		ExcludedTags:       s.Selection.ExcludedTags,
		ExcludedAuthors:    s.Selection.ExcludedAuthors,
		PriorityFirst:      s.Selection.BreakingNewsFirst,
	}
}

func (f Filters) key() string {
	return fmt.Sprintf("%v|%d|%d|%v|%v|%v|%t|%d|%d",
		f.Types, f.Window, f.Now.UnixNano(), f.ExcludedCategories, f.ExcludedTags, f.ExcludedAuthors,
		f.PriorityFirst, f.Offset, f.Limit)
}

// Selector queries a ContentStore.
type Selector struct {
	store repository.ContentStore
}

// New creates a Selector over store.
func New(store repository.ContentStore) *Selector {
	return &Selector{store: store}
}

// Select returns the ordered items matching f with their metadata attached.
// An empty result is not an error. Store failures wrap entity.ErrUpstreamUnavailable.
func (s *Selector) Select(ctx context.Context, f Filters) ([]entity.ContentItem, error) {
	q := repository.ContentQuery{
		Types:              f.Types,
		Statuses:           []string{entity.StatusPublish},
		ExcludedCategories: f.ExcludedCategories,
		ExcludedTags:       f.ExcludedTags,
		ExcludedAuthors:    f.ExcludedAuthors,
		PriorityFirst:      f.PriorityFirst,
		Offset:             f.Offset,
		Limit:              f.Limit,
	}
	if f.Window > 0 {
		q.PublishedSince = f.Now.Add(-f.Window)
	}

	items, err := s.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("Select: %w: %w", entity.ErrUpstreamUnavailable, err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	meta, err := s.store.FetchMetadata(ctx, ids, entity.MetaKeys)
	if err != nil {
		return nil, fmt.Errorf("Select: metadata: %w: %w", entity.ErrUpstreamUnavailable, err)
	}

	out := make([]entity.ContentItem, len(items))
	for i, item := range items {
		item.Meta = entity.ParseItemMeta(meta[item.ID])
		out[i] = item
	}
	Order(out, f.PriorityFirst)
	return out, nil
}

// Cycle returns a memoizing view for one generation cycle.
func (s *Selector) Cycle() *Cycle {
	return NewCycle(s)
}

// Source is anything that selects items for filters.
type Source interface {
	Select(ctx context.Context, f Filters) ([]entity.ContentItem, error)
}

// Cycle deduplicates identical selections. Concurrent callers with the same
// filters share one store round trip. Errors are not memoized.
type Cycle struct {
	source Source
	flight singleflight.Group

	mu   sync.Mutex
	memo map[string][]entity.ContentItem
}

// NewCycle wraps source for one generation cycle.
func NewCycle(source Source) *Cycle {
	return &Cycle{source: source, memo: make(map[string][]entity.ContentItem)}
}

// Select behaves like Selector.Select but serves repeated filters from memory.
func (c *Cycle) Select(ctx context.Context, f Filters) ([]entity.ContentItem, error) {
	key := f.key()

	c.mu.Lock()
	if items, ok := c.memo[key]; ok {
		c.mu.Unlock()
		return items, nil
	}
	c.mu.Unlock()

	v, err, _ := c.flight.Do(key, func() (any, error) {
		items, err := c.source.Select(ctx, f)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.memo[key] = items
		c.mu.Unlock()
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]entity.ContentItem), nil
}

// Order sorts items by descending publish time, ties by descending id.
// With priorityFirst, breaking items precede the rest.
func Order(items []entity.ContentItem, priorityFirst bool) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if priorityFirst && a.Meta.Breaking != b.Meta.Breaking {
			return a.Meta.Breaking
		}
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.ID > b.ID
	})
}
