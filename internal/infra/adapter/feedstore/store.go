// Package feedstore implements the content store port on top of an RSS or
// Atom feed. It serves deployments where the publishing system exposes a feed
// but no database. The feed is fetched through a circuit breaker with retry,
// parsed with gofeed and kept as an in-memory snapshot that is refreshed
// once it is older than the refresh interval. Refreshes are conditional on
// the ETag and Last-Modified validators of the previous response.
package feedstore

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"newsmap/internal/domain/entity"
	"newsmap/internal/observability/logging"
	"newsmap/internal/repository"
	"newsmap/internal/resilience/circuitbreaker"
	"newsmap/internal/resilience/retry"

	"github.com/mmcdole/gofeed"
)

const (
	// DefaultRefreshInterval is how long a fetched snapshot is served before
	// the feed is requested again.
	DefaultRefreshInterval = time.Minute

	userAgent = "NewsmapBot"

	maxFeedBytes = 16 << 20
)

// Store is a read-only content store backed by a single feed URL.
type Store struct {
	url     string
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	retry   retry.Config
	refresh time.Duration
	now     func() time.Time
	logger  *slog.Logger

	mu       sync.Mutex
	snapshot *snapshot
}

type snapshot struct {
	fetchedAt    time.Time
	etag         string
	lastModified string
	items        []entity.ContentItem
	meta         map[int64]map[string]string
}

var _ repository.ContentStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) { s.client = c }
}

// WithRefreshInterval sets how long a snapshot stays fresh.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Store) { s.refresh = d }
}

// WithRetry overrides the fetch retry policy.
func WithRetry(cfg retry.Config) Option {
	return func(s *Store) { s.retry = cfg }
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger for refresh and breaker events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns a store reading feedURL.
func New(feedURL string, opts ...Option) *Store {
	s := &Store{
		url:     feedURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		breaker: circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		retry:   retry.FeedFetchConfig(),
		refresh: DefaultRefreshInterval,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Query(ctx context.Context, q repository.ContentQuery) ([]entity.ContentItem, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}

	matched := make([]entity.ContentItem, 0, len(snap.items))
	for _, item := range snap.items {
		if matches(item, q) {
			matched = append(matched, item)
		}
	}

	slices.SortStableFunc(matched, func(a, b entity.ContentItem) int {
		if q.PriorityFirst {
			ab, bb := isBreaking(snap.meta[a.ID]), isBreaking(snap.meta[b.ID])
			if ab != bb {
				if ab {
					return -1
				}
				return 1
			}
		}
		if c := b.PublishedAt.Compare(a.PublishedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return []entity.ContentItem{}, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (s *Store) FetchMetadata(ctx context.Context, ids []int64, keys []string) (map[int64]map[string]string, error) {
	out := make(map[int64]map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	snap, err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchMetadata: %w", err)
	}

	for _, id := range ids {
		raw, ok := snap.meta[id]
		if !ok {
			continue
		}
		picked := make(map[string]string, len(keys))
		for k, v := range raw {
			if len(keys) == 0 || slices.Contains(keys, k) {
				picked[k] = v
			}
		}
		if len(picked) > 0 {
			out[id] = picked
		}
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id int64) (*entity.ContentItem, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	for _, item := range snap.items {
		if item.ID == id {
			item.Meta = entity.ParseItemMeta(snap.meta[id])
			return &item, nil
		}
	}
	return nil, nil
}

// load returns the current snapshot, refetching the feed when it is stale.
// A failed refresh keeps serving the previous snapshot if there is one.
func (s *Store) load(ctx context.Context) (*snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	prev := s.snapshot
	if prev != nil && now.Sub(prev.fetchedAt) < s.refresh {
		return prev, nil
	}

	res, err := s.fetch(ctx, prev)
	if err != nil {
		if prev != nil {
			logging.WithRequestID(ctx, s.logger).Warn("feed refresh failed, serving previous snapshot",
				slog.String("url", s.url),
				slog.Time("fetched_at", prev.fetchedAt),
				slog.Any("error", err))
			return prev, nil
		}
		return nil, err
	}

	if res.feed == nil {
		refreshed := *prev
		refreshed.fetchedAt = now
		s.snapshot = &refreshed
		return s.snapshot, nil
	}

	snap := &snapshot{
		fetchedAt:    now,
		etag:         res.etag,
		lastModified: res.lastModified,
		meta:         make(map[int64]map[string]string),
	}
	for _, it := range res.feed.Items {
		item, meta, ok := convert(it)
		if !ok {
			continue
		}
		snap.items = append(snap.items, item)
		if len(meta) > 0 {
			snap.meta[item.ID] = meta
		}
	}
	s.snapshot = snap

	logging.WithRequestID(ctx, s.logger).Debug("feed snapshot refreshed",
		slog.String("url", s.url),
		slog.Int("items", len(snap.items)))
	return snap, nil
}

// fetchResult carries a parsed feed, or a nil feed when the upstream
// answered 304 Not Modified.
type fetchResult struct {
	feed         *gofeed.Feed
	etag         string
	lastModified string
}

// fetch retrieves the feed through the breaker with retry.
func (s *Store) fetch(ctx context.Context, prev *snapshot) (fetchResult, error) {
	var res fetchResult
	err := retry.WithBackoff(ctx, s.retry, func() error {
		var err error
		res, err = circuitbreaker.Do(s.breaker, func() (fetchResult, error) {
			return s.get(ctx, prev)
		})
		if circuitbreaker.Rejected(err) {
			logging.WithRequestID(ctx, s.logger).Warn("feed fetch rejected by circuit breaker",
				slog.String("url", s.url),
				slog.String("state", s.breaker.State().String()))
		}
		return err
	})
	if err != nil {
		return fetchResult{}, fmt.Errorf("%w: feed %s: %w", entity.ErrUpstreamUnavailable, s.url, err)
	}
	return res, nil
}

// get issues a conditional GET using the validators of the previous snapshot.
func (s *Store) get(ctx context.Context, prev *snapshot) (fetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fetchResult{}, fmt.Errorf("get: create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")
	if prev != nil {
		if prev.etag != "" {
			req.Header.Set("If-None-Match", prev.etag)
		}
		if prev.lastModified != "" {
			req.Header.Set("If-Modified-Since", prev.lastModified)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fetchResult{}, fmt.Errorf("get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotModified && prev != nil {
		return fetchResult{etag: prev.etag, lastModified: prev.lastModified}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &retry.HTTPError{StatusCode: resp.StatusCode, Message: resp.Status}
		httpErr.RetryAfter, _ = retry.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		return fetchResult{}, httpErr
	}

	feed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return fetchResult{}, fmt.Errorf("get: parse: %w", err)
	}
	return fetchResult{
		feed:         feed,
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

func matches(item entity.ContentItem, q repository.ContentQuery) bool {
	if len(q.Types) > 0 && !slices.Contains(q.Types, item.Type) {
		return false
	}
	if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, item.Status) {
		return false
	}
	if !q.PublishedSince.IsZero() && item.PublishedAt.Before(q.PublishedSince) {
		return false
	}
	if hasTerm(item.Categories, q.ExcludedCategories) || hasTerm(item.Tags, q.ExcludedTags) {
		return false
	}
	if item.AuthorID != 0 && slices.Contains(q.ExcludedAuthors, item.AuthorID) {
		return false
	}
	return true
}

func hasTerm(terms []entity.Term, ids []int64) bool {
	for _, t := range terms {
		if slices.Contains(ids, t.ID) {
			return true
		}
	}
	return false
}

func isBreaking(meta map[string]string) bool {
	return entity.ParseItemMeta(meta).Breaking
}

// stableID maps a feed identifier onto a positive int64. Zero is reserved
// for feed-level audit records.
func stableID(parts ...string) int64 {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	id := int64(h.Sum64() & math.MaxInt64)
	if id == 0 {
		id = 1
	}
	return id
}

// TermID returns the id the store assigns to a category or tag name, so
// operators can configure exclusions for feed-backed deployments.
func TermID(taxonomy, name string) int64 {
	return stableID(taxonomy, strings.ToLower(strings.TrimSpace(name)))
}

// AuthorID returns the id the store assigns to an author name.
func AuthorID(name string) int64 {
	return stableID("author", strings.ToLower(strings.TrimSpace(name)))
}
