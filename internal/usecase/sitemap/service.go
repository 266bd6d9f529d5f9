package sitemap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"newsmap/internal/common/pagination"
	"newsmap/internal/config"
	"newsmap/internal/domain/entity"
	"newsmap/internal/observability/tracing"
	"newsmap/internal/repository"
	"newsmap/internal/usecase/selector"
	"newsmap/internal/usecase/validation"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Cache keys, relative to the cache layer's namespace.
const IndexKey = "index"

// PageKey is the cache key of page n.
func PageKey(n int) string {
	return "page-" + strconv.Itoa(n)
}

// Document kinds used as metric labels.
const (
	kindPage  = "page"
	kindIndex = "index"
)

// SettingsSource hands out the current settings snapshot.
type SettingsSource interface {
	Get() config.Settings
}

// Selector loads the ordered candidate corpus.
type Selector interface {
	Select(ctx context.Context, f selector.Filters) ([]entity.ContentItem, error)
}

// Cache stores serialized documents. Get reports a miss for absent,
// expired and unreadable entries alike.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	InvalidateAll(ctx context.Context) error
}

// Generation is the result of one full pipeline run.
type Generation struct {
	GeneratedAt time.Time
	Items       []entity.ContentItem
	Pages       []entity.DocumentPage
	Index       entity.DocumentIndex
}

// PageCount is the number of pages listed by the index.
func (g *Generation) PageCount() int {
	return g.Index.PageCount
}

// DocumentReport is the compliance report of one served document.
type DocumentReport struct {
	URL    string                  `json:"url"`
	Report entity.ComplianceReport `json:"report"`
}

// Service serves sitemap documents from the cache and regenerates them on a miss.
type Service struct {
	settings  SettingsSource
	selector  Selector
	cache     Cache
	hashes    *validation.HashWindow
	analytics repository.AnalyticsRepository
	logger    *slog.Logger
	clock     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64

	cycleMu    sync.Mutex
	cycle      *selector.Cycle
	cycleStart time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithAnalytics records daily sitemap size and cache statistics.
func WithAnalytics(repo repository.AnalyticsRepository) Option {
	return func(s *Service) { s.analytics = repo }
}

// WithHashWindow shares the duplicate-detection window with other validators.
func WithHashWindow(h *validation.HashWindow) Option {
	return func(s *Service) { s.hashes = h }
}

// NewService creates the generation pipeline.
func NewService(settings SettingsSource, sel Selector, cache Cache, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		settings: settings,
		selector: sel,
		cache:    cache,
		hashes:   validation.NewHashWindow(),
		logger:   logger,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Builder returns a builder for the current settings.
func (s *Service) Builder() *Builder {
	return NewBuilder(BuilderConfigFromSettings(s.settings.Get()))
}

// Page returns page n, from the cache when possible.
// Pages past the last one yield entity.ErrPageNotFound; page 1 always exists.
func (s *Service) Page(ctx context.Context, n int) (entity.DocumentPage, error) {
	if n < 1 {
		return entity.DocumentPage{}, entity.ErrPageNotFound
	}

	if n > 1 {
		if count, ok := s.cachedPageCount(ctx); ok && n > count {
			return entity.DocumentPage{}, entity.ErrPageNotFound
		}
	}

	if body, ok := s.lookup(ctx, kindPage, PageKey(n)); ok {
		return decodePage(n, body), nil
	}

	gen, err := s.Generate(ctx)
	if err != nil {
		return entity.DocumentPage{}, err
	}
	if n > len(gen.Pages) {
		return entity.DocumentPage{}, entity.ErrPageNotFound
	}
	return gen.Pages[n-1], nil
}

// Index returns the page index, from the cache when possible.
func (s *Service) Index(ctx context.Context) (entity.DocumentIndex, error) {
	if body, ok := s.lookup(ctx, kindIndex, IndexKey); ok {
		return decodeIndex(body), nil
	}

	gen, err := s.Generate(ctx)
	if err != nil {
		return entity.DocumentIndex{}, err
	}
	return gen.Index, nil
}

// PageCount returns the number of pages in the current corpus.
func (s *Service) PageCount(ctx context.Context) (int, error) {
	if count, ok := s.cachedPageCount(ctx); ok {
		return count, nil
	}
	gen, err := s.Generate(ctx)
	if err != nil {
		return 0, err
	}
	return gen.PageCount(), nil
}

// DocumentURL is the canonical document location submitted to indexing
// services. When the page count cannot be determined the first page is used.
func (s *Service) DocumentURL(ctx context.Context) string {
	b := s.Builder()
	count, err := s.PageCount(ctx)
	if err != nil {
		s.logger.Warn("page count unavailable, submitting first page",
			slog.Any("error", err))
		return b.PageURL(1)
	}
	return b.DocumentURL(count)
}

// Corpus selects and validates the full eligible corpus without building documents.
func (s *Service) Corpus(ctx context.Context) ([]entity.ContentItem, error) {
	settings := s.settings.Get()
	cycle, now := s.currentCycle(settings)
	items, err := s.corpus(ctx, cycle, settings, now)
	if err != nil {
		return nil, fmt.Errorf("Corpus: %w", err)
	}
	return items, nil
}

// Generate runs the full pipeline and caches every page and the index.
// Cache write failures are logged; the generated documents are still returned.
func (s *Service) Generate(ctx context.Context) (*Generation, error) {
	ctx, span := tracing.GetTracer().Start(ctx, "sitemap.generate")
	defer span.End()

	start := time.Now()
	settings := s.settings.Get()
	cycle, now := s.currentCycle(settings)

	items, err := s.corpus(ctx, cycle, settings, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "corpus selection failed")
		RecordGeneration("upstream_error", time.Since(start))
		return nil, fmt.Errorf("Generate: %w", err)
	}

	b := NewBuilder(BuilderConfigFromSettings(settings))
	perPage := settings.Selection.MaxItemsPerPage
	pageCount := pagination.CalculateTotalPages(len(items), perPage)

	gen := &Generation{GeneratedAt: now, Items: items}
	for n := 1; n <= max(pageCount, 1); n++ {
		lo, hi, _ := pagination.PageBounds(n, perPage, len(items))
		body := b.Build(items[lo:hi], now)
		s.checkCompliance(b.PageURL(n), body, perPage)
		gen.Pages = append(gen.Pages, entity.DocumentPage{
			Number:      n,
			GeneratedAt: now,
			ItemCount:   hi - lo,
			Body:        body,
		})
	}

	indexBody := b.BuildIndex(pageCount, now)
	s.checkCompliance(b.IndexURL(), indexBody, perPage)
	gen.Index = entity.DocumentIndex{PageCount: pageCount, GeneratedAt: now, Body: indexBody}

	ttl := settings.CacheTTL()
	for _, p := range gen.Pages {
		s.store(ctx, PageKey(p.Number), p.Body, ttl)
	}
	s.store(ctx, IndexKey, indexBody, ttl)

	if s.analytics != nil {
		if err := s.analytics.RecordSitemapSize(ctx, now, len(items)); err != nil {
			s.logger.Warn("failed to record sitemap size", slog.Any("error", err))
		}
	}

	span.SetAttributes(
		attribute.Int("sitemap.items", len(items)),
		attribute.Int("sitemap.pages", pageCount),
	)
	RecordGeneration("success", time.Since(start))

	s.logger.Info("sitemap generated",
		slog.Int("items", len(items)),
		slog.Int("pages", pageCount),
		slog.Duration("duration", time.Since(start)))

	return gen, nil
}

// Invalidate drops every cached document and ends the generation cycle.
func (s *Service) Invalidate(ctx context.Context) error {
	s.cycleMu.Lock()
	s.cycle = nil
	s.cycleMu.Unlock()

	if err := s.cache.InvalidateAll(ctx); err != nil {
		return fmt.Errorf("Invalidate: %w", err)
	}
	return nil
}

// Audit validates the index and every page as currently served.
func (s *Service) Audit(ctx context.Context) ([]DocumentReport, error) {
	settings := s.settings.Get()
	b := NewBuilder(BuilderConfigFromSettings(settings))
	limit := settings.Selection.MaxItemsPerPage

	index, err := s.Index(ctx)
	if err != nil {
		return nil, fmt.Errorf("Audit: %w", err)
	}
	reports := []DocumentReport{{
		URL:    b.IndexURL(),
		Report: validation.ValidateDocument(index.Body, limit),
	}}

	for n := 1; n <= max(index.PageCount, 1); n++ {
		page, err := s.Page(ctx, n)
		if errors.Is(err, entity.ErrPageNotFound) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("Audit: %w", err)
		}
		reports = append(reports, DocumentReport{
			URL:    b.PageURL(n),
			Report: validation.ValidateDocument(page.Body, limit),
		})
	}
	return reports, nil
}

// FlushStats writes the cache hit and miss counts accumulated since the
// last flush to the daily analytics.
func (s *Service) FlushStats(ctx context.Context) error {
	if s.analytics == nil {
		return nil
	}
	hits, misses := s.hits.Swap(0), s.misses.Swap(0)
	if hits == 0 && misses == 0 {
		return nil
	}
	if err := s.analytics.RecordCache(ctx, s.clock(), int(hits), int(misses)); err != nil {
		s.hits.Add(hits)
		s.misses.Add(misses)
		return fmt.Errorf("FlushStats: %w", err)
	}
	return nil
}

// currentCycle returns the open generation cycle and its snapshot time,
// starting a new one when none is open or the cache TTL has elapsed.
// Regenerations inside a cycle select the same snapshot.
func (s *Service) currentCycle(settings config.Settings) (*selector.Cycle, time.Time) {
	now := s.clock()

	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	if s.cycle == nil || now.Sub(s.cycleStart) >= settings.CacheTTL() {
		s.cycle = selector.NewCycle(s.selector)
		s.cycleStart = now
	}
	return s.cycle, s.cycleStart
}

func (s *Service) corpus(ctx context.Context, cycle *selector.Cycle, settings config.Settings, now time.Time) ([]entity.ContentItem, error) {
	candidates, err := cycle.Select(ctx, selector.FiltersFromSettings(settings, now))
	if err != nil {
		return nil, err
	}

	v := validation.New(validation.RulesFromSettings(settings), s.hashes)
	eligible := make([]entity.ContentItem, 0, len(candidates))
	rejected := 0
	for _, item := range candidates {
		verdict := v.Validate(item, now)
		if !verdict.Eligible {
			rejected++
			s.logger.Debug("item excluded from sitemap",
				slog.Int64("item_id", item.ID),
				slog.Any("reasons", verdict.Reasons))
			continue
		}
		eligible = append(eligible, item)
	}

	RecordCorpus(len(eligible), rejected)
	return eligible, nil
}

func (s *Service) checkCompliance(url string, body []byte, limit int) {
	report := validation.ValidateDocument(body, limit)
	if report.OK() {
		return
	}
	RecordViolations(report.Kind, len(report.Violations))
	s.logger.Error("generated document is not compliant",
		slog.String("document", url),
		slog.Int("violations", len(report.Violations)),
		slog.Any("first", report.Violations[0]))
}

func (s *Service) lookup(ctx context.Context, kind, key string) ([]byte, bool) {
	body, ok := s.cache.Get(ctx, key)
	RecordRequest(kind, ok)
	if ok {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
	return body, ok
}

func (s *Service) store(ctx context.Context, key string, body []byte, ttl time.Duration) {
	if err := s.cache.Set(ctx, key, body, ttl); err != nil {
		s.logger.Warn("failed to cache sitemap document",
			slog.String("key", key),
			slog.Any("error", err))
	}
}

// cachedPageCount reads the page count from a cached index without
// counting the lookup as a document read.
func (s *Service) cachedPageCount(ctx context.Context) (int, bool) {
	body, ok := s.cache.Get(ctx, IndexKey)
	if !ok {
		return 0, false
	}
	return decodeIndex(body).PageCount, true
}

var generatedAtPattern = regexp.MustCompile(`<!-- generated-at: (\S+) -->`)

func parseGeneratedAt(body []byte) time.Time {
	m := generatedAtPattern.FindSubmatch(body)
	if m == nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, string(m[1]))
	if err != nil {
		return time.Time{}
	}
	return t
}

func decodePage(n int, body []byte) entity.DocumentPage {
	return entity.DocumentPage{
		Number:      n,
		GeneratedAt: parseGeneratedAt(body),
		ItemCount:   bytes.Count(body, []byte("<url>")),
		Body:        body,
	}
}

func decodeIndex(body []byte) entity.DocumentIndex {
	return entity.DocumentIndex{
		PageCount:   bytes.Count(body, []byte("<sitemap>")),
		GeneratedAt: parseGeneratedAt(body),
		Body:        body,
	}
}
