package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"newsmap/internal/config"
	"newsmap/internal/infra/adapter/feedstore"
	"newsmap/internal/infra/adapter/persistence/postgres"
	"newsmap/internal/infra/cache"
	"newsmap/internal/infra/notifier"
	pkgconfig "newsmap/internal/pkg/config"
	"newsmap/internal/repository"
	"newsmap/internal/resilience/circuitbreaker"
	cachelayer "newsmap/internal/usecase/cache"
	"newsmap/internal/usecase/selector"
	sitemapUC "newsmap/internal/usecase/sitemap"
	"newsmap/internal/usecase/validation"
)

// Stack is the read path both processes build: settings, content store,
// cache layer and generation pipeline.
type Stack struct {
	Options   Options
	Settings  *config.Provider
	Content   repository.ContentStore
	Cache     *cachelayer.Layer
	Analytics repository.AnalyticsRepository
	Hashes    *validation.HashWindow
	Sitemap   *sitemapUC.Service
	Artifacts *notifier.FileArtifactStore
}

// NewStack loads the settings and assembles the stack on top of database.
// component prefixes the configuration metrics ("newsmap_api").
func NewStack(ctx context.Context, opts Options, database *sql.DB, component string, logger *slog.Logger) (*Stack, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("NewStack: %w", err)
	}
	settings, err := config.Load(opts.Config, logger, pkgconfig.NewConfigMetrics(component))
	if err != nil {
		return nil, fmt.Errorf("NewStack: %w", err)
	}
	provider := config.NewProvider(*settings)

	content := newContentStore(opts, database, logger)
	layer := cachelayer.NewLayer(newDurable(opts, database),
		[]cachelayer.Probe{cache.RedisProbe(), cache.MemcachedProbe()}, logger)
	layer.Reconfigure(ctx, provider.Get())
	// The probe runs outside any request, so it must not inherit ctx's cancellation.
	probeCtx := context.WithoutCancel(ctx)
	provider.Subscribe(func(s config.Settings) { layer.Reconfigure(probeCtx, s) })

	analytics := postgres.NewAnalyticsRepo(database)
	hashes := validation.NewHashWindow()
	svc := sitemapUC.NewService(provider, selector.New(content), layer, logger,
		sitemapUC.WithAnalytics(analytics),
		sitemapUC.WithHashWindow(hashes))

	logger.Info("sitemap stack ready",
		slog.String("content_source", opts.ContentSource),
		slog.String("cache_backend", layer.Backend()),
		slog.String("index_url", svc.Builder().IndexURL()))

	return &Stack{
		Options:   opts,
		Settings:  provider,
		Content:   content,
		Cache:     layer,
		Analytics: analytics,
		Hashes:    hashes,
		Sitemap:   svc,
		Artifacts: notifier.NewFileArtifactStore(opts.ArtifactDir),
	}, nil
}

// Reload re-reads the settings file and environment and swaps them in.
// Invalid settings leave the current ones in place.
func (s *Stack) Reload(logger *slog.Logger) error {
	fresh, err := config.Load(s.Options.Config, logger, nil)
	if err != nil {
		return fmt.Errorf("Reload: %w", err)
	}
	// Keep a generated IndexNow key when the file still leaves it empty.
	current := s.Settings.Get()
	if fresh.Ping.IndexNowKey == "" {
		fresh.Ping.IndexNowKey = current.Ping.IndexNowKey
	}
	if _, err := s.Settings.Update(func(dst *config.Settings) { *dst = fresh.Clone() }); err != nil {
		return fmt.Errorf("Reload: %w", err)
	}
	return nil
}

// Close releases the cache connections.
func (s *Stack) Close() error {
	return s.Cache.Close()
}

func newContentStore(opts Options, database *sql.DB, logger *slog.Logger) repository.ContentStore {
	if opts.ContentSource == SourceFeed {
		return feedstore.New(opts.FeedURL, feedstore.WithLogger(logger))
	}
	return postgres.NewContentStore(circuitbreaker.NewDBCircuitBreaker(database))
}

func newDurable(opts Options, database *sql.DB) cachelayer.Backend {
	if opts.CacheDurable == DurableMemory {
		return cache.NewMemory()
	}
	return cache.NewPostgres(database)
}
