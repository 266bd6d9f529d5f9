package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	pkgconfig "newsmap/internal/pkg/config"
)

// Load builds Settings from the defaults, an optional YAML file, and
// NEWSMAP_* environment overrides, in that order. Malformed environment
// values fall back to the previous value with a logged warning. The result
// is normalized and validated once; a validation failure is returned.
//
// Parameters:
//   - path: YAML settings file, or "" to skip the file layer
//   - logger: receives one warning per fallback
//   - metrics: optional, records fallbacks and the load timestamp
func Load(path string, logger *slog.Logger, metrics *pkgconfig.ConfigMetrics) (*Settings, error) {
	s := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("Load: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("Load: parse %s: %w", path, err)
		}
	}

	env := envOverlay{logger: logger, metrics: metrics}
	env.apply(&s)

	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("Load: invalid settings: %w", err)
	}

	if metrics != nil {
		metrics.RecordLoadTimestamp()
	}
	return &s, nil
}

type envOverlay struct {
	logger  *slog.Logger
	metrics *pkgconfig.ConfigMetrics
}

func (e envOverlay) report(field string, r pkgconfig.ConfigLoadResult) pkgconfig.ConfigLoadResult {
	if !r.FallbackApplied {
		return r
	}
	for _, w := range r.Warnings {
		if e.logger != nil {
			e.logger.Warn("configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", w))
		}
	}
	if e.metrics != nil {
		e.metrics.RecordFallback(field)
	}
	return r
}

func (e envOverlay) str(key string, dst *string) {
	*dst = pkgconfig.LoadEnvString(key, *dst)
}

func (e envOverlay) boolean(key string, dst *bool) {
	*dst = e.report(key, pkgconfig.LoadEnvBool(key, *dst)).Value.(bool)
}

func (e envOverlay) integer(key string, dst *int, validator func(int) error) {
	*dst = e.report(key, pkgconfig.LoadEnvInt(key, *dst, validator)).Value.(int)
}

func (e envOverlay) list(key string, dst *[]string) {
	*dst = pkgconfig.LoadEnvList(key, *dst).Value.([]string)
}

func (e envOverlay) ids(key string, dst *[]int64) {
	*dst = e.report(key, pkgconfig.LoadEnvInt64List(key, *dst)).Value.([]int64)
}

func (e envOverlay) apply(s *Settings) {
	nonNegative := func(v int) error { return pkgconfig.ValidateIntRange(v, 0, 1<<30) }
	positive := func(v int) error { return pkgconfig.ValidateIntRange(v, 1, 1<<30) }

	e.str("NEWSMAP_PUBLICATION_NAME", &s.Publication.Name)
	e.str("NEWSMAP_LOCALE", &s.Publication.Locale)
	e.str("NEWSMAP_BASE_URL", &s.Publication.BaseURL)
	e.str("NEWSMAP_SLUG", &s.Publication.Slug)
	e.str("NEWSMAP_DEFAULT_GENRE", &s.Publication.DefaultGenre)
	e.boolean("NEWSMAP_IMAGE_SITEMAP", &s.Publication.ImageSitemap)
	e.boolean("NEWSMAP_CDN_COMPATIBILITY", &s.Publication.CDNCompatibility)

	e.integer("NEWSMAP_TIME_LIMIT_HOURS", &s.Selection.FreshnessWindowHours, positive)
	e.integer("NEWSMAP_MAX_URLS", &s.Selection.MaxItemsPerPage, positive)
	e.integer("NEWSMAP_MIN_WORD_COUNT", &s.Selection.MinWordCount, nonNegative)
	e.list("NEWSMAP_POST_TYPES", &s.Selection.IncludedTypes)
	e.ids("NEWSMAP_EXCLUDE_CATEGORIES", &s.Selection.ExcludedCategories)
	e.ids("NEWSMAP_EXCLUDE_TAGS", &s.Selection.ExcludedTags)
	e.ids("NEWSMAP_EXCLUDE_AUTHORS", &s.Selection.ExcludedAuthors)
	e.boolean("NEWSMAP_BREAKING_NEWS_FIRST", &s.Selection.BreakingNewsFirst)

	e.boolean("NEWSMAP_QUALITY_DUPLICATE_DETECTION", &s.Quality.DuplicateDetection)
	e.integer("NEWSMAP_QUALITY_DUPLICATE_WINDOW_HOURS", &s.Quality.DuplicateWindowHours, positive)
	e.boolean("NEWSMAP_QUALITY_THIN_CONTENT_DETECTION", &s.Quality.ThinContentDetection)
	e.integer("NEWSMAP_QUALITY_MIN_AVG_SENTENCE_LENGTH", &s.Quality.MinAvgSentenceLength, positive)
	e.boolean("NEWSMAP_QUALITY_REQUIRE_FEATURED_IMAGE", &s.Quality.RequireFeaturedImage)

	e.integer("NEWSMAP_CACHE_DURATION", &s.Cache.DurationSeconds, positive)
	e.boolean("NEWSMAP_OBJECT_CACHE", &s.Cache.ObjectCacheEnabled)
	e.str("NEWSMAP_REDIS_URL", &s.Cache.RedisURL)
	e.str("NEWSMAP_MEMCACHED_ADDR", &s.Cache.MemcachedAddr)

	e.boolean("NEWSMAP_PING_GOOGLE", &s.Ping.GoogleEnabled)
	e.str("NEWSMAP_PING_GOOGLE_ENDPOINT", &s.Ping.GoogleEndpoint)
	e.boolean("NEWSMAP_PING_BING", &s.Ping.BingEnabled)
	e.str("NEWSMAP_PING_BING_ENDPOINT", &s.Ping.BingEndpoint)
	e.boolean("NEWSMAP_INDEXNOW", &s.Ping.IndexNowEnabled)
	e.str("NEWSMAP_INDEXNOW_KEY", &s.Ping.IndexNowKey)
	e.str("NEWSMAP_INDEXNOW_ENDPOINT", &s.Ping.IndexNowEndpoint)
	e.boolean("NEWSMAP_SEARCH_CONSOLE", &s.Ping.ConsoleEnabled)
	e.str("NEWSMAP_SEARCH_CONSOLE_CREDENTIALS", &s.Ping.ConsoleCredentialsFile)
	e.str("NEWSMAP_SEARCH_CONSOLE_SITE_URL", &s.Ping.ConsoleSiteURL)
	e.integer("NEWSMAP_PING_THROTTLE", &s.Ping.ThrottleSeconds, nonNegative)
	e.boolean("NEWSMAP_PING_ON_UPDATE", &s.Ping.PingOnUpdate)

	e.integer("NEWSMAP_RETRY_LOOKBACK_HOURS", &s.Retry.LookbackHours, positive)
	e.integer("NEWSMAP_RETRY_BATCH_SIZE", &s.Retry.BatchSize, positive)
}
