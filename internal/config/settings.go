// Package config holds the typed settings shared by every sitemap component,
// their documented defaults, and the provider that hands out snapshots and
// notifies subscribers when settings change.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"newsmap/internal/domain/entity"
	pkgconfig "newsmap/internal/pkg/config"
)

// Hard limits enforced by Normalize regardless of what the operator configures.
const (
	MaxFreshnessWindowHours = 48
	MaxRetryBatchSize       = 100
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Settings is the complete, typed configuration of the sitemap service.
// Zero values are never used directly: start from Default and override.
type Settings struct {
	Publication PublicationSettings `yaml:"publication"`
	Selection   SelectionSettings   `yaml:"selection"`
	Quality     QualitySettings     `yaml:"quality"`
	Cache       CacheSettings       `yaml:"cache"`
	Ping        PingSettings        `yaml:"ping"`
	Retry       RetrySettings       `yaml:"retry"`
}

// PublicationSettings describe the publisher and the public document location.
type PublicationSettings struct {
	Name             string `yaml:"name"`
	Locale           string `yaml:"locale"`
	BaseURL          string `yaml:"base_url"`
	Slug             string `yaml:"slug"`
	DefaultGenre     string `yaml:"default_genre"`
	ImageSitemap     bool   `yaml:"image_sitemap"`
	CDNCompatibility bool   `yaml:"cdn_compatibility"`
}

// SelectionSettings control which items are eligible and how they are ordered.
type SelectionSettings struct {
	FreshnessWindowHours int      `yaml:"freshness_window_hours"`
	MaxItemsPerPage      int      `yaml:"max_items_per_page"`
	MinWordCount         int      `yaml:"min_word_count"`
	IncludedTypes        []string `yaml:"included_types"`
	ExcludedCategories   []int64  `yaml:"excluded_categories"`
	ExcludedTags         []int64  `yaml:"excluded_tags"`
	ExcludedAuthors      []int64  `yaml:"excluded_authors"`
	BreakingNewsFirst    bool     `yaml:"breaking_news_first"`
}

// QualitySettings toggle the advisory content-quality heuristics.
type QualitySettings struct {
	DuplicateDetection   bool `yaml:"duplicate_detection"`
	DuplicateWindowHours int  `yaml:"duplicate_window_hours"`
	ThinContentDetection bool `yaml:"thin_content_detection"`
	MinAvgSentenceLength int  `yaml:"min_avg_sentence_length"`
	RequireFeaturedImage bool `yaml:"require_featured_image"`
}

// CacheSettings control document caching and the external backend opt-in.
type CacheSettings struct {
	DurationSeconds    int    `yaml:"duration_seconds"`
	ObjectCacheEnabled bool   `yaml:"object_cache_enabled"`
	RedisURL           string `yaml:"redis_url"`
	MemcachedAddr      string `yaml:"memcached_addr"`
}

// PingSettings configure every notification target and the global throttle.
type PingSettings struct {
	GoogleEnabled          bool   `yaml:"google_enabled"`
	GoogleEndpoint         string `yaml:"google_endpoint"`
	BingEnabled            bool   `yaml:"bing_enabled"`
	BingEndpoint           string `yaml:"bing_endpoint"`
	IndexNowEnabled        bool   `yaml:"indexnow_enabled"`
	IndexNowKey            string `yaml:"indexnow_key"`
	IndexNowEndpoint       string `yaml:"indexnow_endpoint"`
	ConsoleEnabled         bool   `yaml:"console_enabled"`
	ConsoleCredentialsFile string `yaml:"console_credentials_file"`
	ConsoleSiteURL         string `yaml:"console_site_url"`
	ThrottleSeconds        int    `yaml:"throttle_seconds"`
	PingOnUpdate           bool   `yaml:"ping_on_update"`
}

// RetrySettings bound the retry sweep.
type RetrySettings struct {
	LookbackHours int `yaml:"lookback_hours"`
	BatchSize     int `yaml:"batch_size"`
}

// Default returns the documented defaults.
func Default() Settings {
	return Settings{
		Publication: PublicationSettings{
			Name:         "Newsroom",
			Locale:       "en_US",
			BaseURL:      "http://localhost:8080",
			Slug:         "news-sitemap",
			DefaultGenre: string(entity.GenreBlog),
			ImageSitemap: true,
		},
		Selection: SelectionSettings{
			FreshnessWindowHours: 48,
			MaxItemsPerPage:      entity.MaxURLsPerPage,
			MinWordCount:         80,
			IncludedTypes:        []string{"post"},
			BreakingNewsFirst:    true,
		},
		Quality: QualitySettings{
			DuplicateWindowHours: 24,
			MinAvgSentenceLength: 15,
		},
		Cache: CacheSettings{
			DurationSeconds: 1800,
			RedisURL:        "redis://127.0.0.1:6379/0",
			MemcachedAddr:   "127.0.0.1:11211",
		},
		Ping: PingSettings{
			GoogleEnabled:    true,
			GoogleEndpoint:   "https://www.google.com/ping",
			BingEnabled:      true,
			BingEndpoint:     "https://www.bing.com/ping",
			IndexNowEndpoint: "https://api.indexnow.org/indexnow",
			ThrottleSeconds:  60,
			PingOnUpdate:     true,
		},
		Retry: RetrySettings{
			LookbackHours: 24,
			BatchSize:     10,
		},
	}
}

// Normalize clamps values to their hard ceilings. It is applied before Validate
// so an operator asking for 5000 URLs per page silently gets the protocol maximum.
func (s *Settings) Normalize() {
	if s.Selection.MaxItemsPerPage > entity.MaxURLsPerPage {
		s.Selection.MaxItemsPerPage = entity.MaxURLsPerPage
	}
	if s.Selection.FreshnessWindowHours > MaxFreshnessWindowHours {
		s.Selection.FreshnessWindowHours = MaxFreshnessWindowHours
	}
	if s.Retry.BatchSize > MaxRetryBatchSize {
		s.Retry.BatchSize = MaxRetryBatchSize
	}
	s.Publication.BaseURL = strings.TrimRight(s.Publication.BaseURL, "/")
	s.Ping.IndexNowKey = strings.TrimSpace(s.Ping.IndexNowKey)
}

// Validate checks every field and returns all problems joined into one error.
// A nil return means the settings are safe to hand to every component.
func (s *Settings) Validate() error {
	var errs []error
	add := func(field, msg string) {
		errs = append(errs, &entity.ValidationError{Field: field, Message: msg})
	}

	if strings.TrimSpace(s.Publication.Name) == "" {
		add("publication.name", "publication name is required")
	}
	if len(s.Language()) != 2 {
		add("publication.locale", fmt.Sprintf("locale %q must start with a two-letter language code", s.Publication.Locale))
	}
	if err := pkgconfig.ValidateAbsoluteURL(s.Publication.BaseURL); err != nil {
		add("publication.base_url", err.Error())
	}
	if !slugPattern.MatchString(s.Publication.Slug) {
		add("publication.slug", fmt.Sprintf("slug %q must be lowercase letters, digits and dashes", s.Publication.Slug))
	}
	if s.Publication.DefaultGenre != "" && !entity.Genre(s.Publication.DefaultGenre).Valid() {
		add("publication.default_genre", fmt.Sprintf("genre %q is invalid", s.Publication.DefaultGenre))
	}

	if err := pkgconfig.ValidateIntRange(s.Selection.FreshnessWindowHours, 1, MaxFreshnessWindowHours); err != nil {
		add("selection.freshness_window_hours", err.Error())
	}
	if err := pkgconfig.ValidateIntRange(s.Selection.MaxItemsPerPage, 1, entity.MaxURLsPerPage); err != nil {
		add("selection.max_items_per_page", err.Error())
	}
	if s.Selection.MinWordCount < 0 {
		add("selection.min_word_count", "must be zero or positive")
	}
	if len(s.Selection.IncludedTypes) == 0 {
		add("selection.included_types", "at least one content type is required")
	}

	if s.Quality.DuplicateDetection && s.Quality.DuplicateWindowHours <= 0 {
		add("quality.duplicate_window_hours", "must be positive when duplicate detection is enabled")
	}
	if s.Quality.ThinContentDetection && s.Quality.MinAvgSentenceLength <= 0 {
		add("quality.min_avg_sentence_length", "must be positive when thin content detection is enabled")
	}

	if s.Cache.DurationSeconds <= 0 {
		add("cache.duration_seconds", "must be positive")
	}

	endpoints := []struct{ field, url string }{
		{"ping.google_endpoint", s.Ping.GoogleEndpoint},
		{"ping.bing_endpoint", s.Ping.BingEndpoint},
		{"ping.indexnow_endpoint", s.Ping.IndexNowEndpoint},
	}
	for _, e := range endpoints {
		if err := pkgconfig.ValidateAbsoluteURL(e.url); err != nil {
			add(e.field, err.Error())
		}
	}
	if s.Ping.ThrottleSeconds < 0 {
		add("ping.throttle_seconds", "must be zero or positive")
	}

	if s.Retry.LookbackHours <= 0 {
		add("retry.lookback_hours", "must be positive")
	}
	if err := pkgconfig.ValidateIntRange(s.Retry.BatchSize, 1, MaxRetryBatchSize); err != nil {
		add("retry.batch_size", err.Error())
	}

	return errors.Join(errs...)
}

// Language derives the two-letter publication language from the locale (en_US -> en).
func (s Settings) Language() string {
	lang, _, _ := strings.Cut(s.Publication.Locale, "_")
	lang, _, _ = strings.Cut(lang, "-")
	return strings.ToLower(lang)
}

// FreshnessWindow is the maximum item age.
func (s Settings) FreshnessWindow() time.Duration {
	return time.Duration(s.Selection.FreshnessWindowHours) * time.Hour
}

// CacheTTL is the lifetime of a cached document.
func (s Settings) CacheTTL() time.Duration {
	return time.Duration(s.Cache.DurationSeconds) * time.Second
}

// ThrottleInterval is the minimum spacing between notification bursts.
func (s Settings) ThrottleInterval() time.Duration {
	return time.Duration(s.Ping.ThrottleSeconds) * time.Second
}

// RetryLookback is the audit-log window the retry sweep inspects.
func (s Settings) RetryLookback() time.Duration {
	return time.Duration(s.Retry.LookbackHours) * time.Hour
}

// DuplicateWindow is how long a content hash is remembered.
func (s Settings) DuplicateWindow() time.Duration {
	return time.Duration(s.Quality.DuplicateWindowHours) * time.Hour
}

// CacheFingerprint identifies the settings that affect backend selection.
// The cache layer re-probes only when it changes.
func (s Settings) CacheFingerprint() string {
	return fmt.Sprintf("%t|%s|%s", s.Cache.ObjectCacheEnabled, s.Cache.RedisURL, s.Cache.MemcachedAddr)
}

// Clone returns a deep copy so callers can mutate slices safely.
func (s Settings) Clone() Settings {
	c := s
	c.Selection.IncludedTypes = append([]string(nil), s.Selection.IncludedTypes...)
	c.Selection.ExcludedCategories = append([]int64(nil), s.Selection.ExcludedCategories...)
	c.Selection.ExcludedTags = append([]int64(nil), s.Selection.ExcludedTags...)
	c.Selection.ExcludedAuthors = append([]int64(nil), s.Selection.ExcludedAuthors...)
	return c
}
