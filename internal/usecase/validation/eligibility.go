// Package validation decides which content items may appear in the news
// sitemap and checks serialized documents against the protocol's structure.
// Both results are values: an ineligible item or a non-compliant document
// is a routine outcome, never an error.
package validation

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"newsmap/internal/config"
	"newsmap/internal/domain/entity"
	"newsmap/internal/utils/text"
)

// Rules is the eligibility policy derived from settings.
type Rules struct {
	IncludedTypes      []string
	Window             time.Duration
	MinWordCount       int
	ExcludedCategories []int64
	ExcludedTags       []int64
	ExcludedAuthors    []int64
	Quality            QualityRules
}

// QualityRules configure the advisory heuristics. All are off by default.
type QualityRules struct {
	DuplicateDetection   bool
	DuplicateWindow      time.Duration
	ThinContent          bool
	MinAvgSentenceLength int
	RequireFeaturedImage bool
}

// RulesFromSettings maps settings onto the validator's policy.
func RulesFromSettings(s config.Settings) Rules {
	return Rules{
		IncludedTypes:      s.Selection.IncludedTypes,
		Window:             s.FreshnessWindow(),
		MinWordCount:       s.Selection.MinWordCount,
		ExcludedCategories: s.Selection.ExcludedCategories,
		ExcludedTags:       s.Selection.ExcludedTags,
		ExcludedAuthors:    s.Selection.ExcludedAuthors,
		Quality: QualityRules{
			DuplicateDetection:   s.Quality.DuplicateDetection,
			DuplicateWindow:      s.DuplicateWindow(),
			ThinContent:          s.Quality.ThinContentDetection,
			MinAvgSentenceLength: s.Quality.MinAvgSentenceLength,
			RequireFeaturedImage: s.Quality.RequireFeaturedImage,
		},
	}
}

// Validator applies Rules to single items. It is safe for concurrent use.
type Validator struct {
	rules  Rules
	hashes *HashWindow
}

// New creates a Validator. hashes may be nil when duplicate detection is off;
// pass a long-lived HashWindow so duplicates are remembered across cycles.
func New(rules Rules, hashes *HashWindow) *Validator {
	if hashes == nil {
		hashes = NewHashWindow()
	}
	return &Validator{rules: rules, hashes: hashes}
}

// Validate returns the eligibility verdict for item at time now.
//
// The mandatory rules run in order and stop at the first failure:
//  1. publishable status, included type, title and publish time present
//  2. age within the freshness window (inclusive)
//  3. stripped word count at or above the minimum
//  4. no excluded category, tag or author
//  5. well-formed http(s) canonical URL
//
// Quality heuristics run only for items that pass, and report every failure.
func (v *Validator) Validate(item entity.ContentItem, now time.Time) entity.Eligibility {
	plain := text.StripHTML(item.Content)

	if reason := v.checkRules(item, plain, now); reason != "" {
		return entity.Eligibility{Eligible: false, Reasons: []string{reason}}
	}

	reasons := v.checkQuality(item, plain, now)
	return entity.Eligibility{Eligible: len(reasons) == 0, Reasons: reasons}
}

func (v *Validator) checkRules(item entity.ContentItem, plain string, now time.Time) string {
	if item.Status != entity.StatusPublish {
		return fmt.Sprintf("status %q is not publishable", item.Status)
	}
	if !slices.Contains(v.rules.IncludedTypes, item.Type) {
		return fmt.Sprintf("content type %q is not included", item.Type)
	}
	if strings.TrimSpace(item.Title) == "" {
		return "title is required"
	}
	if item.PublishedAt.IsZero() {
		return "publish time is required"
	}

	if age := item.Age(now); age > v.rules.Window {
		return fmt.Sprintf("item age %.1fh exceeds freshness window %.0fh", age.Hours(), v.rules.Window.Hours())
	}

	if words := text.CountWords(plain); words < v.rules.MinWordCount {
		return fmt.Sprintf("word count below minimum: %d < %d", words, v.rules.MinWordCount)
	}

	for _, c := range item.Categories {
		if slices.Contains(v.rules.ExcludedCategories, c.ID) {
			return fmt.Sprintf("category %d is excluded", c.ID)
		}
	}
	for _, t := range item.Tags {
		if slices.Contains(v.rules.ExcludedTags, t.ID) {
			return fmt.Sprintf("tag %d is excluded", t.ID)
		}
	}
	if slices.Contains(v.rules.ExcludedAuthors, item.AuthorID) {
		return fmt.Sprintf("author %d is excluded", item.AuthorID)
	}

	if err := entity.ValidateURL(item.URL); err != nil {
		return fmt.Sprintf("canonical URL is invalid: %v", err)
	}
	return ""
}

func (v *Validator) checkQuality(item entity.ContentItem, plain string, now time.Time) []string {
	q := v.rules.Quality
	var reasons []string

	if q.RequireFeaturedImage && (item.Meta.Image == nil || item.Meta.Image.URL == "") {
		reasons = append(reasons, "featured image is required")
	}

	if q.ThinContent {
		if avg := text.AverageSentenceLength(plain); avg < float64(q.MinAvgSentenceLength) {
			reasons = append(reasons, fmt.Sprintf("thin content: average sentence length %.1f < %d", avg, q.MinAvgSentenceLength))
		}
	}

	if q.DuplicateDetection {
		if original, dup := v.hashes.Observe(text.ContentHash(plain), item.ID, now, q.DuplicateWindow); dup {
			reasons = append(reasons, fmt.Sprintf("duplicate content of item %d", original))
		}
	}

	return reasons
}
