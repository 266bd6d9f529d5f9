// Package entity defines the core domain entities and validation logic for the application.
// It contains the content items the sitemap is built from, the notification audit records,
// and the sitemap wire-format constants shared by the builder and the compliance validator.
package entity

import (
	"strconv"
	"strings"
	"time"
)

// StatusPublish is the only content status eligible for the sitemap.
const StatusPublish = "publish"

// Term is a category or tag attached to a content item.
type Term struct {
	ID   int64
	Name string
}

// Image is a featured image reference taken from the item's metadata bag.
type Image struct {
	URL     string
	Caption string
}

// ItemMeta holds the optional per-item fields loaded by a batch metadata fetch.
type ItemMeta struct {
	Breaking     bool
	Genre        Genre
	StockTickers []string
	Image        *Image
}

// ContentItem represents one publishable unit owned by the content store.
// The sitemap core treats it as a read-only snapshot and never mutates it.
type ContentItem struct {
	ID          int64
	Title       string
	URL         string
	PublishedAt time.Time
	Content     string
	Status      string
	Type        string
	AuthorID    int64
	Categories  []Term
	Tags        []Term
	Meta        ItemMeta
}

// Age returns how long ago the item was published relative to now.
func (c ContentItem) Age(now time.Time) time.Duration {
	return now.Sub(c.PublishedAt)
}

// Metadata keys read from the content store for every candidate item.
const (
	MetaBreaking     = "breaking_news"
	MetaGenre        = "genre"
	MetaStockTickers = "stock_tickers"
	MetaImageURL     = "featured_image_url"
	MetaImageCaption = "featured_image_caption"
)

// MetaKeys lists every metadata key the selector requests in its batch fetch.
var MetaKeys = []string{MetaBreaking, MetaGenre, MetaStockTickers, MetaImageURL, MetaImageCaption}

// Eligibility is the per-item verdict produced by the validator.
// Reasons is ordered and empty when Eligible is true.
type Eligibility struct {
	Eligible bool
	Reasons  []string
}

// ParseItemMeta converts a raw metadata bag into typed fields. Unknown or
// malformed values are dropped; ticker validation happens at build time.
func ParseItemMeta(raw map[string]string) ItemMeta {
	var m ItemMeta
	if raw == nil {
		return m
	}

	if v, err := strconv.ParseBool(strings.TrimSpace(raw[MetaBreaking])); err == nil {
		m.Breaking = v
	}
	if g, ok := ParseGenre(raw[MetaGenre]); ok {
		m.Genre = g
	}
	if v := strings.TrimSpace(raw[MetaStockTickers]); v != "" {
		m.StockTickers = strings.Split(v, ",")
	}
	if u := strings.TrimSpace(raw[MetaImageURL]); u != "" {
		m.Image = &Image{URL: u, Caption: strings.TrimSpace(raw[MetaImageCaption])}
	}
	return m
}
