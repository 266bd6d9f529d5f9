// Package sitemap serializes selected content into news sitemap documents
// and runs the cached generation pipeline behind the public read path.
package sitemap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"newsmap/internal/config"
	"newsmap/internal/domain/entity"
)

// BuilderConfig is the publication-level input to every document.
type BuilderConfig struct {
	PublicationName string
	Language        string
	BaseURL         string
	Slug            string
	DefaultGenre    entity.Genre
	Images          bool
}

// BuilderConfigFromSettings maps settings onto the builder's configuration.
func BuilderConfigFromSettings(s config.Settings) BuilderConfig {
	return BuilderConfig{
		PublicationName: s.Publication.Name,
		Language:        s.Language(),
		BaseURL:         strings.TrimRight(s.Publication.BaseURL, "/"),
		Slug:            s.Publication.Slug,
		DefaultGenre:    entity.Genre(s.Publication.DefaultGenre),
		Images:          s.Publication.ImageSitemap,
	}
}

// Builder is a pure transform from items to XML. It performs no I/O and
// holds no state besides its configuration, so it is safe for concurrent use.
type Builder struct {
	cfg BuilderConfig
}

// NewBuilder creates a Builder.
func NewBuilder(cfg BuilderConfig) *Builder {
	return &Builder{cfg: cfg}
}

// Config returns the builder's configuration.
func (b *Builder) Config() BuilderConfig {
	return b.cfg
}

// Build serializes items as one urlset page. Items are written in the
// order given; callers are expected to pass eligible items only.
func (b *Builder) Build(items []entity.ContentItem, generatedAt time.Time) []byte {
	var buf bytes.Buffer

	writeHeader(&buf, generatedAt)
	buf.WriteString(`<urlset xmlns="` + entity.SitemapNamespace + `" xmlns:news="` + entity.NewsNamespace + `"`)
	if b.cfg.Images {
		buf.WriteString(` xmlns:image="` + entity.ImageNamespace + `"`)
	}
	buf.WriteString(">\n")

	for _, item := range items {
		b.writeURL(&buf, item)
	}

	buf.WriteString("</urlset>\n")
	return buf.Bytes()
}

// BuildIndex serializes a sitemapindex listing pages 1..pageCount.
func (b *Builder) BuildIndex(pageCount int, generatedAt time.Time) []byte {
	var buf bytes.Buffer

	writeHeader(&buf, generatedAt)
	buf.WriteString(`<sitemapindex xmlns="` + entity.SitemapNamespace + `">` + "\n")

	lastmod := formatTime(generatedAt)
	for n := 1; n <= pageCount; n++ {
		buf.WriteString("  <sitemap>\n")
		writeElement(&buf, "loc", b.IndexEntryURL(n), 4)
		writeElement(&buf, "lastmod", lastmod, 4)
		buf.WriteString("  </sitemap>\n")
	}

	buf.WriteString("</sitemapindex>\n")
	return buf.Bytes()
}

func (b *Builder) writeURL(buf *bytes.Buffer, item entity.ContentItem) {
	buf.WriteString("  <url>\n")
	writeElement(buf, "loc", item.URL, 4)

	buf.WriteString("    <news:news>\n")
	buf.WriteString("      <news:publication>\n")
	writeElement(buf, "news:name", b.cfg.PublicationName, 8)
	writeElement(buf, "news:language", b.cfg.Language, 8)
	buf.WriteString("      </news:publication>\n")
	writeElement(buf, "news:publication_date", formatTime(item.PublishedAt), 6)
	writeElement(buf, "news:title", item.Title, 6)
	writeElement(buf, "news:keywords", strings.Join(Keywords(item), ", "), 6)
	if genre := b.genre(item); genre != "" {
		writeElement(buf, "news:genres", string(genre), 6)
	}
	if tickers, err := entity.NormalizeTickers(item.Meta.StockTickers); err == nil {
		writeElement(buf, "news:stock_tickers", strings.Join(tickers, ", "), 6)
	}
	buf.WriteString("    </news:news>\n")

	if img := item.Meta.Image; b.cfg.Images && img != nil && entity.ValidateURL(img.URL) == nil {
		caption := img.Caption
		if strings.TrimSpace(caption) == "" {
			caption = item.Title
		}
		buf.WriteString("    <image:image>\n")
		writeElement(buf, "image:loc", img.URL, 6)
		writeElement(buf, "image:caption", caption, 6)
		buf.WriteString("    </image:image>\n")
	}

	buf.WriteString("  </url>\n")
}

// genre returns the item's own genre, else the configured default.
// An invalid value yields "" and the element is omitted.
func (b *Builder) genre(item entity.ContentItem) entity.Genre {
	g := item.Meta.Genre
	if g == "" {
		g = b.cfg.DefaultGenre
	}
	if !g.Valid() {
		return ""
	}
	return g
}

// Keywords lists tag names followed by category names, de-duplicated
// case-insensitively and capped at entity.MaxKeywords. Commas are removed
// from names because the element is comma-delimited.
func Keywords(item entity.ContentItem) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, terms := range [][]entity.Term{item.Tags, item.Categories} {
		for _, t := range terms {
			name := strings.TrimSpace(strings.ReplaceAll(t.Name, ",", ""))
			if name == "" {
				continue
			}
			key := strings.ToLower(name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, name)
			if len(out) == entity.MaxKeywords {
				return out
			}
		}
	}
	return out
}

const generatedAtPrefix = "<!-- generated-at: "

func writeHeader(buf *bytes.Buffer, generatedAt time.Time) {
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(buf, "%s%s -->\n", generatedAtPrefix, formatTime(generatedAt))
}

func writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	_ = xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
