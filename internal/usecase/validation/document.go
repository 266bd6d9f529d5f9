package validation

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"newsmap/internal/domain/entity"
)

// maxIndexEntries is the protocol limit on sitemaps listed by one index.
const maxIndexEntries = 50000

var (
	timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(Z|[+-]\d{2}:\d{2})$`)
	datePattern      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	languagePattern  = regexp.MustCompile(`^[a-z]{2,3}(-[a-zA-Z]{2,4})?$`)
)

type urlsetDoc struct {
	URLs []urlDoc `xml:"url"`
}

type urlDoc struct {
	Loc    string     `xml:"loc"`
	News   []newsDoc  `xml:"http://www.google.com/schemas/sitemap-news/0.9 news"`
	Images []imageDoc `xml:"http://www.google.com/schemas/sitemap-image/1.1 image"`
}

type newsDoc struct {
	Publication     *publicationDoc `xml:"publication"`
	PublicationDate string          `xml:"publication_date"`
	Title           string          `xml:"title"`
	Keywords        *string         `xml:"keywords"`
	Genres          *string         `xml:"genres"`
	StockTickers    *string         `xml:"stock_tickers"`
}

type publicationDoc struct {
	Name     string `xml:"name"`
	Language string `xml:"language"`
}

type imageDoc struct {
	Loc string `xml:"loc"`
}

type indexDoc struct {
	Sitemaps []indexEntryDoc `xml:"sitemap"`
}

type indexEntryDoc struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// ValidateDocument parses a serialized sitemap page or index and returns
// every structural violation found. pageLimit bounds the entries of a page.
func ValidateDocument(body []byte, pageLimit int) entity.ComplianceReport {
	dec := xml.NewDecoder(bytes.NewReader(body))

	root, err := firstElement(dec)
	if err != nil {
		return entity.ComplianceReport{
			Kind:       entity.KindUnknown,
			Violations: []entity.Violation{{Field: "document", Message: err.Error()}},
		}
	}

	switch root.Name.Local {
	case entity.KindURLSet:
		return validateURLSet(dec, root, pageLimit)
	case entity.KindSitemapIndex:
		return validateIndex(dec, root)
	default:
		return entity.ComplianceReport{
			Kind: entity.KindUnknown,
			Violations: []entity.Violation{{
				Field:   "root",
				Message: fmt.Sprintf("root element must be urlset or sitemapindex, got %q", root.Name.Local),
			}},
		}
	}
}

func firstElement(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return xml.StartElement{}, fmt.Errorf("document has no root element")
		}
		if err != nil {
			return xml.StartElement{}, fmt.Errorf("document is not well-formed XML: %v", err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

type collector struct {
	violations []entity.Violation
}

func (c *collector) add(entry int, field, format string, args ...any) {
	c.violations = append(c.violations, entity.Violation{Entry: entry, Field: field, Message: fmt.Sprintf(format, args...)})
}

func validateURLSet(dec *xml.Decoder, root xml.StartElement, pageLimit int) entity.ComplianceReport {
	report := entity.ComplianceReport{Kind: entity.KindURLSet}

	var doc urlsetDoc
	if err := dec.DecodeElement(&doc, &root); err != nil {
		report.Violations = []entity.Violation{{Field: "document", Message: fmt.Sprintf("document is not well-formed XML: %v", err)}}
		return report
	}
	report.EntryCount = len(doc.URLs)

	c := &collector{}
	if root.Name.Space != entity.SitemapNamespace {
		c.add(0, "urlset", "root element must use namespace %s", entity.SitemapNamespace)
	}
	if pageLimit <= 0 || pageLimit > entity.MaxURLsPerPage {
		pageLimit = entity.MaxURLsPerPage
	}
	if len(doc.URLs) > pageLimit {
		c.add(0, "url", "document has %d entries, limit is %d", len(doc.URLs), pageLimit)
	}

	for i, u := range doc.URLs {
		entry := i + 1
		if strings.TrimSpace(u.Loc) == "" {
			c.add(entry, "loc", "location is required")
		} else if err := entity.ValidateURL(strings.TrimSpace(u.Loc)); err != nil {
			c.add(entry, "loc", "location %q is invalid", u.Loc)
		}

		switch len(u.News) {
		case 0:
			c.add(entry, "news:news", "news metadata block is required")
		case 1:
			validateNews(c, entry, u.News[0])
		default:
			c.add(entry, "news:news", "only one news metadata block is allowed, got %d", len(u.News))
		}

		for _, img := range u.Images {
			if strings.TrimSpace(img.Loc) == "" {
				c.add(entry, "image:loc", "image location is required")
			}
		}
	}

	report.Violations = c.violations
	return report
}

func validateNews(c *collector, entry int, n newsDoc) {
	if n.Publication == nil {
		c.add(entry, "news:publication", "publication block is required")
	} else {
		if strings.TrimSpace(n.Publication.Name) == "" {
			c.add(entry, "news:name", "publication name is required")
		}
		if !languagePattern.MatchString(strings.TrimSpace(n.Publication.Language)) {
			c.add(entry, "news:language", "publication language %q must be an ISO 639 code", n.Publication.Language)
		}
	}

	if strings.TrimSpace(n.Title) == "" {
		c.add(entry, "news:title", "title is required")
	}

	if !validTimestamp(strings.TrimSpace(n.PublicationDate)) {
		c.add(entry, "news:publication_date", "publication date %q must be YYYY-MM-DDThh:mm:ss with Z or a UTC offset", n.PublicationDate)
	}

	if n.Keywords != nil {
		if terms := splitList(*n.Keywords); len(terms) > entity.MaxKeywords {
			c.add(entry, "news:keywords", "keywords has %d terms, limit is %d", len(terms), entity.MaxKeywords)
		}
	}

	if n.Genres != nil {
		for _, g := range splitList(*n.Genres) {
			if !entity.Genre(g).Valid() {
				c.add(entry, "news:genres", "genre %q is not recognised", g)
			}
		}
	}

	if n.StockTickers != nil {
		for _, symbol := range splitList(*n.StockTickers) {
			if !entity.ValidTicker(symbol) {
				c.add(entry, "news:stock_tickers", "stock ticker %q is invalid", symbol)
			}
		}
	}
}

func validateIndex(dec *xml.Decoder, root xml.StartElement) entity.ComplianceReport {
	report := entity.ComplianceReport{Kind: entity.KindSitemapIndex}

	var doc indexDoc
	if err := dec.DecodeElement(&doc, &root); err != nil {
		report.Violations = []entity.Violation{{Field: "document", Message: fmt.Sprintf("document is not well-formed XML: %v", err)}}
		return report
	}
	report.EntryCount = len(doc.Sitemaps)

	c := &collector{}
	if root.Name.Space != entity.SitemapNamespace {
		c.add(0, "sitemapindex", "root element must use namespace %s", entity.SitemapNamespace)
	}
	if len(doc.Sitemaps) > maxIndexEntries {
		c.add(0, "sitemap", "index has %d entries, limit is %d", len(doc.Sitemaps), maxIndexEntries)
	}
	for i, s := range doc.Sitemaps {
		entry := i + 1
		if err := entity.ValidateURL(strings.TrimSpace(s.Loc)); err != nil {
			c.add(entry, "loc", "location %q is invalid", s.Loc)
		}
		lastmod := strings.TrimSpace(s.LastMod)
		if lastmod != "" && !validTimestamp(lastmod) && !datePattern.MatchString(lastmod) {
			c.add(entry, "lastmod", "last modified %q is not a W3C datetime", s.LastMod)
		}
	}

	report.Violations = c.violations
	return report
}

func validTimestamp(s string) bool {
	if !timestampPattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
