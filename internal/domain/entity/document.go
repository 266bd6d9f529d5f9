package entity

import "time"

// XML namespaces used by news sitemaps.
const (
	SitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"
	NewsNamespace    = "http://www.google.com/schemas/sitemap-news/0.9"
	ImageNamespace   = "http://www.google.com/schemas/sitemap-image/1.1"
)

// MaxURLsPerPage is the hard protocol limit on entries per sitemap page.
const MaxURLsPerPage = 1000

// MaxKeywords is the protocol limit on keyword terms per entry.
const MaxKeywords = 10

// DocumentPage is one serialized page of the sitemap. It is never mutated
// once built; the next generation supersedes it.
type DocumentPage struct {
	Number      int
	GeneratedAt time.Time
	ItemCount   int
	Body        []byte
}

// DocumentIndex lists every page when the corpus spans more than one page.
type DocumentIndex struct {
	PageCount   int
	GeneratedAt time.Time
	Body        []byte
}

// Document kinds reported by the compliance validator.
const (
	KindURLSet       = "urlset"
	KindSitemapIndex = "sitemapindex"
	KindUnknown      = "unknown"
)

// Violation is a single structural problem found in a serialized document.
// Entry is the 1-based position of the offending entry, or 0 for document-level problems.
type Violation struct {
	Entry   int    `json:"entry"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ComplianceReport is the outcome of validating a serialized document.
// A non-compliant document is a routine result, not an error.
type ComplianceReport struct {
	Kind       string      `json:"kind"`
	EntryCount int         `json:"entry_count"`
	Violations []Violation `json:"violations"`
}

// OK reports whether the document has no violations.
func (r ComplianceReport) OK() bool {
	return len(r.Violations) == 0
}
