package sitemap

import (
	"strconv"
	"strings"
)

// DocumentName identifies a served document: either the index or a page.
type DocumentName struct {
	Index bool
	Page  int
}

// PageFile returns the file name of page n. Page 1 carries no number.
func PageFile(slug string, n int) string {
	if n <= 1 {
		return slug + ".xml"
	}
	return slug + "-" + strconv.Itoa(n) + ".xml"
}

// IndexFile returns the file name of the page index.
func IndexFile(slug string) string {
	return slug + "-index.xml"
}

// ParseDocumentName maps a request file name onto a document. It accepts
// "<slug>.xml", "<slug>-<n>.xml" and "<slug>-index.xml"; "<slug>-1.xml" is
// an alias of the first page.
func ParseDocumentName(slug, name string) (DocumentName, bool) {
	rest, ok := strings.CutPrefix(name, slug)
	if !ok {
		return DocumentName{}, false
	}
	rest, ok = strings.CutSuffix(rest, ".xml")
	if !ok {
		return DocumentName{}, false
	}
	if rest == "" {
		return DocumentName{Page: 1}, true
	}
	rest, ok = strings.CutPrefix(rest, "-")
	if !ok {
		return DocumentName{}, false
	}
	if rest == "index" {
		return DocumentName{Index: true}, true
	}
	if rest == "" || rest[0] == '0' || rest[0] == '+' {
		return DocumentName{}, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return DocumentName{}, false
	}
	return DocumentName{Page: n}, true
}

// PageURL is the public location of page n.
func (b *Builder) PageURL(n int) string {
	return b.cfg.BaseURL + "/" + PageFile(b.cfg.Slug, n)
}

// IndexEntryURL is the location listed for page n inside the index. Every
// page, including the first, is listed with its number.
func (b *Builder) IndexEntryURL(n int) string {
	return b.cfg.BaseURL + "/" + b.cfg.Slug + "-" + strconv.Itoa(n) + ".xml"
}

// IndexURL is the public location of the page index.
func (b *Builder) IndexURL() string {
	return b.cfg.BaseURL + "/" + IndexFile(b.cfg.Slug)
}

// DocumentURL is the canonical URL submitted to indexing services: the
// index when the corpus spans several pages, otherwise the first page.
func (b *Builder) DocumentURL(pageCount int) string {
	if pageCount > 1 {
		return b.IndexURL()
	}
	return b.PageURL(1)
}
