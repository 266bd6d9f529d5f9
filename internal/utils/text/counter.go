// Package text provides utilities for text processing and analysis.
// The sitemap validator uses it to measure item bodies: HTML stripping,
// word counts, sentence statistics and content hashing.
package text

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// StripHTML returns the visible text of an HTML fragment. Script and style
// contents are dropped. Input that is not HTML is returned unchanged apart
// from whitespace collapsing.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return collapseSpace(fragment)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapseSpace(fragment)
	}
	doc.Find("script, style, noscript").Remove()

	// Block elements would otherwise glue adjacent words together.
	doc.Find("p, br, div, li, h1, h2, h3, h4, h5, h6, blockquote, tr").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	return collapseSpace(doc.Text())
}

// CountWords counts whitespace-separated tokens that contain at least one
// letter or digit, so stray punctuation is not counted as a word.
func CountWords(plain string) int {
	count := 0
	for _, field := range strings.Fields(plain) {
		if strings.IndexFunc(field, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsNumber(r) }) >= 0 {
			count++
		}
	}
	return count
}

// AverageSentenceLength returns the mean length in runes of the sentences
// in plain, splitting on terminal punctuation. Returns 0 when there is no sentence.
func AverageSentenceLength(plain string) float64 {
	sentences := strings.FieldsFunc(plain, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '。'
	})

	total, n := 0, 0
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		total += utf8.RuneCountInString(s)
		n++
	}
	if n == 0 {
		return 0
	}
	return float64(total) / float64(n)
}

// ContentHash returns a hex md5 digest of plain after case folding and
// whitespace collapsing, so trivially reformatted copies hash equally.
func ContentHash(plain string) string {
	sum := md5.Sum([]byte(strings.ToLower(collapseSpace(plain))))
	return hex.EncodeToString(sum[:])
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
