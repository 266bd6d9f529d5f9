package sitemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDocumentName(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		want   DocumentName
		wantOK bool
	}{
		{name: "first page", file: "news-sitemap.xml", want: DocumentName{Page: 1}, wantOK: true},
		{name: "numbered first page", file: "news-sitemap-1.xml", want: DocumentName{Page: 1}, wantOK: true},
		{name: "page 12", file: "news-sitemap-12.xml", want: DocumentName{Page: 12}, wantOK: true},
		{name: "index", file: "news-sitemap-index.xml", want: DocumentName{Index: true}, wantOK: true},
		{name: "leading zero", file: "news-sitemap-02.xml", wantOK: false},
		{name: "page zero", file: "news-sitemap-0.xml", wantOK: false},
		{name: "negative", file: "news-sitemap--1.xml", wantOK: false},
		{name: "other slug", file: "sitemap.xml", wantOK: false},
		{name: "longer slug", file: "news-sitemap-extra.xml", wantOK: false},
		{name: "wrong extension", file: "news-sitemap.txt", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDocumentName("news-sitemap", tt.file)

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestBuilder_URLs(t *testing.T) {
	b := NewBuilder(testBuilderConfig())

	assert.Equal(t, "https://news.example.com/news-sitemap.xml", b.PageURL(1))
	assert.Equal(t, "https://news.example.com/news-sitemap-3.xml", b.PageURL(3))
	assert.Equal(t, "https://news.example.com/news-sitemap-index.xml", b.IndexURL())
	assert.Equal(t, b.PageURL(1), b.DocumentURL(0))
	assert.Equal(t, b.PageURL(1), b.DocumentURL(1))
	assert.Equal(t, b.IndexURL(), b.DocumentURL(2))
}
