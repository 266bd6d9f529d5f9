package feedstore

import (
	"strings"

	"newsmap/internal/domain/entity"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

const (
	taxonomyCategory = "category"
	taxonomyTag      = "post_tag"

	// newsPrefix is the namespace prefix feeds use for Google News elements.
	newsPrefix = "news"
)

// convert maps one feed entry onto a content item and its raw metadata bag.
// Entries without a link or a publication time are dropped.
func convert(it *gofeed.Item) (entity.ContentItem, map[string]string, bool) {
	if it == nil || strings.TrimSpace(it.Link) == "" {
		return entity.ContentItem{}, nil, false
	}
	published := it.PublishedParsed
	if published == nil {
		published = it.UpdatedParsed
	}
	if published == nil {
		return entity.ContentItem{}, nil, false
	}

	key := it.GUID
	if key == "" {
		key = it.Link
	}

	content := it.Content
	if content == "" {
		content = it.Description
	}

	item := entity.ContentItem{
		ID:          stableID("item", key),
		Title:       strings.TrimSpace(it.Title),
		URL:         strings.TrimSpace(it.Link),
		PublishedAt: published.UTC(),
		Content:     content,
		Status:      entity.StatusPublish,
		Type:        "post",
	}
	if name := authorName(it); name != "" {
		item.AuthorID = AuthorID(name)
	}

	// gofeed folds dc:subject into Categories; subjects become tags here.
	subjects := make(map[string]bool)
	if it.DublinCoreExt != nil {
		for _, name := range it.DublinCoreExt.Subject {
			if name = strings.TrimSpace(name); name != "" && !subjects[name] {
				subjects[name] = true
				item.Tags = append(item.Tags, entity.Term{ID: TermID(taxonomyTag, name), Name: name})
			}
		}
	}

	meta := make(map[string]string)
	for _, name := range it.Categories {
		name = strings.TrimSpace(name)
		if name == "" || subjects[name] {
			continue
		}
		if isBreakingLabel(name) {
			meta[entity.MetaBreaking] = "true"
		}
		item.Categories = append(item.Categories, entity.Term{ID: TermID(taxonomyCategory, name), Name: name})
	}

	if v := newsElement(it.Extensions, "genres"); v != "" {
		meta[entity.MetaGenre] = v
	}
	if v := newsElement(it.Extensions, "stock_tickers"); v != "" {
		meta[entity.MetaStockTickers] = v
	}
	if url, caption := discoverImage(it, content); url != "" {
		meta[entity.MetaImageURL] = url
		if caption != "" {
			meta[entity.MetaImageCaption] = caption
		}
	}
	return item, meta, true
}

func authorName(it *gofeed.Item) string {
	if len(it.Authors) > 0 && it.Authors[0] != nil && it.Authors[0].Name != "" {
		return it.Authors[0].Name
	}
	if it.Author != nil {
		return it.Author.Name
	}
	return ""
}

func isBreakingLabel(name string) bool {
	switch strings.ToLower(name) {
	case "breaking", "breaking news", "breaking-news":
		return true
	}
	return false
}

// newsElement reads <news:news><news:NAME> from an entry, the same layout the
// builder writes.
func newsElement(exts ext.Extensions, name string) string {
	for _, news := range exts[newsPrefix]["news"] {
		for _, child := range news.Children[name] {
			if v := strings.TrimSpace(child.Value); v != "" {
				return v
			}
		}
	}
	for _, e := range exts[newsPrefix][name] {
		if v := strings.TrimSpace(e.Value); v != "" {
			return v
		}
	}
	return ""
}

// discoverImage picks the featured image: the entry image, then the first
// image enclosure, then the first <img> in the body. A missing caption is
// taken from the alt text of the matching <img>.
func discoverImage(it *gofeed.Item, body string) (string, string) {
	var url, caption string
	if it.Image != nil {
		url, caption = strings.TrimSpace(it.Image.URL), strings.TrimSpace(it.Image.Title)
	}
	if url == "" {
		for _, enc := range it.Enclosures {
			if enc != nil && enc.URL != "" && strings.HasPrefix(enc.Type, "image/") {
				url = enc.URL
				break
			}
		}
	}
	if (url != "" && caption != "") || !strings.Contains(body, "<img") {
		return url, caption
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return url, caption
	}
	doc.Find("img[src]").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := strings.TrimSpace(img.AttrOr("src", ""))
		if url == "" {
			url = src
		}
		if src != url {
			return true
		}
		caption = strings.TrimSpace(img.AttrOr("alt", ""))
		return false
	})
	return url, caption
}
