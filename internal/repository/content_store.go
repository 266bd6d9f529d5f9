// Package repository declares the persistence ports the sitemap core depends on.
// Adapters live under internal/infra/adapter.
package repository

import (
	"context"
	"time"

	"newsmap/internal/domain/entity"
)

// ContentQuery filters the content store. Zero-valued fields do not filter.
type ContentQuery struct {
	Types              []string
	Statuses           []string
	PublishedSince     time.Time
	ExcludedCategories []int64
	ExcludedTags       []int64
	ExcludedAuthors    []int64
	// PriorityFirst orders items flagged breaking-news before the rest.
	PriorityFirst bool
	Offset        int
	// Limit of 0 means no limit.
	Limit int
}

// ContentStore is the read-only content repository.
type ContentStore interface {
	// Query returns items matching q ordered by descending publish time
	// (breaking items first when q.PriorityFirst is set). Categories and tags
	// are populated; the metadata bag is left empty.
	Query(ctx context.Context, q ContentQuery) ([]entity.ContentItem, error)
	// FetchMetadata loads the named metadata keys for every id in a single
	// round trip. Items without metadata are absent from the result.
	FetchMetadata(ctx context.Context, ids []int64, keys []string) (map[int64]map[string]string, error)
	// Get returns one item with its metadata bag populated.
	// Returns (nil, nil) if the item is not found.
	Get(ctx context.Context, id int64) (*entity.ContentItem, error)
}
