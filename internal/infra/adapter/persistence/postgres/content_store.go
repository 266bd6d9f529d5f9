package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"newsmap/internal/domain/entity"
	"newsmap/internal/repository"
)

// ContentStore reads content items from the content_items, content_terms,
// content_item_terms and content_meta tables.
type ContentStore struct {
	db Querier
	qb *ContentQueryBuilder
}

var _ repository.ContentStore = (*ContentStore)(nil)

// Querier is satisfied by *sql.DB and by the circuit-breaker guarded
// connection used in production.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func NewContentStore(db Querier) *ContentStore {
	return &ContentStore{db: db, qb: NewContentQueryBuilder()}
}

func scanContentItem(row interface{ Scan(...any) error }) (entity.ContentItem, error) {
	var (
		item     entity.ContentItem
		content  sql.NullString
		authorID sql.NullInt64
	)
	if err := row.Scan(
		&item.ID, &item.Title, &item.URL, &item.PublishedAt, &content,
		&item.Status, &item.Type, &authorID,
	); err != nil {
		return entity.ContentItem{}, err
	}
	item.Content = content.String
	item.AuthorID = authorID.Int64
	return item, nil
}

func (s *ContentStore) Query(ctx context.Context, q repository.ContentQuery) ([]entity.ContentItem, error) {
	query, args, err := s.qb.Build(q)
	if err != nil {
		return nil, fmt.Errorf("Query: build: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	capacity := q.Limit
	if capacity <= 0 || capacity > entity.MaxURLsPerPage {
		capacity = 64
	}
	items := make([]entity.ContentItem, 0, capacity)
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, fmt.Errorf("Query: scan: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}

	if err := s.attachTerms(ctx, items); err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}
	return items, nil
}

func (s *ContentStore) FetchMetadata(ctx context.Context, ids []int64, keys []string) (map[int64]map[string]string, error) {
	out := make(map[int64]map[string]string)
	if len(ids) == 0 {
		return out, nil
	}

	query, args, err := s.qb.BuildMetadata(ids, keys)
	if err != nil {
		return nil, fmt.Errorf("FetchMetadata: build: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("FetchMetadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			id         int64
			key, value string
		)
		if err := rows.Scan(&id, &key, &value); err != nil {
			return nil, fmt.Errorf("FetchMetadata: scan: %w", err)
		}
		if out[id] == nil {
			out[id] = make(map[string]string)
		}
		out[id][key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FetchMetadata: %w", err)
	}
	return out, nil
}

func (s *ContentStore) Get(ctx context.Context, id int64) (*entity.ContentItem, error) {
	query, args, err := s.qb.BuildGet(id)
	if err != nil {
		return nil, fmt.Errorf("Get: build: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	if !rows.Next() {
		err := rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, fmt.Errorf("Get: %w", err)
		}
		return nil, nil
	}
	item, err := scanContentItem(rows)
	_ = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	items := []entity.ContentItem{item}
	if err := s.attachTerms(ctx, items); err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	meta, err := s.FetchMetadata(ctx, []int64{id}, entity.MetaKeys)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	items[0].Meta = entity.ParseItemMeta(meta[id])
	return &items[0], nil
}

// attachTerms loads categories and tags for every item in one query.
func (s *ContentStore) attachTerms(ctx context.Context, items []entity.ContentItem) error {
	if len(items) == 0 {
		return nil
	}
	index := make(map[int64]int, len(items))
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
		index[item.ID] = i
	}

	query, args, err := s.qb.BuildTerms(ids)
	if err != nil {
		return fmt.Errorf("terms: build: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("terms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			itemID   int64
			term     entity.Term
			taxonomy string
		)
		if err := rows.Scan(&itemID, &term.ID, &term.Name, &taxonomy); err != nil {
			return fmt.Errorf("terms: scan: %w", err)
		}
		i, ok := index[itemID]
		if !ok {
			continue
		}
		switch taxonomy {
		case taxonomyCategory:
			items[i].Categories = append(items[i].Categories, term)
		case taxonomyTag:
			items[i].Tags = append(items[i].Tags, term)
		}
	}
	return rows.Err()
}
