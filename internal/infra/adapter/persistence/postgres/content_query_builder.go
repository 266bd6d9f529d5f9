// Package postgres provides PostgreSQL implementations of repository interfaces.
package postgres

import (
	sq "github.com/Masterminds/squirrel"

	"newsmap/internal/domain/entity"
	"newsmap/internal/repository"
)

// Taxonomies stored in content_terms.taxonomy.
const (
	taxonomyCategory = "category"
	taxonomyTag      = "tag"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var contentColumns = []string{
	"c.id", "c.title", "c.url", "c.published_at", "c.content",
	"c.status", "c.content_type", "c.author_id",
}

// ContentQueryBuilder turns a repository.ContentQuery into SQL.
// Zero-valued filters add no condition. Exclusions are NOT EXISTS
// subqueries so an item with several terms is never duplicated.
type ContentQueryBuilder struct{}

// NewContentQueryBuilder creates a new query builder instance.
func NewContentQueryBuilder() *ContentQueryBuilder {
	return &ContentQueryBuilder{}
}

// Build returns the SELECT statement and its arguments.
func (qb *ContentQueryBuilder) Build(q repository.ContentQuery) (string, []interface{}, error) {
	b := psql.Select(contentColumns...).From("content_items c")

	if len(q.Types) > 0 {
		b = b.Where(sq.Eq{"c.content_type": q.Types})
	}
	if len(q.Statuses) > 0 {
		b = b.Where(sq.Eq{"c.status": q.Statuses})
	}
	if !q.PublishedSince.IsZero() {
		b = b.Where(sq.GtOrEq{"c.published_at": q.PublishedSince})
	}
	if len(q.ExcludedCategories) > 0 {
		b = b.Where(withoutTerms(taxonomyCategory, q.ExcludedCategories))
	}
	if len(q.ExcludedTags) > 0 {
		b = b.Where(withoutTerms(taxonomyTag, q.ExcludedTags))
	}
	if len(q.ExcludedAuthors) > 0 {
		// NOT IN alone drops rows with no author.
		b = b.Where(sq.Or{sq.Eq{"c.author_id": nil}, sq.NotEq{"c.author_id": q.ExcludedAuthors}})
	}

	if q.PriorityFirst {
		b = b.LeftJoin("content_meta bm ON bm.item_id = c.id AND bm.meta_key = ?", entity.MetaBreaking).
			OrderBy("COALESCE(LOWER(bm.meta_value) IN ('1', 't', 'true'), FALSE) DESC")
	}
	b = b.OrderBy("c.published_at DESC", "c.id DESC")

	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}
	if q.Offset > 0 {
		b = b.Offset(uint64(q.Offset))
	}

	return b.ToSql()
}

// BuildGet returns the statement loading one item by id.
func (qb *ContentQueryBuilder) BuildGet(id int64) (string, []interface{}, error) {
	return psql.Select(contentColumns...).From("content_items c").Where(sq.Eq{"c.id": id}).ToSql()
}

// BuildTerms returns the batch statement loading categories and tags for ids.
func (qb *ContentQueryBuilder) BuildTerms(ids []int64) (string, []interface{}, error) {
	return psql.Select("it.item_id", "t.id", "t.name", "t.taxonomy").
		From("content_item_terms it").
		Join("content_terms t ON t.id = it.term_id").
		Where(sq.Eq{"it.item_id": ids}).
		OrderBy("it.item_id", "t.id").
		ToSql()
}

// BuildMetadata returns the batch statement loading keys for ids.
func (qb *ContentQueryBuilder) BuildMetadata(ids []int64, keys []string) (string, []interface{}, error) {
	b := psql.Select("item_id", "meta_key", "meta_value").
		From("content_meta").
		Where(sq.Eq{"item_id": ids})
	if len(keys) > 0 {
		b = b.Where(sq.Eq{"meta_key": keys})
	}
	return b.ToSql()
}

// withoutTerms excludes items attached to any of ids in taxonomy. The
// subquery keeps '?' placeholders; the outer builder renumbers them.
func withoutTerms(taxonomy string, ids []int64) sq.Sqlizer {
	sub := sq.Select("1").
		From("content_item_terms it").
		Join("content_terms t ON t.id = it.term_id").
		Where("it.item_id = c.id").
		Where(sq.Eq{"t.taxonomy": taxonomy}).
		Where(sq.Eq{"t.id": ids})
	query, args, err := sub.ToSql()
	if err != nil {
		return sq.Expr("FALSE")
	}
	return sq.Expr("NOT EXISTS ("+query+")", args...)
}
