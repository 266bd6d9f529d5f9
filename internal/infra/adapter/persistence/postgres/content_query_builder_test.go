package postgres_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"newsmap/internal/infra/adapter/persistence/postgres"
	"newsmap/internal/repository"
)

/* ──────────────────────────── Build Tests ──────────────────────────── */

func TestContentQueryBuilder_Build_NoFilters(t *testing.T) {
	builder := postgres.NewContentQueryBuilder()

	query, args, err := builder.Build(repository.ContentQuery{})
	if err != nil {
		t.Fatalf("Build err=%v", err)
	}

	want := "SELECT c.id, c.title, c.url, c.published_at, c.content, c.status, c.content_type, c.author_id " +
		"FROM content_items c ORDER BY c.published_at DESC, c.id DESC"
	if query != want {
		t.Errorf("query = %q, want %q", query, want)
	}
	if len(args) != 0 {
		t.Errorf("args should be empty, got %v", args)
	}
}

func TestContentQueryBuilder_Build_AllFilters(t *testing.T) {
	since := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
	builder := postgres.NewContentQueryBuilder()

	query, args, err := builder.Build(repository.ContentQuery{
		Types:              []string{"post", "story"},
		Statuses:           []string{"publish"},
		PublishedSince:     since,
		ExcludedCategories: []int64{5},
		ExcludedTags:       []int64{7, 8},
		ExcludedAuthors:    []int64{9},
		PriorityFirst:      true,
		Offset:             200,
		Limit:              100,
	})
	if err != nil {
		t.Fatalf("Build err=%v", err)
	}

	fragments := []string{
		"LEFT JOIN content_meta bm ON bm.item_id = c.id AND bm.meta_key = $1",
		"c.content_type IN ($2,$3)",
		"c.status IN ($4)",
		"c.published_at >= $5",
		"NOT EXISTS (SELECT 1 FROM content_item_terms it JOIN content_terms t ON t.id = it.term_id WHERE it.item_id = c.id AND t.taxonomy = $6 AND t.id IN ($7))",
		"AND t.taxonomy = $8 AND t.id IN ($9,$10))",
		"(c.author_id IS NULL OR c.author_id NOT IN ($11))",
		"ORDER BY COALESCE(LOWER(bm.meta_value) IN ('1', 't', 'true'), FALSE) DESC, c.published_at DESC, c.id DESC",
		"LIMIT 100 OFFSET 200",
	}
	for _, f := range fragments {
		if !strings.Contains(query, f) {
			t.Errorf("query missing %q\nquery: %s", f, query)
		}
	}

	wantArgs := []interface{}{
		"breaking_news", "post", "story", "publish", since,
		"category", int64(5), "tag", int64(7), int64(8), int64(9),
	}
	if diff := cmp.Diff(wantArgs, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestContentQueryBuilder_Build_ExcludedAuthorsKeepAuthorless(t *testing.T) {
	builder := postgres.NewContentQueryBuilder()

	query, args, err := builder.Build(repository.ContentQuery{ExcludedAuthors: []int64{13, 14}})
	if err != nil {
		t.Fatalf("Build err=%v", err)
	}

	want := "SELECT c.id, c.title, c.url, c.published_at, c.content, c.status, c.content_type, c.author_id " +
		"FROM content_items c WHERE (c.author_id IS NULL OR c.author_id NOT IN ($1,$2)) " +
		"ORDER BY c.published_at DESC, c.id DESC"
	if query != want {
		t.Errorf("query = %q, want %q", query, want)
	}
	if diff := cmp.Diff([]interface{}{int64(13), int64(14)}, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestContentQueryBuilder_BuildMetadata(t *testing.T) {
	builder := postgres.NewContentQueryBuilder()

	query, args, err := builder.BuildMetadata([]int64{1, 2}, []string{"genre"})
	if err != nil {
		t.Fatalf("BuildMetadata err=%v", err)
	}

	want := "SELECT item_id, meta_key, meta_value FROM content_meta WHERE item_id IN ($1,$2) AND meta_key IN ($3)"
	if query != want {
		t.Errorf("query = %q, want %q", query, want)
	}
	if diff := cmp.Diff([]interface{}{int64(1), int64(2), "genre"}, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}
