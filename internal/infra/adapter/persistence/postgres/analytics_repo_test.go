package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"

	"newsmap/internal/domain/entity"
	"newsmap/internal/infra/adapter/persistence/postgres"
	"newsmap/internal/repository"
)

func TestAnalyticsRepo_Records(t *testing.T) {
	at := time.Date(2026, 3, 10, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600))
	day := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		expect func(mock sqlmock.Sqlmock)
		call   func(r repository.AnalyticsRepository) error
	}{
		{
			name: "sitemap size",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`SET items_in_sitemap = EXCLUDED.items_in_sitemap`).
					WithArgs(day, 1500).WillReturnResult(sqlmock.NewResult(0, 1))
			},
			call: func(r repository.AnalyticsRepository) error {
				return r.RecordSitemapSize(context.Background(), at, 1500)
			},
		},
		{
			name: "pings add to totals",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`total_pings = analytics_daily.total_pings \+ EXCLUDED.total_pings`).
					WithArgs(day, 4, 3, 1).WillReturnResult(sqlmock.NewResult(0, 1))
			},
			call: func(r repository.AnalyticsRepository) error {
				return r.RecordPings(context.Background(), at, 3, 1)
			},
		},
		{
			name: "cache counters",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`cache_hits = analytics_daily.cache_hits \+ EXCLUDED.cache_hits`).
					WithArgs(day, 90, 10).WillReturnResult(sqlmock.NewResult(0, 1))
			},
			call: func(r repository.AnalyticsRepository) error {
				return r.RecordCache(context.Background(), at, 90, 10)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, _ := sqlmock.New()
			defer func() { _ = db.Close() }()
			tt.expect(mock)

			if err := tt.call(postgres.NewAnalyticsRepo(db)); err != nil {
				t.Fatalf("err=%v", err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestAnalyticsRepo_Summary(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM analytics_daily`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{
			"day", "items_in_sitemap", "total_pings", "successful_pings", "failed_pings", "cache_hits", "cache_misses",
		}).AddRow(day, 120, 8, 7, 1, 400, 12))

	got, err := postgres.NewAnalyticsRepo(db).Summary(context.Background(), 7)
	if err != nil {
		t.Fatalf("Summary err=%v", err)
	}
	want := []entity.DailyStats{{
		Day: day, ItemsInSitemap: 120, TotalPings: 8, SuccessfulPings: 7, FailedPings: 1, CacheHits: 400, CacheMisses: 12,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}
