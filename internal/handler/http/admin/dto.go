package admin

import (
	"time"

	"newsmap/internal/domain/entity"
)

// AttemptDTO is a ping attempt as returned by the admin routes.
type AttemptDTO struct {
	ItemID      int64     `json:"item_id"`
	Target      string    `json:"target"`
	Code        int       `json:"code"`
	Message     string    `json:"message,omitempty"`
	Success     bool      `json:"success"`
	AttemptedAt time.Time `json:"attempted_at"`
}

// DailyStatsDTO is one day of analytics.
type DailyStatsDTO struct {
	Day             string `json:"day"`
	ItemsInSitemap  int    `json:"items_in_sitemap"`
	TotalPings      int    `json:"total_pings"`
	SuccessfulPings int    `json:"successful_pings"`
	FailedPings     int    `json:"failed_pings"`
	CacheHits       int    `json:"cache_hits"`
	CacheMisses     int    `json:"cache_misses"`
}

// StatusDTO is the response of GET /admin/status.
type StatusDTO struct {
	CacheBackend string          `json:"cache_backend"`
	PageCount    int             `json:"page_count"`
	DocumentURL  string          `json:"document_url"`
	Analytics    []DailyStatsDTO `json:"analytics"`
}

// PingsDTO is the response of GET /admin/pings.
type PingsDTO struct {
	LifetimePings int64        `json:"lifetime_pings"`
	Pending       int          `json:"pending"`
	Attempts      []AttemptDTO `json:"attempts"`
}

func toAttemptDTO(a entity.PingAttempt) AttemptDTO {
	return AttemptDTO{
		ItemID:      a.ItemID,
		Target:      a.Target,
		Code:        a.Code,
		Message:     a.Message,
		Success:     a.Success,
		AttemptedAt: a.AttemptedAt,
	}
}

func toAttemptDTOs(attempts []entity.PingAttempt) []AttemptDTO {
	out := make([]AttemptDTO, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, toAttemptDTO(a))
	}
	return out
}

func toDailyStatsDTOs(days []entity.DailyStats) []DailyStatsDTO {
	out := make([]DailyStatsDTO, 0, len(days))
	for _, d := range days {
		out = append(out, DailyStatsDTO{
			Day:             d.Day.Format(time.DateOnly),
			ItemsInSitemap:  d.ItemsInSitemap,
			TotalPings:      d.TotalPings,
			SuccessfulPings: d.SuccessfulPings,
			FailedPings:     d.FailedPings,
			CacheHits:       d.CacheHits,
			CacheMisses:     d.CacheMisses,
		})
	}
	return out
}
