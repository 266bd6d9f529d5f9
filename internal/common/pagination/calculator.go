// Package pagination splits the eligible corpus into fixed-size sitemap pages.
package pagination

// CalculateOffset calculates the slice offset for a 1-based page number.
//
// Formula: offset = (page - 1) * limit
//
// Examples:
//   - Page 1, Limit 1000 -> Offset 0
//   - Page 2, Limit 1000 -> Offset 1000
func CalculateOffset(page, limit int) int {
	return (page - 1) * limit
}

// CalculateTotalPages returns ceil(total / limit).
//
// Unlike a listing API, an empty corpus has zero pages: the index lists
// nothing, while the first page is still served as an empty document.
//
// Examples:
//   - Total 0, Limit 1000 -> 0 pages
//   - Total 1000, Limit 1000 -> 1 page
//   - Total 1500, Limit 1000 -> 2 pages
func CalculateTotalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// PageBounds returns the half-open range [start, end) of page within a
// corpus of total items. ok is false when the page does not exist; page 1
// always exists so an empty corpus still yields an empty first page.
func PageBounds(page, limit, total int) (start, end int, ok bool) {
	if page < 1 || limit <= 0 {
		return 0, 0, false
	}
	if page == 1 && total == 0 {
		return 0, 0, true
	}
	if page > CalculateTotalPages(total, limit) {
		return 0, 0, false
	}
	start = CalculateOffset(page, limit)
	end = start + limit
	if end > total {
		end = total
	}
	return start, end, true
}
