package entity

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// maxURLLength defines the maximum allowed length for URLs to prevent DoS attacks.
const maxURLLength = 2048

// maxStockTickers is the number of symbols a single entry may carry.
const maxStockTickers = 5

var tickerPattern = regexp.MustCompile(`^([A-Z]+:)?[A-Z]{1,5}$`)

// ValidateURL checks that rawURL is non-empty, well-formed, uses an http(s)
// scheme and names a host. It performs no network lookups.
// Returns a ValidationError if the URL is invalid or empty.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return &ValidationError{Field: "url", Message: "URL is required"}
	}

	if len(rawURL) > maxURLLength {
		return &ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("url must not exceed %d characters", maxURLLength),
		}
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return &ValidationError{Field: "url", Message: fmt.Sprintf("URL is invalid: %v", err)}
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{Field: "url", Message: "URL must use http or https scheme"}
	}

	if parsedURL.Host == "" {
		return &ValidationError{Field: "url", Message: "URL must have a valid host"}
	}

	return nil
}

// NormalizeTickers upper-cases and trims every symbol in raw, which may be a
// comma-separated list, and validates the resulting set. A symbol is 1 to 5
// letters with an optional exchange prefix (NASDAQ:GOOG). The whole set is
// rejected when any symbol is invalid or there are more than five.
func NormalizeTickers(raw []string) ([]string, error) {
	var out []string
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			symbol := strings.ToUpper(strings.TrimSpace(part))
			if symbol == "" {
				continue
			}
			if !tickerPattern.MatchString(symbol) {
				return nil, &ValidationError{Field: "stock_tickers", Message: fmt.Sprintf("invalid symbol %q", symbol)}
			}
			out = append(out, symbol)
		}
	}
	if len(out) > maxStockTickers {
		return nil, &ValidationError{
			Field:   "stock_tickers",
			Message: fmt.Sprintf("must not exceed %d symbols, got %d", maxStockTickers, len(out)),
		}
	}
	return out, nil
}

// ValidTicker reports whether a single, already normalized symbol is well-formed.
func ValidTicker(symbol string) bool {
	return tickerPattern.MatchString(symbol)
}
