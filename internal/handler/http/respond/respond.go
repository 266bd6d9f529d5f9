// Package respond writes JSON responses for the admin and health routes.
// Error responses never leak internal details: only validation-style
// messages reach the caller, everything else is logged and replaced.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"newsmap/internal/domain/entity"
)

// JSON writes a JSON response with the given status code and data.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			// headers are already sent
			slog.Default().Error("failed to encode JSON response",
				slog.Int("status_code", code),
				slog.Any("error", err))
		}
	}
}

// safeFragments mark messages that describe the caller's input rather than
// the system.
var safeFragments = []string{
	"required",
	"invalid",
	"not found",
	"must be",
	"malformed",
	"unknown change",
	"not configured",
}

// SafeError writes err as {"error": msg}. Server errors and messages that
// do not look like input problems are logged (sanitized) and replaced by a
// generic message.
func SafeError(w http.ResponseWriter, code int, err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	if code < 500 && isSafe(msg) {
		JSON(w, code, map[string]string{"error": msg})
		return
	}
	slog.Default().Error("request failed",
		slog.String("status", http.StatusText(code)),
		slog.Int("code", code),
		slog.String("error", SanitizeError(err)))
	JSON(w, code, map[string]string{"error": genericMessage(code)})
}

// FromError maps domain errors to a status and writes them with SafeError.
func FromError(w http.ResponseWriter, err error) {
	SafeError(w, StatusFor(err), err)
}

// StatusFor returns the HTTP status for a domain error.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrNotFound), errors.Is(err, entity.ErrPageNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isSafe(msg string) bool {
	lower := strings.ToLower(msg)
	for _, f := range safeFragments {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

func genericMessage(code int) string {
	if code == http.StatusServiceUnavailable {
		return "temporarily unavailable"
	}
	if code >= 500 {
		return "internal server error"
	}
	return strings.ToLower(http.StatusText(code))
}
