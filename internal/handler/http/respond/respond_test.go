package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"newsmap/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	tests := []struct {
		name         string
		code         int
		data         any
		expectedBody string
	}{
		{name: "map", code: http.StatusOK, data: map[string]string{"message": "ok"}, expectedBody: `{"message":"ok"}`},
		{name: "struct", code: http.StatusAccepted, data: struct{ Pages int }{Pages: 3}, expectedBody: `{"Pages":3}`},
		{name: "nil body", code: http.StatusNoContent, data: nil, expectedBody: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			JSON(w, tt.code, tt.data)

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, tt.expectedBody, strings.TrimSpace(w.Body.String()))
		})
	}
}

func TestJSON_EncodingErrorKeepsStatus(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, make(chan int))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSafeError(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		err     error
		wantMsg string
	}{
		{name: "validation message passes", code: http.StatusBadRequest, err: errors.New("item_id must be positive"), wantMsg: "item_id must be positive"},
		{name: "not configured passes", code: http.StatusConflict, err: errors.New("indexnow target not configured"), wantMsg: "indexnow target not configured"},
		{name: "internal detail hidden", code: http.StatusBadRequest, err: errors.New("pq: relation missing"), wantMsg: "bad request"},
		{name: "server error hidden", code: http.StatusInternalServerError, err: errors.New("invalid memory address"), wantMsg: "internal server error"},
		{name: "outage", code: http.StatusServiceUnavailable, err: errors.New("dial tcp 10.0.0.1:5432"), wantMsg: "temporarily unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			SafeError(w, tt.code, tt.err)

			assert.Equal(t, tt.code, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantMsg, body["error"])
		})
	}
}

func TestSafeError_NilWritesNothing(t *testing.T) {
	w := httptest.NewRecorder()

	SafeError(w, http.StatusBadRequest, nil)

	assert.Zero(t, w.Body.Len())
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid input", err: fmt.Errorf("Decode: %w", entity.ErrInvalidInput), want: http.StatusBadRequest},
		{name: "validation error", err: &entity.ValidationError{Field: "change", Message: "unknown"}, want: http.StatusBadRequest},
		{name: "not found", err: entity.ErrNotFound, want: http.StatusNotFound},
		{name: "page not found", err: fmt.Errorf("Page: %w", entity.ErrPageNotFound), want: http.StatusNotFound},
		{name: "upstream", err: fmt.Errorf("Query: %w", entity.ErrUpstreamUnavailable), want: http.StatusServiceUnavailable},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestFromError(t *testing.T) {
	w := httptest.NewRecorder()

	FromError(w, fmt.Errorf("Get: %w", entity.ErrUpstreamUnavailable))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "temporarily unavailable")
}
