package requestid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		expected string
	}{
		{name: "with request ID", ctx: WithRequestID(context.Background(), "ping-123"), expected: "ping-123"},
		{name: "without request ID", ctx: context.Background(), expected: ""},
		{name: "with invalid type in context", ctx: context.WithValue(context.Background(), RequestIDKey, 12345), expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FromContext(tt.ctx))
		})
	}
}

func TestEnsure(t *testing.T) {
	t.Run("keeps an existing ID", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "sweep-1")

		assert.Equal(t, "sweep-1", FromContext(Ensure(ctx)))
	})

	t.Run("generates a UUID", func(t *testing.T) {
		id := FromContext(Ensure(context.Background()))

		_, err := uuid.Parse(id)
		assert.NoError(t, err)
	})
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantEcho   bool
		wantRandom bool
	}{
		{name: "propagates a caller ID", header: "cms-42.publish", wantEcho: true},
		{name: "generates when absent", header: "", wantRandom: true},
		{name: "replaces IDs with spaces", header: "id with spaces", wantRandom: true},
		{name: "replaces oversized IDs", header: strings.Repeat("a", 129), wantRandom: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			var captured string
			handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = FromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/news-sitemap.xml", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			rec := httptest.NewRecorder()

			// Act
			handler.ServeHTTP(rec, req)

			// Assert
			assert.Equal(t, captured, rec.Header().Get(RequestIDHeader))
			if tt.wantEcho {
				assert.Equal(t, tt.header, captured)
			}
			if tt.wantRandom {
				_, err := uuid.Parse(captured)
				assert.NoError(t, err)
			}
		})
	}
}

func TestMiddleware_UniquePerRequest(t *testing.T) {
	seen := make(map[string]bool)
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen[FromContext(r.Context())] = true
	}))

	for i := 0; i < 10; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}

	assert.Len(t, seen, 10)
}
