package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"newsmap/internal/handler/http/requestid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/news-sitemap.xml", nil)
	req.RemoteAddr = addr
	return req
}

/* ─── 1. Chain ─── */

func TestChain_FirstMiddlewareIsOutermost(t *testing.T) {
	// Arrange
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	// Act
	Chain(okHandler(), mark("a"), mark("b"), mark("c")).ServeHTTP(httptest.NewRecorder(), requestFrom("10.0.0.1:1"))

	// Assert
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

/* ─── 2. Logging and recovery ─── */

func TestLogging(t *testing.T) {
	// Arrange
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := requestid.Middleware(Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("not found"))
	})))
	req := httptest.NewRequest(http.MethodGet, "/news-sitemap-9.xml", nil)
	req.Header.Set("X-Request-ID", "req-123")

	// Act
	handler.ServeHTTP(httptest.NewRecorder(), req)

	// Assert
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request completed", entry["msg"])
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "/news-sitemap-9.xml", entry["path"])
	assert.EqualValues(t, http.StatusNotFound, entry["status"])
	assert.EqualValues(t, len("not found"), entry["bytes"])
}

func TestRecover(t *testing.T) {
	tests := []struct {
		name       string
		panicValue any
	}{
		{name: "string", panicValue: "something went wrong"},
		{name: "error", panicValue: fmt.Errorf("dsn postgres://u:secret@db/x")},
		{name: "number", panicValue: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			var buf bytes.Buffer
			handler := Recover(slog.New(slog.NewJSONHandler(&buf, nil)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic(tt.panicValue)
			}))
			rec := httptest.NewRecorder()

			// Act
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/status", nil))

			// Assert
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.NotContains(t, rec.Body.String(), "secret")
			assert.Contains(t, buf.String(), "panic recovered")
		})
	}
}

func TestLimitRequestBody(t *testing.T) {
	tests := []struct {
		name     string
		bodySize int
		wantCode int
	}{
		{name: "within limit", bodySize: 512, wantCode: http.StatusOK},
		{name: "at limit", bodySize: 1024, wantCode: http.StatusOK},
		{name: "over limit", bodySize: 1025, wantCode: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := LimitRequestBody(1024)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if _, err := io.ReadAll(r.Body); err != nil {
					w.WriteHeader(http.StatusRequestEntityTooLarge)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodPost, "/admin/events", strings.NewReader(strings.Repeat("x", tt.bodySize)))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

/* ─── 3. Rate limiting ─── */

func TestRateLimiter_Limit(t *testing.T) {
	// Arrange
	rl := NewRateLimiter(3, time.Minute, false)
	handler := rl.Limit(okHandler())

	// Act
	codes := make([]int, 0, 4)
	var last *httptest.ResponseRecorder
	for i := 0; i < 4; i++ {
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, requestFrom("192.0.2.1:4000"))
		codes = append(codes, last.Code)
	}

	// Assert
	assert.Equal(t, []int{200, 200, 200, 429}, codes)
	assert.Equal(t, "60", last.Header().Get("Retry-After"))
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	// Arrange
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute, false)
	rl.now = func() time.Time { return now }

	// Act / Assert
	assert.True(t, rl.allow("a"))
	now = now.Add(30 * time.Second)
	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	now = now.Add(31 * time.Second)
	assert.True(t, rl.allow("a"), "first request left the window")
	assert.False(t, rl.allow("a"))
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, false)

	assert.True(t, rl.allow("192.0.2.1"))
	assert.False(t, rl.allow("192.0.2.1"))
	assert.True(t, rl.allow("192.0.2.2"))
}

func TestRateLimiter_Concurrent(t *testing.T) {
	// Arrange
	rl := NewRateLimiter(50, time.Minute, false)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)

	// Act
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.allow("198.51.100.7") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Assert
	assert.Equal(t, 50, allowed)
}

func TestRateLimiter_PeriodicCleanup(t *testing.T) {
	// Arrange
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(5, time.Minute, false)
	rl.now = func() time.Time { return now }
	rl.lastClean = now
	require.True(t, rl.allow("idle"))
	now = now.Add(9 * time.Minute)
	require.True(t, rl.allow("active"))

	// Act
	now = now.Add(time.Minute + time.Second)
	rl.periodicCleanup()

	// Assert
	_, idleKept := rl.records.Load("idle")
	_, activeKept := rl.records.Load("active")
	assert.False(t, idleKept)
	assert.True(t, activeKept)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{name: "remote addr", remoteAddr: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "remote addr without port", remoteAddr: "192.0.2.1", want: "192.0.2.1"},
		{
			name:       "forwarded header ignored without trusted proxy",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.5"},
			want:       "10.0.0.1",
		},
		{
			name:       "first forwarded address behind proxy",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": " 203.0.113.5 , 10.0.0.2"},
			trustProxy: true,
			want:       "203.0.113.5",
		},
		{
			name:       "real ip fallback",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "garbage", "X-Real-IP": "2001:db8::1"},
			trustProxy: true,
			want:       "2001:db8::1",
		},
		{
			name:       "malformed headers fall back to remote addr",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Real-IP": "not-an-ip"},
			trustProxy: true,
			want:       "10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := requestFrom(tt.remoteAddr)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.want, clientIP(req, tt.trustProxy))
		})
	}
}
