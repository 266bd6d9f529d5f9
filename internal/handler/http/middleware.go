package http

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"newsmap/internal/handler/http/requestid"
	"newsmap/internal/handler/http/respond"
	"newsmap/internal/handler/http/responsewriter"

	"go.opentelemetry.io/otel/trace"
)

// Chain applies middleware so that the first one listed is the outermost.
func Chain(h http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// Logging returns middleware that logs one line per request with the
// request ID, the trace ID, the status and the duration.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := responsewriter.Wrap(w)

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			traceID := trace.SpanFromContext(r.Context()).SpanContext().TraceID().String()
			logger.Info("request completed",
				slog.String("request_id", requestid.FromContext(r.Context())),
				slog.String("trace_id", traceID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.Header.Get("User-Agent")),
				slog.Int("status", wrapped.StatusCode()),
				slog.Int("bytes", wrapped.BytesWritten()),
				slog.Duration("duration", duration),
				slog.String("duration_ms", fmt.Sprintf("%.2f", duration.Seconds()*1000)),
			)
		})
	}
}

// Recover returns middleware that turns a panic into a 500 and logs the stack.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					respond.SafeError(w, http.StatusInternalServerError, fmt.Errorf("internal error"))
					logger.Error("panic recovered",
						slog.String("request_id", requestid.FromContext(r.Context())),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
					)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// LimitRequestBody caps request bodies at maxBytes.
func LimitRequestBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// requestRecord holds the timestamps of one client's recent requests.
type requestRecord struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// RateLimiter is a per-client sliding-window limiter for the public
// document routes. Crawlers that exceed it get 429 with Retry-After.
type RateLimiter struct {
	records    sync.Map // client IP -> *requestRecord
	limit      int
	window     time.Duration
	trustProxy bool
	now        func() time.Time

	cleanMu   sync.Mutex
	lastClean time.Time
}

// NewRateLimiter allows limit requests per client within window. With
// trustProxy, the client is taken from X-Forwarded-For / X-Real-IP.
func NewRateLimiter(limit int, window time.Duration, trustProxy bool) *RateLimiter {
	return &RateLimiter{
		limit:      limit,
		window:     window,
		trustProxy: trustProxy,
		now:        time.Now,
		lastClean:  time.Now(),
	}
}

// Limit wraps next with the limiter.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rl.periodicCleanup()
		if !rl.allow(clientIP(r, rl.trustProxy)) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rl.window.Seconds())))
			respond.SafeError(w, http.StatusTooManyRequests, fmt.Errorf("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(ip string) bool {
	now := rl.now()
	val, _ := rl.records.LoadOrStore(ip, &requestRecord{})
	record := val.(*requestRecord)

	record.mu.Lock()
	defer record.mu.Unlock()

	cutoff := now.Add(-rl.window)
	kept := record.timestamps[:0]
	for _, ts := range record.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	record.timestamps = kept

	if len(record.timestamps) >= rl.limit {
		return false
	}
	record.timestamps = append(record.timestamps, now)
	return true
}

// periodicCleanup drops idle clients every ten minutes.
func (rl *RateLimiter) periodicCleanup() {
	rl.cleanMu.Lock()
	defer rl.cleanMu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastClean) < 10*time.Minute {
		return
	}
	rl.lastClean = now
	cutoff := now.Add(-2 * rl.window)

	rl.records.Range(func(key, value any) bool {
		record := value.(*requestRecord)
		record.mu.Lock()
		idle := len(record.timestamps) == 0 || !record.timestamps[len(record.timestamps)-1].After(cutoff)
		record.mu.Unlock()
		if idle {
			rl.records.Delete(key)
		}
		return true
	})
}

// clientIP returns the caller's address. Forwarding headers are only
// honoured behind a trusted proxy.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
				return ip.String()
			}
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
