package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"newsmap/internal/handler/http/responsewriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration buckets cover cached reads (a few ms) up to a cold
	// regeneration of a full page.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)

	httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware records request count, duration and response size.
// Paths are folded into a few route labels to bound cardinality.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		path := routeLabel(r.URL.Path)
		rw := responsewriter.Wrap(w)

		start := time.Now()
		next.ServeHTTP(rw, r)
		duration := time.Since(start).Seconds()

		status := strconv.Itoa(rw.StatusCode())
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
		httpResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.BytesWritten()))
	})
}

var fixedRoutes = map[string]bool{
	"/health":               true,
	"/health/targets":       true,
	"/ready":                true,
	"/live":                 true,
	"/metrics":              true,
	"/admin/validate":       true,
	"/admin/cache/flush":    true,
	"/admin/status":         true,
	"/admin/ping":           true,
	"/admin/indexnow/batch": true,
	"/admin/events":         true,
	"/admin/pings":          true,
}

// routeLabel maps a request path onto a bounded label set.
func routeLabel(path string) string {
	switch {
	case fixedRoutes[path]:
		return path
	case strings.HasSuffix(path, "-index.xml"):
		return "/:sitemap-index"
	case strings.HasSuffix(path, ".xml"):
		return "/:sitemap-page"
	case strings.HasSuffix(path, ".txt"):
		return "/:verification"
	default:
		return "/:other"
	}
}

// MetricsHandler returns an HTTP handler for the Prometheus metrics endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
