// Package tracing wires OpenTelemetry: the global SDK provider, the
// tracer used for the sitemap.generate and notify.dispatch spans, and an
// HTTP middleware that starts a server span per request.
package tracing
