// Package observability groups the logging, tracing and SLO helpers shared
// by the api and worker processes. Component metrics are declared next to
// the code that records them.
package observability
