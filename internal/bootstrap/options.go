// Package bootstrap holds the process wiring shared by cmd/api and
// cmd/worker: command-line options and the sitemap read stack.
package bootstrap

import (
	"errors"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Content sources selectable with --content-source.
const (
	SourcePostgres = "postgres"
	SourceFeed     = "feed"
)

// Durable cache backends selectable with --cache-durable.
const (
	DurablePostgres = "postgres"
	DurableMemory   = "memory"
)

// Options are the flags common to both processes. Commands embed it in
// their own option struct.
type Options struct {
	Config        string  `long:"config" env:"NEWSMAP_CONFIG" description:"YAML settings file"`
	DatabaseURL   string  `long:"database-url" env:"DATABASE_URL" description:"PostgreSQL DSN" required:"true"`
	ContentSource string  `long:"content-source" env:"NEWSMAP_CONTENT_SOURCE" default:"postgres" choice:"postgres" choice:"feed" description:"Where content items are read from"`
	FeedURL       string  `long:"feed-url" env:"NEWSMAP_FEED_URL" description:"RSS/Atom feed used when --content-source=feed"`
	CacheDurable  string  `long:"cache-durable" env:"NEWSMAP_CACHE_DURABLE" default:"postgres" choice:"postgres" choice:"memory" description:"Cache backend used when no object cache is reachable"`
	ArtifactDir   string  `long:"artifact-dir" env:"NEWSMAP_ARTIFACT_DIR" default:"./public" description:"Directory holding the IndexNow verification file"`
	OTLPEndpoint  string  `long:"otlp-endpoint" env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT" description:"OTLP/HTTP traces endpoint; empty keeps spans in process"`
	TraceRatio    float64 `long:"trace-ratio" env:"NEWSMAP_TRACE_RATIO" default:"1" description:"Fraction of root spans sampled"`
}

// Validate checks the combinations go-flags cannot express.
func (o Options) Validate() error {
	if o.ContentSource == SourceFeed && o.FeedURL == "" {
		return errors.New("--feed-url is required with --content-source=feed")
	}
	if o.TraceRatio < 0 || o.TraceRatio > 1 {
		return fmt.Errorf("--trace-ratio must be between 0 and 1, got %v", o.TraceRatio)
	}
	return nil
}

// Parse fills data from args and the environment. It returns false when
// help was requested and the process should exit cleanly.
func Parse(data any, args []string) (bool, error) {
	parser := flags.NewParser(data, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return false, nil
		}
		return false, fmt.Errorf("Parse: %w", err)
	}
	return true, nil
}
