// Package logging builds the process loggers and attaches the request ID
// carried by a context to log lines.
//
//	logger := logging.WithRequestID(ctx, slog.Default())
//	logger.Info("sitemap generated", slog.Int("pages", 2))
package logging
