package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls the base handler.
type Config struct {
	Level  slog.Level `env:"LOG_LEVEL" envDefault:"info"`
	Format string     `env:"LOG_FORMAT" envDefault:"json"` // json or text
	Sentry SentryConfig

	// Output defaults to os.Stdout.
	Output io.Writer
}

// New creates a logger from cfg. Records logged with a batch or recipient
// context carry batch_id, email and row. Email addresses in attributes named by
// RedactedKeys are masked before any handler sees them. When cfg.Sentry.DSN
// is set, warnings and errors are also forwarded to Sentry.
func New(cfg Config, extractors ...ContextExtractor) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}
	var base slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		base = slog.NewTextHandler(out, opts)
	} else {
		base = slog.NewJSONHandler(out, opts)
	}

	handler := base
	if cfg.Sentry.DSN != "" {
		if sh, err := newSentryHandler(cfg.Sentry); err != nil {
			slog.New(base).Error("failed to initialize Sentry", slog.String("error", err.Error()))
		} else {
			handler = &sentryTee{local: base, sentry: sh}
		}
	}

	return slog.New(NewScopeHandler(newRedactHandler(handler), extractors...))
}

// NewNope returns a logger that drops everything. Components use it until
// a real logger is injected.
func NewNope() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
