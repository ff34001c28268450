package logger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// SentryConfig holds Sentry integration configuration.
type SentryConfig struct {
	DSN         string `env:"SENTRY_DSN"`
	Environment string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
	// MinLevel determines which log levels to send to Sentry (e.g., slog.LevelWarn for warnings+errors)
	MinLevel slog.Level `env:"SENTRY_MIN_LEVEL" envDefault:"warn"`
}

func newSentryHandler(cfg SentryConfig) (slog.Handler, error) {
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		EnableLogs:  true,
	}); err != nil {
		return nil, err
	}

	// Errors create issues; warnings are kept as searchable logs.
	eventLevel := []slog.Level{slog.LevelError}
	logLevel := []slog.Level{slog.LevelWarn, slog.LevelError}
	if cfg.MinLevel >= slog.LevelError {
		logLevel = []slog.Level{slog.LevelError}
	}

	return sentryslog.Option{
		EventLevel: eventLevel,
		LogLevel:   logLevel,
	}.NewSentryHandler(context.Background()), nil
}

// sentryTee writes every record to the local handler and copies the ones
// Sentry accepts. A Sentry failure never loses the local line.
type sentryTee struct {
	local  slog.Handler
	sentry slog.Handler
}

func (h *sentryTee) Enabled(ctx context.Context, level slog.Level) bool {
	return h.local.Enabled(ctx, level) || h.sentry.Enabled(ctx, level)
}

func (h *sentryTee) Handle(ctx context.Context, rec slog.Record) error {
	var errs []error
	if h.local.Enabled(ctx, rec.Level) {
		errs = append(errs, h.local.Handle(ctx, rec.Clone()))
	}
	if h.sentry.Enabled(ctx, rec.Level) {
		errs = append(errs, h.sentry.Handle(ctx, rec))
	}
	return errors.Join(errs...)
}

func (h *sentryTee) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sentryTee{local: h.local.WithAttrs(attrs), sentry: h.sentry.WithAttrs(attrs)}
}

func (h *sentryTee) WithGroup(name string) slog.Handler {
	return &sentryTee{local: h.local.WithGroup(name), sentry: h.sentry.WithGroup(name)}
}
