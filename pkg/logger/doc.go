// Package logger provides structured logging with context extraction,
// email redaction and optional Sentry forwarding.
//
// # Basic Usage
//
//	log := logger.New(logger.Config{Level: slog.LevelInfo})
//
//	ctx = logger.WithBatchID(ctx, summary.BatchID)
//	ctx = logger.WithRecipient(ctx, "jane.doe@example.com", 2)
//	log.InfoContext(ctx, "message sent")
//	// {"level":"INFO","msg":"message sent","batch_id":"01J...","email":"ja***@example.com","row":2}
//
// # Redaction
//
// String attributes whose key is listed in RedactedKeys and that look like
// an address are passed through RedactEmail before reaching any handler,
// including Sentry. Passwords are never logged; mailer.Credentials masks
// itself when formatted.
//
// # Sentry Integration
//
// When Config.Sentry.DSN is set, errors create Sentry issues and warnings
// are stored as logs. If initialization fails the logger falls back to the
// base handler only.
//
// # Scope
//
// Batch and recipient scope is added automatically. A ContextExtractor
// pulls any other attribute (the HTTP request id, for one) out of the
// context on every log call. NewScopeHandler applies both to any handler.
package logger
