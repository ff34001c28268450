package logger

import (
	"context"
	"log/slog"
)

type (
	batchIDKey   struct{}
	recipientKey struct{}
)

type recipient struct {
	email string
	row   int
}

// WithBatchID returns a context carrying the batch id.
func WithBatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, batchIDKey{}, id)
}

// BatchID returns the batch id stored in ctx, or "".
func BatchID(ctx context.Context) string {
	id, _ := ctx.Value(batchIDKey{}).(string)
	return id
}

// WithRecipient returns a context scoped to one recipient record. Records
// logged with it carry "email" (redacted) and "row".
func WithRecipient(ctx context.Context, email string, row int) context.Context {
	return context.WithValue(ctx, recipientKey{}, recipient{email: email, row: row})
}

// scopeAttrs returns the batch and recipient attributes carried by ctx.
func scopeAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if id := BatchID(ctx); id != "" {
		attrs = append(attrs, slog.String("batch_id", id))
	}
	if r, ok := ctx.Value(recipientKey{}).(recipient); ok {
		attrs = append(attrs, slog.String("email", r.email))
		if r.row > 0 {
			attrs = append(attrs, slog.Int("row", r.row))
		}
	}
	return attrs
}
