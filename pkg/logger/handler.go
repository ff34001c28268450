package logger

import (
	"context"
	"log/slog"
)

// ContextExtractor pulls one attribute out of the context of a log call.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// scopeHandler adds the batch and recipient scope of the context, then the
// extractor attributes, to every record. A key the record already has is
// never added twice.
type scopeHandler struct {
	next       slog.Handler
	extractors []ContextExtractor
}

// NewScopeHandler wraps next so records logged with a batch or recipient
// context carry batch_id, email and row. Nil extractors are ignored.
func NewScopeHandler(next slog.Handler, extractors ...ContextExtractor) slog.Handler {
	clean := make([]ContextExtractor, 0, len(extractors))
	for _, ex := range extractors {
		if ex != nil {
			clean = append(clean, ex)
		}
	}
	return &scopeHandler{next: next, extractors: clean}
}

func (h *scopeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *scopeHandler) Handle(ctx context.Context, rec slog.Record) error {
	extra := scopeAttrs(ctx)
	for _, ex := range h.extractors {
		if attr, ok := ex(ctx); ok {
			extra = append(extra, attr)
		}
	}
	if len(extra) == 0 {
		return h.next.Handle(ctx, rec)
	}

	seen := make(map[string]struct{}, rec.NumAttrs())
	rec.Attrs(func(a slog.Attr) bool {
		seen[a.Key] = struct{}{}
		return true
	})
	for _, a := range extra {
		if _, dup := seen[a.Key]; dup {
			continue
		}
		seen[a.Key] = struct{}{}
		rec.AddAttrs(a)
	}
	return h.next.Handle(ctx, rec)
}

func (h *scopeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &scopeHandler{next: h.next.WithAttrs(attrs), extractors: h.extractors}
}

func (h *scopeHandler) WithGroup(name string) slog.Handler {
	return &scopeHandler{next: h.next.WithGroup(name), extractors: h.extractors}
}
