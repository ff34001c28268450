package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/dazzlo/bulkmail/pkg/id"
	"github.com/dazzlo/bulkmail/pkg/logger"
)

// requestIDKey is the context key for storing the request ID.
type requestIDKey struct{}

// RequestIDHeaders are the headers checked (in order) for an existing request ID.
var RequestIDHeaders = []string{"X-Request-ID", "X-Correlation-ID"}

// stackSize is the maximum stack trace size logged for a recovered panic.
const stackSize = 4096

// requestID assigns a request ID to each request. An upstream ID from
// RequestIDHeaders is kept; otherwise a ULID is generated.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqID string
		for _, header := range RequestIDHeaders {
			if v := r.Header.Get(header); v != "" {
				reqID = v
				break
			}
		}
		if reqID == "" {
			reqID = id.NewULID()
		}

		w.Header().Set("X-Request-ID", reqID)
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID returns the request ID stored in ctx, or "".
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// RequestIDExtractor returns a ContextExtractor that adds "request_id"
// to every log entry written with a request context.
func RequestIDExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if v := RequestID(ctx); v != "" {
			return slog.String("request_id", v), true
		}
		return slog.Attr{}, false
	}
}

// recoverer turns a panic into a 500 rendered by the error handler.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			stack := make([]byte, stackSize)
			stack = stack[:runtime.Stack(stack, false)]
			s.logger.ErrorContext(r.Context(), "panic recovered",
				slog.Any("panic", rec),
				slog.String("stack", string(stack)),
			)
			s.renderError(w, r, NewHTTPError(http.StatusInternalServerError,
				"Internal server error.", fmt.Errorf("panic: %v", rec)))
		}()
		next.ServeHTTP(w, r)
	})
}
