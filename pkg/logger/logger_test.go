package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dazzlo/bulkmail/pkg/logger"
)

func TestRedactEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"jane.doe@example.com", "ja***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"a@example.com", "***@example.com"},
		{"not-an-email", "***@***"},
		{"a@b@c", "***@***"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, logger.RedactEmail(tt.in))
		})
	}
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew_RedactsEmailAttributes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.Config{Output: &buf})

	log.Info("sent",
		slog.String("email", "jane.doe@example.com"),
		slog.String("subject", "hello@there is kept"),
		slog.Group("smtp", slog.String("user", "jobs@dazzlohr.in")),
	)

	entry := decode(t, &buf)
	require.Equal(t, "ja***@example.com", entry["email"])
	require.Equal(t, "hello@there is kept", entry["subject"])
	require.Equal(t, map[string]any{"user": "jo***@dazzlohr.in"}, entry["smtp"])
}

func TestNew_RedactsWithAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.Config{Output: &buf}).With(slog.String("from", "hr@dazzlohr.in"))
	log.Info("batch started")

	require.Equal(t, "***@dazzlohr.in", decode(t, &buf)["from"])
}

func TestNew_Level(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.Config{Output: &buf, Level: slog.LevelWarn})
	log.Info("dropped")
	require.Zero(t, buf.Len())

	log.Warn("kept")
	require.Equal(t, "kept", decode(t, &buf)["msg"])
}

func TestNew_TextFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.Config{Output: &buf, Format: "text"})
	log.Info("hello", slog.String("email", "jane.doe@example.com"))

	require.Contains(t, buf.String(), "msg=hello")
	require.Contains(t, buf.String(), "email=ja***@example.com")
}

func TestNew_BatchScope(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.Config{Output: &buf})

	log.InfoContext(context.Background(), "no batch")
	require.NotContains(t, decode(t, &buf), "batch_id")

	buf.Reset()
	ctx := logger.WithBatchID(context.Background(), "01JBATCH")
	log.InfoContext(ctx, "in batch")
	require.Equal(t, "01JBATCH", decode(t, &buf)["batch_id"])
	require.Equal(t, "01JBATCH", logger.BatchID(ctx))
}

func TestNew_RecipientScope(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		email   string
		row     int
		attrs   []any
		want    map[string]any
		without []string
		rowKeys int
	}{
		{
			name:    "email is redacted",
			email:   "jane.doe@example.com",
			row:     2,
			want:    map[string]any{"email": "ja***@example.com", "row": float64(2), "batch_id": "b1"},
			rowKeys: 1,
		},
		{
			name:    "row zero is omitted",
			email:   "jo@example.com",
			want:    map[string]any{"email": "***@example.com"},
			without: []string{"row"},
		},
		{
			name:    "record attribute wins",
			email:   "jane.doe@example.com",
			row:     7,
			attrs:   []any{slog.Int("row", 3)},
			want:    map[string]any{"row": float64(3)},
			rowKeys: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			log := logger.New(logger.Config{Output: &buf})
			ctx := logger.WithRecipient(logger.WithBatchID(context.Background(), "b1"), tt.email, tt.row)
			log.InfoContext(ctx, "message sent", tt.attrs...)

			require.Equal(t, tt.rowKeys, bytes.Count(buf.Bytes(), []byte(`"row"`)))
			got := decode(t, &buf)
			for k, v := range tt.want {
				require.Equal(t, v, got[k], k)
			}
			for _, k := range tt.without {
				require.NotContains(t, got, k)
			}
		})
	}
}

func TestNewScopeHandler_Extractors(t *testing.T) {
	t.Parallel()

	requestID := func(ctx context.Context) (slog.Attr, bool) {
		return slog.String("request_id", "req-1"), true
	}

	var buf bytes.Buffer
	h := logger.NewScopeHandler(slog.NewJSONHandler(&buf, nil), nil, requestID)
	slog.New(h).InfoContext(logger.WithBatchID(context.Background(), "b1"), "ok")

	got := decode(t, &buf)
	require.Equal(t, "b1", got["batch_id"])
	require.Equal(t, "req-1", got["request_id"])
}

func TestNewNope(t *testing.T) {
	t.Parallel()

	log := logger.NewNope()
	require.False(t, log.Enabled(context.Background(), slog.LevelError))
	require.NotPanics(t, func() { log.Error("discarded") })
}
