package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type failingHandler struct {
	level slog.Level
	calls int
}

func (h *failingHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }
func (h *failingHandler) Handle(context.Context, slog.Record) error {
	h.calls++
	return errors.New("sentry unavailable")
}
func (h *failingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *failingHandler) WithGroup(string) slog.Handler      { return h }

func TestSentryTee(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		level     slog.Level
		wantErr   bool
		wantCalls int
	}{
		{name: "info stays local", level: slog.LevelInfo, wantCalls: 0},
		{name: "error reaches both", level: slog.LevelError, wantErr: true, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			sh := &failingHandler{level: slog.LevelWarn}
			tee := &sentryTee{local: slog.NewJSONHandler(&buf, nil), sentry: sh}

			err := tee.Handle(context.Background(), slog.NewRecord(time.Time{}, tt.level, "batch finished", 0))
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.wantCalls, sh.calls)
			require.Contains(t, buf.String(), "batch finished")
		})
	}
}
