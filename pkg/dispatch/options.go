package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/dazzlo/bulkmail/pkg/templates"
)

// DefaultDelay is the pause between messages sent over a reused session.
const DefaultDelay = 2 * time.Second

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithStrategy selects how sessions are opened. Default: PerMessage.
func WithStrategy(s Strategy) Option {
	return func(d *Dispatcher) { d.strategy = s }
}

// WithDelay sets the pause between consecutive messages. Without it,
// Reuse waits DefaultDelay and PerMessage does not wait.
func WithDelay(delay time.Duration) Option {
	return func(d *Dispatcher) {
		d.delay = delay
		d.delaySet = true
	}
}

// WithBranding sets the letterhead profiles. Default: templates.DefaultConfig().
func WithBranding(cfg templates.Config) Option {
	return func(d *Dispatcher) { d.branding = cfg }
}

// WithLogger sets the logger. Default: a no-op logger. Per-message records
// carry email and row when l is built by logger.New.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClock sets the time source used for dates, ids and durations.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithSleep replaces the function used to wait between messages.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Dispatcher) { d.sleep = sleep }
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
