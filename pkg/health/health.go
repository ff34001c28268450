package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dazzlo/bulkmail/pkg/logger"
	"github.com/dazzlo/bulkmail/pkg/mailer"
)

const (
	defaultTimeout = 5 * time.Second

	// StatusHealthy indicates all checks passed.
	StatusHealthy = "healthy"
	// StatusUnhealthy indicates one or more checks failed.
	StatusUnhealthy = "unhealthy"
)

// CheckFunc checks one dependency. On success target names what answered,
// such as "smtp.zoho.in:465/ssl"; it may be empty.
type CheckFunc func(ctx context.Context) (target string, err error)

// Checks is a map of named health check functions.
type Checks map[string]CheckFunc

// Response is the readiness report.
type Response struct {
	Checks map[string]Check `json:"checks,omitempty"`
	Status string           `json:"status"`
}

// Check is the outcome of a single check. Reason carries the delivery
// failure class for mail server checks, e.g. "transport_error".
type Check struct {
	Status    string        `json:"status"`
	Target    string        `json:"target,omitempty"`
	Reason    mailer.Reason `json:"reason,omitempty"`
	Error     string        `json:"error,omitempty"`
	LatencyMS int64         `json:"latency_ms"`
}

type config struct {
	logger  *slog.Logger
	timeout time.Duration
}

// Option configures the readiness handler.
type Option func(*config)

// WithTimeout bounds every check run. Default: 5s.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger failed checks are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		timeout: defaultTimeout,
		logger:  logger.NewNope(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// run executes all checks concurrently under one deadline.
func run(ctx context.Context, checks Checks, cfg *config) *Response {
	if len(checks) == 0 {
		return &Response{Status: StatusHealthy}
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]Check, len(checks))
		status  = StatusHealthy
	)
	for name, check := range checks {
		wg.Go(func() {
			res := runCheck(ctx, check)
			if res.Status != StatusHealthy {
				cfg.logger.WarnContext(ctx, "health check failed",
					slog.String("check", name),
					slog.String("reason", string(res.Reason)),
					slog.String("error", res.Error),
				)
			}

			mu.Lock()
			defer mu.Unlock()
			results[name] = res
			if res.Status != StatusHealthy {
				status = StatusUnhealthy
			}
		})
	}
	wg.Wait()

	return &Response{Status: status, Checks: results}
}

func runCheck(ctx context.Context, check CheckFunc) Check {
	start := time.Now()
	target, err := check(ctx)
	res := Check{
		Status:    StatusHealthy,
		Target:    target,
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		res.Status = StatusUnhealthy
		res.Error = err.Error()
		if reason := mailer.Classify(err); reason != mailer.ReasonUnexpectedError {
			res.Reason = reason
		}
	}
	return res
}
