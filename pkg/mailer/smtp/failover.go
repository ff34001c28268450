package smtp

import (
	"context"
	"errors"
	"fmt"

	"github.com/dazzlo/bulkmail/pkg/mailer"
)

// Failover implements mailer.Transport over an ordered list of candidate
// servers: Open returns a session on the first candidate that accepts
// the credentials.
type Failover struct {
	candidates []Endpoint
	opts       []Option
}

// NewFailover creates a failover transport. Options apply to every candidate.
func NewFailover(candidates []Endpoint, opts ...Option) *Failover {
	return &Failover{candidates: candidates, opts: opts}
}

// Open implements mailer.Transport. When every candidate fails, the
// returned error joins each candidate's classified failure, so an
// authentication rejection anywhere classifies the whole attempt.
func (f *Failover) Open(ctx context.Context, creds mailer.Credentials) (mailer.Session, error) {
	if len(f.candidates) == 0 {
		return nil, ErrNoCandidates
	}

	errs := make([]error, 0, len(f.candidates))
	for _, candidate := range f.candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sess, err := New(candidate, f.opts...).open(ctx, creds)
		if err == nil {
			return sess, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", candidate, err))
	}

	return nil, fmt.Errorf("smtp: all %d candidates failed: %w", len(f.candidates), errors.Join(errs...))
}
