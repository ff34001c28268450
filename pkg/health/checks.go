package health

import (
	"context"
	"errors"
	"fmt"
)

// Pinger is implemented by dependencies that can be checked cheaply,
// such as an SMTP endpoint that answers with its greeting.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger to a CheckFunc. A Pinger that is also a
// fmt.Stringer names the target.
func PingCheck(p Pinger) CheckFunc {
	target := ""
	if s, ok := p.(fmt.Stringer); ok {
		target = s.String()
	}
	return func(ctx context.Context) (string, error) {
		err := p.Ping(ctx)
		switch {
		case err == nil:
			return target, nil
		case ctx.Err() != nil:
			return target, fmt.Errorf("%w: %s: %w", ErrCheckTimeout, target, err)
		default:
			return target, fmt.Errorf("%w: %s: %w", ErrCheckFailed, target, err)
		}
	}
}

// AnyOf passes with the target of the first passing check. Checks run in
// order. When all fail the errors are joined, so every mail server that
// was tried is reported.
func AnyOf(checks ...CheckFunc) CheckFunc {
	return func(ctx context.Context) (string, error) {
		if len(checks) == 0 {
			return "", ErrNoChecks
		}
		errs := make([]error, 0, len(checks))
		for _, check := range checks {
			target, err := check(ctx)
			if err == nil {
				return target, nil
			}
			errs = append(errs, err)
		}
		return "", errors.Join(errs...)
	}
}
