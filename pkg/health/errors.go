package health

import "errors"

var (
	// ErrCheckFailed wraps the error of a dependency that did not answer.
	ErrCheckFailed = errors.New("health: check failed")
	// ErrCheckTimeout wraps the error of a dependency that answered too late.
	ErrCheckTimeout = errors.New("health: check timeout")
	// ErrNoChecks is returned by AnyOf without any candidate checks.
	ErrNoChecks = errors.New("health: no checks configured")
)
