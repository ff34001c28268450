package recipients

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyInput indicates the input holds no rows at all.
	ErrEmptyInput = errors.New("recipients: empty input")

	// ErrMissingColumns indicates the header lacks columns the template needs.
	ErrMissingColumns = errors.New("recipients: missing required columns")

	// ErrNoRecipients indicates no row carried a usable email address.
	ErrNoRecipients = errors.New("recipients: no valid recipients")

	// ErrMalformedInput indicates the file could not be parsed.
	ErrMalformedInput = errors.New("recipients: malformed input")
)

// MissingColumnsError lists required columns absent from the input.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMissingColumns, strings.Join(e.Missing, ", "))
}

func (e *MissingColumnsError) Unwrap() error {
	return ErrMissingColumns
}
