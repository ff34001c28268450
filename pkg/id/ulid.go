// Package id generates sortable identifiers for batches and requests.
package id

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewULID returns a 26-character ULID for the current time.
func NewULID() string {
	return ulid.Make().String()
}

// NewULIDAt returns a ULID whose timestamp is t. Batches use the
// dispatcher's clock so ids sort with their StartedAt.
func NewULIDAt(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// Time returns the creation time encoded in a ULID string.
func Time(s string) (time.Time, error) {
	u, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ulid.Time(u.Time()), nil
}
