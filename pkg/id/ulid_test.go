package id_test

import (
	"regexp"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dazzlo/bulkmail/pkg/id"
)

var crockford = regexp.MustCompile(`^[0-9A-HJ-KMNP-TV-Z]{26}$`)

func TestNewULID(t *testing.T) {
	t.Parallel()

	t.Run("uses Crockford Base32", func(t *testing.T) {
		t.Parallel()
		require.Regexp(t, crockford, id.NewULID())
	})

	t.Run("generates unique IDs", func(t *testing.T) {
		t.Parallel()

		const iterations = 1000
		seen := make(map[string]bool, iterations)
		for range iterations {
			v := id.NewULID()
			require.False(t, seen[v], "duplicate ULID generated: %s", v)
			seen[v] = true
		}
	})
}

func TestNewULIDAt(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 7, 23, 10, 0, 0, 0, time.UTC)

	ids := []string{
		id.NewULIDAt(base.Add(2 * time.Second)),
		id.NewULIDAt(base),
		id.NewULIDAt(base.Add(time.Second)),
	}
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	assert.Equal(t, []string{ids[1], ids[2], ids[0]}, sorted)

	got, err := id.Time(ids[1])
	require.NoError(t, err)
	assert.True(t, got.Equal(base), "got %s", got)
}

func TestTime_Invalid(t *testing.T) {
	t.Parallel()

	_, err := id.Time("not-a-ulid")
	require.Error(t, err)
}
