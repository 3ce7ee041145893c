package id

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtSortsWithinMillisecond(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	prev := At(ts)
	require.Len(t, prev, 26)
	for i := 0; i < 100; i++ {
		next := At(ts)
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestAtCarriesTimestamp(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 4, 5, 6, 7, 8_000_000, time.UTC)
	u, err := ulid.ParseStrict(At(ts))
	require.NoError(t, err)
	assert.Equal(t, ts, ulid.Time(u.Time()).UTC())

	// later market time sorts later
	assert.Less(t, At(ts), At(ts.Add(time.Millisecond)))
}
