package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeframeDuration(t *testing.T) {
	t.Parallel()

	for tf, want := range map[string]time.Duration{
		"M1":  time.Minute,
		"m5":  5 * time.Minute,
		"H4":  4 * time.Hour,
		"D1":  24 * time.Hour,
		"W1":  7 * 24 * time.Hour,
		"MN1": 30 * 24 * time.Hour,
	} {
		got, err := TimeframeDuration(tf)
		require.NoError(t, err, tf)
		assert.Equal(t, want, got, tf)
	}

	_, err := TimeframeDuration("M2")
	assert.Error(t, err)
}

func TestIsIntraday(t *testing.T) {
	t.Parallel()

	assert.True(t, IsIntraday("M15"))
	assert.True(t, IsIntraday("H4"))
	assert.False(t, IsIntraday("D1"))
	assert.False(t, IsIntraday("bogus"))
}
