package market

import (
	"fmt"
	"strings"
	"time"
)

// Timeframes lists the supported bar intervals, shortest first.
var Timeframes = []string{"M1", "M5", "M15", "M30", "H1", "H4", "D1", "W1", "MN1"}

// TimeframeDuration returns the nominal length of a bar. MN1 is
// approximated as 30 days.
func TimeframeDuration(tf string) (time.Duration, error) {
	switch strings.ToUpper(strings.TrimSpace(tf)) {
	case "M1":
		return time.Minute, nil
	case "M5":
		return 5 * time.Minute, nil
	case "M15":
		return 15 * time.Minute, nil
	case "M30":
		return 30 * time.Minute, nil
	case "H1":
		return time.Hour, nil
	case "H4":
		return 4 * time.Hour, nil
	case "D1":
		return 24 * time.Hour, nil
	case "W1":
		return 7 * 24 * time.Hour, nil
	case "MN1":
		return 30 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported timeframe string: %s", tf)
	}
}

// IsIntraday reports whether tf is shorter than a day.
func IsIntraday(tf string) bool {
	d, err := TimeframeDuration(tf)
	return err == nil && d < 24*time.Hour
}
