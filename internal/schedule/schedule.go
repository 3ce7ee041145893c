// Package schedule aligns the trading loop to bar boundaries.
package schedule

import (
	"context"
	"strings"
	"time"

	"github.com/rustyeddy/trendbot/market"
)

const (
	minSleep      = 100 * time.Millisecond
	negativeSleep = time.Second
	unknownSleep  = time.Minute
)

// NextBarOpen returns the open time of the bar following the one that
// contains now, in now's location. ok is false for an unknown timeframe.
func NextBarOpen(now time.Time, timeframe string) (next time.Time, ok bool) {
	tf := strings.ToUpper(strings.TrimSpace(timeframe))
	dur, err := market.TimeframeDuration(tf)
	if err != nil {
		return time.Time{}, false
	}

	y, m, d := now.Date()
	loc := now.Location()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)

	switch tf {
	case "D1":
		return midnight.AddDate(0, 0, 1), true
	case "W1":
		days := (int(time.Monday) - int(now.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		return midnight.AddDate(0, 0, days), true
	case "MN1":
		return time.Date(y, m+1, 1, 0, 0, 0, 0, loc), true
	}

	sec := now.Truncate(time.Second)
	step := int64(dur / time.Second)
	sinceOpen := int64(sec.Sub(midnight)/time.Second) % step
	return sec.Add(time.Duration(step-sinceOpen) * time.Second), true
}

// Delay is how long to wait from now until the next bar opens.
func Delay(now time.Time, timeframe string) time.Duration {
	next, ok := NextBarOpen(now, timeframe)
	if !ok {
		return unknownSleep
	}
	d := next.Sub(now)
	switch {
	case d < 0:
		return negativeSleep
	case d < minSleep:
		return minSleep
	}
	return d
}

// SleepUntilNextBar blocks until the next bar opens or ctx is done.
func SleepUntilNextBar(ctx context.Context, now time.Time, timeframe string) error {
	t := time.NewTimer(Delay(now, timeframe))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
