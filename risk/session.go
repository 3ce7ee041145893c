package risk

import "time"

// Session is the day's realized P/L for this bot. Only Gate mutates it.
type Session struct {
	DailyPnL  float64
	ResetDate time.Time // midnight of the session day
}

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
