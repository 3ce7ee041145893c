package market

import "time"

// Bar is one closed OHLCV sample for a fixed timeframe interval.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}
