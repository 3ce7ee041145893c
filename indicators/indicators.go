// Package indicators builds the indicator frame the signal engine reads:
// bars aligned with fast, slow and trend SMAs, ATR and optionally RSI.
//
// SMA is the arithmetic mean. ATR and RSI use Wilder smoothing, the TA-Lib
// convention. Values inside an indicator's warm-up window are NaN.
package indicators

import (
	"errors"
	"fmt"
)

// ErrInsufficientData means no row survived warm-up trimming. Callers skip
// the cycle; it is not a failure.
var ErrInsufficientData = errors.New("indicators: insufficient data")

// Params selects the indicator lengths for a frame.
type Params struct {
	FastLen   int
	SlowLen   int
	TrendLen  int
	ATRPeriod int

	RSI       bool
	RSIPeriod int
}

// Validate rejects non-positive lengths.
func (p Params) Validate() error {
	for _, f := range []struct {
		name string
		v    int
	}{
		{"fast length", p.FastLen},
		{"slow length", p.SlowLen},
		{"trend length", p.TrendLen},
		{"atr period", p.ATRPeriod},
	} {
		if f.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", f.name, f.v)
		}
	}
	if p.RSI && p.RSIPeriod <= 0 {
		return fmt.Errorf("rsi period must be positive, got %d", p.RSIPeriod)
	}
	return nil
}

// Warmup is the number of leading bars Build drops.
func (p Params) Warmup() int {
	w := max(p.FastLen-1, p.SlowLen-1, p.TrendLen-1, p.ATRPeriod)
	if p.RSI {
		w = max(w, p.RSIPeriod)
	}
	return w
}
