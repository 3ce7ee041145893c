package indicators

import (
	"math"

	"github.com/rustyeddy/trendbot/market"
)

// Row is one bar with its indicator values. RSI is NaN when the frame was
// built without the momentum filter.
type Row struct {
	market.Bar

	SMAFast  float64
	SMASlow  float64
	SMATrend float64
	ATR      float64
	RSI      float64
}

// Frame is an oldest-first run of fully computed rows.
type Frame []Row

// Last returns the newest row.
func (f Frame) Last() (Row, bool) {
	if len(f) == 0 {
		return Row{}, false
	}
	return f[len(f)-1], true
}

// Build computes the indicator columns over bars and drops every row that
// is missing a required value. An empty result is ErrInsufficientData.
func Build(bars []market.Bar, p Params) (Frame, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	n := len(bars)
	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	for i, b := range bars {
		high[i], low[i], closes[i] = b.High, b.Low, b.Close
	}

	fast := SMA(closes, p.FastLen)
	slow := SMA(closes, p.SlowLen)
	trend := SMA(closes, p.TrendLen)
	atr := ATR(high, low, closes, p.ATRPeriod)

	var rsi []float64
	if p.RSI {
		rsi = RSI(closes, p.RSIPeriod)
	}

	frame := make(Frame, 0, n)
	for i, b := range bars {
		row := Row{
			Bar:      b,
			SMAFast:  fast[i],
			SMASlow:  slow[i],
			SMATrend: trend[i],
			ATR:      atr[i],
			RSI:      math.NaN(),
		}
		if p.RSI {
			row.RSI = rsi[i]
		}
		if !row.complete(p.RSI) {
			continue
		}
		frame = append(frame, row)
	}

	if len(frame) == 0 {
		return nil, ErrInsufficientData
	}
	return frame, nil
}

func (r Row) complete(withRSI bool) bool {
	for _, v := range []float64{r.SMAFast, r.SMASlow, r.SMATrend, r.ATR} {
		if math.IsNaN(v) {
			return false
		}
	}
	return !withRSI || !math.IsNaN(r.RSI)
}
