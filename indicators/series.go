package indicators

import (
	"math"

	"github.com/markcheno/go-talib"
)

// TA-Lib fills the lookback window with zeros and indexes past the end of
// short inputs, so every wrapper checks length first and rewrites the
// lookback as NaN.

// SMA returns the simple moving average of in, same length as in.
func SMA(in []float64, period int) []float64 {
	if period <= 0 || len(in) < period {
		return nanSeries(len(in))
	}
	return maskLookback(talib.Sma(in, period), period-1)
}

// ATR returns Wilder's average true range, same length as the inputs.
func ATR(high, low, close []float64, period int) []float64 {
	if period <= 0 || len(close) <= period || len(high) != len(close) || len(low) != len(close) {
		return nanSeries(len(close))
	}
	return maskLookback(talib.Atr(high, low, close, period), period)
}

// RSI returns Wilder's relative strength index, same length as in.
func RSI(in []float64, period int) []float64 {
	if period <= 0 || len(in) <= period {
		return nanSeries(len(in))
	}
	return maskLookback(talib.Rsi(in, period), period)
}

func maskLookback(out []float64, lookback int) []float64 {
	for i := 0; i < lookback && i < len(out); i++ {
		out[i] = math.NaN()
	}
	return out
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
