package market

import (
	"math"

	"github.com/shopspring/decimal"
)

// SymbolSpec carries the broker's trading constraints for one instrument.
// Sizing and stop math must honor every field.
type SymbolSpec struct {
	Name string

	Point         float64 // minimum price increment
	Digits        int     // price decimal places
	MinStopPoints float64 // minimum SL/TP distance from entry, in points

	TickValue float64 // account currency value of one tick for one volume unit
	TickSize  float64

	VolumeMin  float64
	VolumeMax  float64
	VolumeStep float64
}

// VolumePrecision is the number of decimals implied by VolumeStep.
// 1.0 -> 0, 0.1 -> 1, 0.01 -> 2. A non-positive step yields 0.
func (s SymbolSpec) VolumePrecision() int {
	if s.VolumeStep <= 0 {
		return 0
	}
	p := -int(math.Floor(math.Log10(s.VolumeStep)))
	if p < 0 {
		return 0
	}
	return p
}

// RoundPrice rounds a price to the symbol's digits.
func (s SymbolSpec) RoundPrice(p float64) float64 {
	return Round(p, s.Digits)
}

// Round rounds x to places decimals, half away from zero, on the decimal
// representation of x rather than its binary one.
func Round(x float64, places int) float64 {
	v, _ := decimal.NewFromFloat(x).Round(int32(places)).Float64()
	return v
}
