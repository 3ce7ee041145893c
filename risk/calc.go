package risk

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/trendbot/market"
)

// RR is the reward to risk ratio of a planned trade.
func RR(entry, stop, takeProfit float64) float64 {
	risk := math.Abs(entry - stop)
	reward := math.Abs(takeProfit - entry)
	if risk == 0 {
		return 0
	}
	return reward / risk
}

// Budget is the currency amount a trade may lose: pct percent of balance.
func Budget(balance, pct float64) float64 {
	return balance * pct / 100
}

// Size is a broker-compliant volume and the numbers it was derived from.
type Size struct {
	Volume      float64
	RawVolume   float64
	Points      float64 // stop distance in points
	RiskPerUnit float64 // currency lost per volume unit at the stop
	Precision   int
}

// PositionSize converts a risk budget and stop distance into a volume the
// broker will accept. The raw volume is clamped to [VolumeMin, VolumeMax],
// snapped to the nearest VolumeStep multiple and rounded to the step's
// precision. Every rejection wraps ErrConstraint.
func PositionSize(spec market.SymbolSpec, entry, stop, budget float64) (Size, error) {
	if entry == stop {
		return Size{}, violation("STOP_AT_ENTRY", "stop %v equals entry", stop)
	}
	if spec.Point <= 0 {
		return Size{}, violation("BAD_SPEC", "point %v must be positive", spec.Point)
	}

	sz := Size{
		Points:    stopPoints(entry, stop, spec.Point),
		Precision: spec.VolumePrecision(),
	}
	if sz.Points < spec.MinStopPoints {
		return sz, violation("STOP_TOO_CLOSE", "stop distance %.1f points below broker minimum %.1f", sz.Points, spec.MinStopPoints)
	}
	if spec.TickSize == 0 {
		return sz, violation("BAD_SPEC", "tick size is zero")
	}

	sz.RiskPerUnit = sz.Points * (spec.TickValue / spec.TickSize)
	if sz.RiskPerUnit <= 0 {
		return sz, violation("BAD_RISK", "risk per unit %v is not positive", sz.RiskPerUnit)
	}

	sz.RawVolume = budget / sz.RiskPerUnit
	sz.Volume = snapVolume(spec, sz.RawVolume, sz.Precision)
	if sz.Volume < spec.VolumeMin || sz.Volume <= 0 {
		return sz, violation("VOLUME_TOO_SMALL", "volume %v below minimum %v (raw %.6f)", sz.Volume, spec.VolumeMin, sz.RawVolume)
	}
	return sz, nil
}

// stopPoints is the stop distance in points. Both prices sit on the point
// grid, so the quotient is rounded to drop float noise: a stop placed
// exactly at the broker minimum must not come out a hair below it.
func stopPoints(entry, stop, point float64) float64 {
	d := decimal.NewFromFloat(math.Abs(entry - stop)).
		Div(decimal.NewFromFloat(point)).
		Round(6)
	return d.InexactFloat64()
}

func snapVolume(spec market.SymbolSpec, raw float64, precision int) float64 {
	v := raw
	if spec.VolumeMax > 0 {
		v = math.Min(v, spec.VolumeMax)
	}
	v = math.Max(v, spec.VolumeMin)

	d := decimal.NewFromFloat(v)
	if spec.VolumeStep > 0 {
		step := decimal.NewFromFloat(spec.VolumeStep)
		d = d.Div(step).Round(0).Mul(step)
		// nearest multiple may sit above a max that is not itself a multiple
		if spec.VolumeMax > 0 && d.GreaterThan(decimal.NewFromFloat(spec.VolumeMax)) {
			d = d.Sub(step)
		}
	}
	out, _ := d.Round(int32(precision)).Float64()
	return out
}
