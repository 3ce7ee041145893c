package risk

import (
	"math"

	"github.com/rustyeddy/trendbot/market"
)

type StopConfig struct {
	SLMultiplier float64 // ATR multiple for the stop
	TPMultiplier float64 // ATR multiple for the target
	RRRatio      float64 // target as a multiple of the stop distance
}

// Levels are rounded stop and target prices for one entry.
type Levels struct {
	SL     float64
	TP     float64
	SLDist float64
	TPDist float64
}

// StopTarget derives SL and TP from ATR. The target distance is the larger
// of the ATR target and the reward:risk target. Either distance below the
// broker minimum is widened to it. Levels that end up non-positive or on
// the wrong side of entry are rejected with ErrConstraint.
func StopTarget(spec market.SymbolSpec, atr float64, side market.Side, entry float64, cfg StopConfig) (Levels, error) {
	slDist := atr * cfg.SLMultiplier
	tpDist := math.Max(atr*cfg.TPMultiplier, slDist*cfg.RRRatio)

	if spec.Point > 0 && spec.MinStopPoints > 0 {
		minDist := spec.MinStopPoints * spec.Point
		if slDist/spec.Point < spec.MinStopPoints {
			slDist = minDist
		}
		if tpDist/spec.Point < spec.MinStopPoints {
			tpDist = minDist
		}
	}

	var lv Levels
	switch side {
	case market.Buy:
		lv.SL = entry - slDist
		lv.TP = entry + tpDist
	case market.Sell:
		lv.SL = entry + slDist
		lv.TP = entry - tpDist
	default:
		return Levels{}, violation("BAD_SIDE", "side %d", side)
	}
	lv.SL = spec.RoundPrice(lv.SL)
	lv.TP = spec.RoundPrice(lv.TP)
	lv.SLDist, lv.TPDist = slDist, tpDist

	if lv.SL <= 0 || lv.TP <= 0 {
		return Levels{}, violation("NON_POSITIVE_LEVELS", "sl %v tp %v", lv.SL, lv.TP)
	}
	if side == market.Buy && !(lv.SL < entry && entry < lv.TP) {
		return Levels{}, violation("BAD_LEVELS", "buy needs sl %v < entry %v < tp %v", lv.SL, entry, lv.TP)
	}
	if side == market.Sell && !(lv.TP < entry && entry < lv.SL) {
		return Levels{}, violation("BAD_LEVELS", "sell needs tp %v < entry %v < sl %v", lv.TP, entry, lv.SL)
	}
	return lv, nil
}
