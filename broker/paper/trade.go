package paper

import "github.com/rustyeddy/trendbot/market"

type trade struct {
	pos  market.Position
	spec market.SymbolSpec
}

func (t *trade) hitStopLoss(price float64) bool {
	if t.pos.SL == 0 {
		return false
	}
	if t.pos.Side == market.Buy {
		return price <= t.pos.SL
	}
	return price >= t.pos.SL
}

func (t *trade) hitTakeProfit(price float64) bool {
	if t.pos.TP == 0 {
		return false
	}
	if t.pos.Side == market.Buy {
		return price >= t.pos.TP
	}
	return price <= t.pos.TP
}

// profit is the account-currency P/L of closing at price. TickValue over
// TickSize is the value of a one point move on one volume unit, the same
// ratio the position sizer risks against.
func (t *trade) profit(price float64) float64 {
	if t.spec.TickSize == 0 || t.spec.Point == 0 {
		return 0
	}
	points := (price - t.pos.OpenPrice) * float64(t.pos.Side) / t.spec.Point
	return points * t.spec.TickValue / t.spec.TickSize * t.pos.Volume
}
