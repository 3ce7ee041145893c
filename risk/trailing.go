package risk

import (
	"math"

	"github.com/rustyeddy/trendbot/market"
)

type TrailConfig struct {
	Enabled         bool
	ATRFactor       float64
	MinProfitPoints float64
}

// TrailStop returns a tighter stop for pos at price, or false when the
// stop should stay. A BUY stop only rises and a SELL stop only falls. A
// SELL without a stop takes the candidate as is.
func TrailStop(pos market.Position, spec market.SymbolSpec, price, atr float64, cfg TrailConfig) (float64, bool) {
	if !cfg.Enabled || spec.Point <= 0 {
		return 0, false
	}

	switch pos.Side {
	case market.Buy:
		if (price-pos.OpenPrice)/spec.Point < cfg.MinProfitPoints {
			return 0, false
		}
		sl := spec.RoundPrice(math.Max(price-atr*cfg.ATRFactor, pos.SL))
		if sl > pos.SL {
			return sl, true
		}

	case market.Sell:
		if (pos.OpenPrice-price)/spec.Point < cfg.MinProfitPoints {
			return 0, false
		}
		cand := price + atr*cfg.ATRFactor
		if pos.SL != 0 {
			cand = math.Min(cand, pos.SL)
		}
		sl := spec.RoundPrice(cand)
		if pos.SL == 0 || sl < pos.SL {
			return sl, true
		}
	}
	return 0, false
}
