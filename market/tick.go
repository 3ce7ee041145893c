package market

import "time"

type Tick struct {
	Symbol string
	Time   time.Time
	Bid    float64
	Ask    float64
}

func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}

// EntryPrice is the price a market order on side fills at: ask for
// buys, bid for sells.
func (t Tick) EntryPrice(side Side) float64 {
	if side == Sell {
		return t.Bid
	}
	return t.Ask
}

// ExitPrice is the price an open position on side closes at.
func (t Tick) ExitPrice(side Side) float64 {
	if side == Sell {
		return t.Ask
	}
	return t.Bid
}
