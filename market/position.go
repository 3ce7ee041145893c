package market

import "time"

// Position is a read-only view of an open position held at the broker.
// It changes only through the broker (modify stop, close).
type Position struct {
	Ticket    string
	Symbol    string
	Side      Side
	OpenPrice float64
	Volume    float64
	SL        float64 // 0 when no stop is attached
	TP        float64 // 0 when no target is attached
	OpenTime  time.Time
	Magic     int
}

// DealEntry tells whether a deal opened or closed exposure.
type DealEntry int

const (
	DealIn DealEntry = iota
	DealOut
)

// Deal is a filled execution from the broker's history.
type Deal struct {
	ID         string
	PositionID string
	Symbol     string
	Time       time.Time
	Side       Side
	Volume     float64
	Price      float64
	Profit     float64
	Magic      int
	Entry      DealEntry
}
