// Package broker defines the capability interface the trading core uses to
// reach a brokerage: market data, account state, and order execution.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/trendbot/market"
)

// ErrDataUnavailable is wrapped by read calls that could not produce bars,
// ticks, or account information. The caller skips the cycle.
var ErrDataUnavailable = errors.New("broker: data unavailable")

// MarketData is the read-only half of a broker.
type MarketData interface {
	// FetchBars returns the most recent count closed bars, oldest first.
	FetchBars(ctx context.Context, symbol, timeframe string, count int) ([]market.Bar, error)
	GetTick(ctx context.Context, symbol string) (market.Tick, error)
	GetSymbolSpec(ctx context.Context, symbol string) (market.SymbolSpec, error)
	// Now returns the broker's clock.
	Now(ctx context.Context) (time.Time, error)
}

type Broker interface {
	MarketData

	GetAccount(ctx context.Context) (market.Account, error)
	// GetOpenPosition returns the open position for symbol tagged with
	// magic, or nil when there is none.
	GetOpenPosition(ctx context.Context, symbol string, magic int) (*market.Position, error)

	SubmitMarketOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	ModifyStop(ctx context.Context, req ModifyRequest) (ModifyResult, error)
	ClosePosition(ctx context.Context, req CloseRequest) (CloseResult, error)

	// FetchClosedDeals returns deals executed in [from, to].
	FetchClosedDeals(ctx context.Context, from, to time.Time) ([]market.Deal, error)
}

type OrderRequest struct {
	Symbol    string
	Side      market.Side
	Volume    float64
	Price     float64
	SL        float64
	TP        float64
	Deviation int // accepted slippage, in points
	Magic     int
	Comment   string
}

// OrderResult reports a market order outcome. A rejected order is a
// result with Success false, not an error; errors mean the request could
// not be delivered.
type OrderResult struct {
	Success    bool
	DealID     string
	PositionID string
	Price      float64
	Retcode    int
	Message    string
}

type ModifyRequest struct {
	PositionID string
	Symbol     string
	SL         float64
	TP         float64
	Magic      int
	Comment    string
}

type ModifyResult struct {
	Success bool
	Retcode int
	Message string
}

type CloseRequest struct {
	Position  market.Position
	Price     float64
	Deviation int
	Magic     int
	Comment   string
}

type CloseResult struct {
	Success     bool
	DealID      string
	RealizedPnL float64
	ClosePrice  float64
	Retcode     int
	Message     string
}
