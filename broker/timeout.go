package broker

import (
	"context"
	"time"

	"github.com/rustyeddy/trendbot/market"
)

// WithTimeout bounds every call on b by d. Expiry surfaces as
// context.DeadlineExceeded from the wrapped call. A non-positive d
// returns b unchanged.
func WithTimeout(b Broker, d time.Duration) Broker {
	if d <= 0 {
		return b
	}
	return &timeoutBroker{b: b, d: d}
}

type timeoutBroker struct {
	b Broker
	d time.Duration
}

func (t *timeoutBroker) FetchBars(ctx context.Context, symbol, timeframe string, count int) ([]market.Bar, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.b.FetchBars(ctx, symbol, timeframe, count)
}

func (t *timeoutBroker) GetTick(ctx context.Context, symbol string) (market.Tick, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.b.GetTick(ctx, symbol)
}

func (t *timeoutBroker) GetSymbolSpec(ctx context.Context, symbol string) (market.SymbolSpec, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.b.GetSymbolSpec(ctx, symbol)
}

func (t *timeoutBroker) Now(ctx context.Context) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.b.Now(ctx)
}

func (t *timeoutBroker) GetAccount(ctx context.Context) (market.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.b.GetAccount(ctx)
}

func (t *timeoutBroker) GetOpenPosition(ctx context.Context, symbol string, magic int) (*market.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.b.GetOpenPosition(ctx, symbol, magic)
}

func (t *timeoutBroker) SubmitMarketOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.b.SubmitMarketOrder(ctx, req)
}

func (t *timeoutBroker) ModifyStop(ctx context.Context, req ModifyRequest) (ModifyResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.b.ModifyStop(ctx, req)
}

func (t *timeoutBroker) ClosePosition(ctx context.Context, req CloseRequest) (CloseResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.b.ClosePosition(ctx, req)
}

func (t *timeoutBroker) FetchClosedDeals(ctx context.Context, from, to time.Time) ([]market.Deal, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.b.FetchClosedDeals(ctx, from, to)
}
