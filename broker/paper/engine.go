// Package paper simulates order execution against a live market-data
// source. Fills happen at the quoted bid/ask, stops and targets trigger on
// the ticks the engine observes, and account balance follows realized P/L.
package paper

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/trendbot/broker"
	"github.com/rustyeddy/trendbot/internal/id"
	"github.com/rustyeddy/trendbot/market"
)

// Return codes follow the trade server codes the bot logs.
const (
	RetcodeDone          = 10009
	RetcodeInvalid       = 10013
	RetcodeInvalidVolume = 10014
	RetcodeInvalidStops  = 10016
	RetcodePositionGone  = 10036
)

// Engine is a broker.Broker that keeps positions in memory.
type Engine struct {
	feed broker.MarketData
	log  zerolog.Logger

	mu     sync.Mutex
	acct   market.Account
	trades map[string]*trade
	order  []string // tickets in open order
	deals  []market.Deal
}

var _ broker.Broker = (*Engine)(nil)

type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New returns an engine quoting from feed with a starting balance.
func New(feed broker.MarketData, balance float64, currency string, opts ...Option) *Engine {
	e := &Engine{
		feed: feed,
		log:  zerolog.Nop(),
		acct: market.Account{
			ID:         "paper",
			Currency:   currency,
			Balance:    balance,
			Equity:     balance,
			FreeMargin: balance,
		},
		trades: make(map[string]*trade),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) FetchBars(ctx context.Context, symbol, timeframe string, count int) ([]market.Bar, error) {
	return e.feed.FetchBars(ctx, symbol, timeframe, count)
}

func (e *Engine) GetSymbolSpec(ctx context.Context, symbol string) (market.SymbolSpec, error) {
	return e.feed.GetSymbolSpec(ctx, symbol)
}

func (e *Engine) Now(ctx context.Context) (time.Time, error) {
	return e.feed.Now(ctx)
}

// GetTick quotes symbol from the feed and runs stop/target triggers
// against the new price before returning it.
func (e *Engine) GetTick(ctx context.Context, symbol string) (market.Tick, error) {
	tick, err := e.feed.GetTick(ctx, symbol)
	if err != nil {
		return market.Tick{}, err
	}
	e.UpdatePrice(tick)
	return tick, nil
}

// UpdatePrice closes positions on tick.Symbol whose stop or target the
// tick crosses, then revalues equity.
func (e *Engine) UpdatePrice(tick market.Tick) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ticket := range append([]string(nil), e.order...) {
		t := e.trades[ticket]
		if t.pos.Symbol != tick.Symbol {
			continue
		}

		mark := tick.ExitPrice(t.pos.Side)
		reason := ""
		switch {
		case t.hitStopLoss(mark):
			reason = "StopLoss"
			mark = t.pos.SL
		case t.hitTakeProfit(mark):
			reason = "TakeProfit"
			mark = t.pos.TP
		}
		if reason == "" {
			continue
		}

		deal := e.closeLocked(t, mark, tick.Time)
		e.log.Info().
			Str("ticket", ticket).
			Str("reason", reason).
			Float64("price", mark).
			Float64("profit", deal.Profit).
			Msg("paper position closed")
	}

	e.revalueLocked(tick)
}

func (e *Engine) GetAccount(ctx context.Context) (market.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.acct, nil
}

func (e *Engine) GetOpenPosition(ctx context.Context, symbol string, magic int) (*market.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ticket := range e.order {
		t := e.trades[ticket]
		if t.pos.Symbol == symbol && t.pos.Magic == magic {
			pos := t.pos
			return &pos, nil
		}
	}
	return nil, nil
}

// SubmitMarketOrder fills at the current ask (buy) or bid (sell). Stops
// must sit on the losing side of the fill and targets on the winning side.
func (e *Engine) SubmitMarketOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	spec, err := e.feed.GetSymbolSpec(ctx, req.Symbol)
	if err != nil {
		return broker.OrderResult{}, err
	}
	tick, err := e.GetTick(ctx, req.Symbol)
	if err != nil {
		return broker.OrderResult{}, err
	}

	if req.Side != market.Buy && req.Side != market.Sell {
		return broker.OrderResult{Retcode: RetcodeInvalid, Message: "invalid side"}, nil
	}
	if req.Volume <= 0 || (spec.VolumeMin > 0 && req.Volume < spec.VolumeMin) ||
		(spec.VolumeMax > 0 && req.Volume > spec.VolumeMax) {
		return broker.OrderResult{Retcode: RetcodeInvalidVolume, Message: fmt.Sprintf("invalid volume %v", req.Volume)}, nil
	}

	price := tick.EntryPrice(req.Side)
	if req.Deviation > 0 && req.Price > 0 && math.Abs(price-req.Price) > float64(req.Deviation)*spec.Point {
		return broker.OrderResult{Retcode: RetcodeInvalid, Message: "requote: price moved beyond deviation"}, nil
	}
	if !stopsValid(req.Side, price, req.SL, req.TP) {
		return broker.OrderResult{Retcode: RetcodeInvalidStops, Message: "invalid stops"}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ticket := id.At(tick.Time)
	e.trades[ticket] = &trade{
		pos: market.Position{
			Ticket:    ticket,
			Symbol:    req.Symbol,
			Side:      req.Side,
			OpenPrice: price,
			Volume:    req.Volume,
			SL:        req.SL,
			TP:        req.TP,
			OpenTime:  tick.Time,
			Magic:     req.Magic,
		},
		spec: spec,
	}
	e.order = append(e.order, ticket)

	deal := market.Deal{
		ID:         id.At(tick.Time),
		PositionID: ticket,
		Symbol:     req.Symbol,
		Time:       tick.Time,
		Side:       req.Side,
		Volume:     req.Volume,
		Price:      price,
		Magic:      req.Magic,
		Entry:      market.DealIn,
	}
	e.deals = append(e.deals, deal)

	return broker.OrderResult{
		Success:    true,
		DealID:     deal.ID,
		PositionID: ticket,
		Price:      price,
		Retcode:    RetcodeDone,
		Message:    "done",
	}, nil
}

// ModifyStop moves SL (and TP when non-zero) on an open position. The new
// stop must not already be crossed by the last price.
func (e *Engine) ModifyStop(ctx context.Context, req broker.ModifyRequest) (broker.ModifyResult, error) {
	tick, err := e.GetTick(ctx, req.Symbol)
	if err != nil {
		return broker.ModifyResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.trades[req.PositionID]
	if !ok {
		return broker.ModifyResult{Retcode: RetcodePositionGone, Message: "position not found"}, nil
	}

	tp := t.pos.TP
	if req.TP != 0 {
		tp = req.TP
	}
	if !stopsValid(t.pos.Side, tick.ExitPrice(t.pos.Side), req.SL, tp) {
		return broker.ModifyResult{Retcode: RetcodeInvalidStops, Message: "invalid stops"}, nil
	}

	t.pos.SL = req.SL
	t.pos.TP = tp
	return broker.ModifyResult{Success: true, Retcode: RetcodeDone, Message: "done"}, nil
}

// ClosePosition closes the whole position at the current exit price.
func (e *Engine) ClosePosition(ctx context.Context, req broker.CloseRequest) (broker.CloseResult, error) {
	tick, err := e.GetTick(ctx, req.Position.Symbol)
	if err != nil {
		return broker.CloseResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.trades[req.Position.Ticket]
	if !ok {
		return broker.CloseResult{Retcode: RetcodePositionGone, Message: "position not found"}, nil
	}

	price := tick.ExitPrice(t.pos.Side)
	deal := e.closeLocked(t, price, tick.Time)
	e.revalueLocked(tick)

	return broker.CloseResult{
		Success:     true,
		DealID:      deal.ID,
		RealizedPnL: deal.Profit,
		ClosePrice:  price,
		Retcode:     RetcodeDone,
		Message:     "done",
	}, nil
}

// FetchClosedDeals returns every deal executed in [from, to], entries and
// exits, oldest first.
func (e *Engine) FetchClosedDeals(ctx context.Context, from, to time.Time) ([]market.Deal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []market.Deal
	for _, d := range e.deals {
		if d.Time.Before(from) || d.Time.After(to) {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

func (e *Engine) closeLocked(t *trade, price float64, at time.Time) market.Deal {
	profit := t.profit(price)
	e.acct.Balance += profit

	delete(e.trades, t.pos.Ticket)
	for i, ticket := range e.order {
		if ticket == t.pos.Ticket {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}

	deal := market.Deal{
		ID:         id.At(at),
		PositionID: t.pos.Ticket,
		Symbol:     t.pos.Symbol,
		Time:       at,
		Side:       t.pos.Side.Opposite(),
		Volume:     t.pos.Volume,
		Price:      price,
		Profit:     profit,
		Magic:      t.pos.Magic,
		Entry:      market.DealOut,
	}
	e.deals = append(e.deals, deal)
	return deal
}

// revalueLocked marks open positions on tick.Symbol to market. Positions
// on other symbols keep their last contribution through Balance only.
func (e *Engine) revalueLocked(tick market.Tick) {
	equity := e.acct.Balance
	for _, ticket := range e.order {
		t := e.trades[ticket]
		if t.pos.Symbol != tick.Symbol {
			continue
		}
		equity += t.profit(tick.ExitPrice(t.pos.Side))
	}
	e.acct.Equity = equity
	e.acct.FreeMargin = equity - e.acct.MarginUsed
}

func stopsValid(side market.Side, price, sl, tp float64) bool {
	switch side {
	case market.Buy:
		return (sl == 0 || sl < price) && (tp == 0 || tp > price)
	case market.Sell:
		return (sl == 0 || sl > price) && (tp == 0 || tp < price)
	}
	return false
}
