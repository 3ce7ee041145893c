package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/trendbot/broker"
	"github.com/rustyeddy/trendbot/journal"
	"github.com/rustyeddy/trendbot/market"
	"github.com/rustyeddy/trendbot/metrics"
	"github.com/rustyeddy/trendbot/risk"
)

// ExecConfig is what the executor needs to size and place orders.
type ExecConfig struct {
	Symbol      string
	Magic       int
	Deviation   int // points
	RiskPercent float64
	Stops       risk.StopConfig
	Trail       risk.TrailConfig
}

// Executor turns decisions into broker requests and records every
// outcome in the event log.
type Executor struct {
	cfg     ExecConfig
	broker  broker.Broker
	events  journal.EventLog
	metrics *metrics.Metrics
	log     zerolog.Logger
	pnl     func() float64
	clock   func() time.Time
}

func NewExecutor(cfg ExecConfig, b broker.Broker, events journal.EventLog, m *metrics.Metrics, log zerolog.Logger, pnl func() float64) *Executor {
	if pnl == nil {
		pnl = func() float64 { return 0 }
	}
	if m == nil {
		m = metrics.New()
	}
	return &Executor{
		cfg:     cfg,
		broker:  b,
		events:  events,
		metrics: m,
		log:     log,
		pnl:     pnl,
		clock:   time.Now,
	}
}

// Open prices, sizes and submits a market order on side. Constraint
// violations abort the attempt and return nil; a rejected order is
// recorded as "Trade Failed".
func (x *Executor) Open(ctx context.Context, spec market.SymbolSpec, side market.Side, atr, balance float64, conds map[string]string) error {
	tick, err := x.broker.GetTick(ctx, x.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("tick for entry: %w", err)
	}
	entry := tick.EntryPrice(side)

	lv, err := risk.StopTarget(spec, atr, side, entry, x.cfg.Stops)
	if err != nil {
		return x.abort(err, side, entry, atr, 0)
	}

	budget := risk.Budget(balance, x.cfg.RiskPercent)
	size, err := risk.PositionSize(spec, entry, lv.SL, budget)
	if err != nil {
		return x.abort(err, side, entry, atr, budget)
	}

	x.log.Info().
		Str("side", side.String()).
		Float64("entry", entry).
		Float64("sl", lv.SL).
		Float64("tp", lv.TP).
		Float64("budget", budget).
		Float64("raw_volume", size.RawVolume).
		Float64("volume", size.Volume).
		Msg("placing market order")

	res, err := x.broker.SubmitMarketOrder(ctx, broker.OrderRequest{
		Symbol:    x.cfg.Symbol,
		Side:      side,
		Volume:    size.Volume,
		Price:     entry,
		SL:        lv.SL,
		TP:        lv.TP,
		Deviation: x.cfg.Deviation,
		Magic:     x.cfg.Magic,
		Comment:   "trendbot " + side.String(),
	})
	if err != nil {
		x.metrics.OrdersTotal.WithLabelValues(side.String(), "error").Inc()
		return fmt.Errorf("submit %s order: %w", side, err)
	}

	ev := journal.Event{
		Time:       x.clock(),
		Symbol:     x.cfg.Symbol,
		Side:       side.String(),
		Volume:     journal.Float(size.Volume),
		Entry:      journal.Float(entry),
		SL:         journal.Float(lv.SL),
		TP:         journal.Float(lv.TP),
		DailyPnL:   journal.Float(x.pnl()),
		Conditions: conds,
	}
	if !res.Success {
		x.metrics.OrdersTotal.WithLabelValues(side.String(), "rejected").Inc()
		x.log.Error().Int("retcode", res.Retcode).Str("message", res.Message).Msg("order rejected")
		ev.Kind = journal.TradeFailed
		ev.Comment = fmt.Sprintf("Order failed: retcode %d, %s", res.Retcode, res.Message)
		return x.record(ev)
	}

	x.metrics.OrdersTotal.WithLabelValues(side.String(), "filled").Inc()
	if res.Price > 0 {
		ev.Entry = journal.Float(res.Price)
	}
	x.log.Info().Str("position", res.PositionID).Float64("price", res.Price).Msg("order filled")
	ev.Kind = journal.TradeOpened
	ev.Comment = fmt.Sprintf("Deal %s, position %s", res.DealID, res.PositionID)
	return x.record(ev)
}

// abort logs a constraint violation and swallows it. Other errors escape.
func (x *Executor) abort(err error, side market.Side, entry, atr, budget float64) error {
	if !errors.Is(err, risk.ErrConstraint) {
		return err
	}
	x.metrics.OrdersTotal.WithLabelValues(side.String(), "constraint").Inc()
	x.log.Warn().
		Err(err).
		Str("side", side.String()).
		Float64("entry", entry).
		Float64("atr", atr).
		Float64("budget", budget).
		Msg("trade aborted")
	return nil
}

// Close flattens pos at the current exit price.
func (x *Executor) Close(ctx context.Context, pos market.Position, conds map[string]string) (broker.CloseResult, error) {
	tick, err := x.broker.GetTick(ctx, pos.Symbol)
	if err != nil {
		return broker.CloseResult{}, fmt.Errorf("tick for close: %w", err)
	}
	price := tick.ExitPrice(pos.Side)

	res, err := x.broker.ClosePosition(ctx, broker.CloseRequest{
		Position:  pos,
		Price:     price,
		Deviation: x.cfg.Deviation,
		Magic:     x.cfg.Magic,
		Comment:   "trendbot close",
	})
	if err != nil {
		return res, fmt.Errorf("close position %s: %w", pos.Ticket, err)
	}

	ev := journal.Event{
		Time:       x.clock(),
		Symbol:     pos.Symbol,
		Side:       pos.Side.String(),
		Volume:     journal.Float(pos.Volume),
		Entry:      journal.Float(pos.OpenPrice),
		SL:         journal.Float(pos.SL),
		TP:         journal.Float(pos.TP),
		Conditions: conds,
	}
	if !res.Success {
		x.log.Error().Str("position", pos.Ticket).Int("retcode", res.Retcode).Str("message", res.Message).Msg("close failed")
		ev.Kind = journal.CloseFailed
		ev.DailyPnL = journal.Float(x.pnl())
		ev.Comment = fmt.Sprintf("Close failed: retcode %d, %s", res.Retcode, res.Message)
		return res, x.record(ev)
	}

	closePrice := res.ClosePrice
	if closePrice == 0 {
		closePrice = price
	}
	x.log.Info().Str("position", pos.Ticket).Float64("price", closePrice).Float64("pnl", res.RealizedPnL).Msg("position closed")
	ev.Kind = journal.TradeClosed
	ev.ClosePrice = journal.Float(closePrice)
	ev.Profit = journal.Float(res.RealizedPnL)
	ev.DailyPnL = journal.Float(x.pnl() + res.RealizedPnL)
	ev.Comment = fmt.Sprintf("Position %s closed", pos.Ticket)
	return res, x.record(ev)
}

// TrailStop tightens the stop of pos when the trailing rule allows it.
// A failed modification is logged and not retried.
func (x *Executor) TrailStop(ctx context.Context, pos market.Position, spec market.SymbolSpec, atr float64) (bool, error) {
	if !x.cfg.Trail.Enabled {
		return false, nil
	}
	tick, err := x.broker.GetTick(ctx, pos.Symbol)
	if err != nil {
		return false, fmt.Errorf("tick for trailing stop: %w", err)
	}

	sl, ok := risk.TrailStop(pos, spec, tick.ExitPrice(pos.Side), atr, x.cfg.Trail)
	if !ok {
		return false, nil
	}

	res, err := x.broker.ModifyStop(ctx, broker.ModifyRequest{
		PositionID: pos.Ticket,
		Symbol:     pos.Symbol,
		SL:         sl,
		TP:         pos.TP,
		Magic:      x.cfg.Magic,
		Comment:    "trendbot trail",
	})
	switch {
	case err != nil:
		x.metrics.TrailingUpdates.WithLabelValues("error").Inc()
		x.log.Error().Err(err).Str("position", pos.Ticket).Float64("sl", sl).Msg("trailing stop update failed")
		return false, nil
	case !res.Success:
		x.metrics.TrailingUpdates.WithLabelValues("rejected").Inc()
		x.log.Error().Str("position", pos.Ticket).Float64("sl", sl).Int("retcode", res.Retcode).Str("message", res.Message).Msg("trailing stop rejected")
		return false, nil
	}

	x.metrics.TrailingUpdates.WithLabelValues("applied").Inc()
	x.log.Info().Str("position", pos.Ticket).Float64("old_sl", pos.SL).Float64("new_sl", sl).Msg("trailing stop moved")
	return true, nil
}

func (x *Executor) record(ev journal.Event) error {
	if err := x.events.Record(ev); err != nil {
		return fmt.Errorf("record %s: %w", ev.Kind, err)
	}
	return nil
}
