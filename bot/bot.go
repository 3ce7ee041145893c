// Package bot runs the trading cycle: risk gate, indicators, signal,
// execution and trailing stop, once per bar.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/trendbot/broker"
	"github.com/rustyeddy/trendbot/config"
	"github.com/rustyeddy/trendbot/indicators"
	"github.com/rustyeddy/trendbot/journal"
	"github.com/rustyeddy/trendbot/market"
	"github.com/rustyeddy/trendbot/metrics"
	"github.com/rustyeddy/trendbot/risk"
	"github.com/rustyeddy/trendbot/strategies"
)

type Bot struct {
	cfg      *config.Config
	broker   broker.Broker
	events   journal.EventLog
	gate     *risk.Gate
	strategy strategies.Strategy
	exec     *Executor
	metrics  *metrics.Metrics
	log      zerolog.Logger
	params   indicators.Params

	errCooldown time.Duration
	maxCooldown time.Duration

	// state of the last cycle, for the unhandled error row and the sleep
	lastConds map[string]string
	lastNow   time.Time
	lastStart time.Time

	sleep   func(ctx context.Context, d time.Duration) error
	waitBar func(ctx context.Context, now time.Time, timeframe string) error
}

type Option func(*Bot)

func WithLogger(l zerolog.Logger) Option {
	return func(b *Bot) { b.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bot) { b.metrics = m }
}

// WithStrategy replaces the strategy named in the config.
func WithStrategy(s strategies.Strategy) Option {
	return func(b *Bot) { b.strategy = s }
}

// New wires a bot. cfg must already be validated; b should already be
// bounded by broker.WithTimeout.
func New(cfg *config.Config, b broker.Broker, events journal.EventLog, opts ...Option) (*Bot, error) {
	errCooldown, err := cfg.Bot.ErrorCooldownDuration()
	if err != nil {
		return nil, err
	}
	maxCooldown, err := cfg.Bot.MaxCooldownDuration()
	if err != nil {
		return nil, err
	}

	bot := &Bot{
		cfg:         cfg,
		broker:      b,
		events:      events,
		log:         zerolog.Nop(),
		params:      cfg.IndicatorParams(),
		errCooldown: errCooldown,
		maxCooldown: maxCooldown,
		sleep:       sleepCtx,
		waitBar:     defaultWaitBar,
	}
	for _, opt := range opts {
		opt(bot)
	}
	if bot.metrics == nil {
		bot.metrics = metrics.New()
	}
	if bot.strategy == nil {
		s, err := strategies.ByName(cfg.Strategy, cfg.SMACross())
		if err != nil {
			return nil, err
		}
		bot.strategy = s
	}

	bot.gate = risk.NewGate(cfg.Gate(), b, b, bot.onGateEvent)
	bot.exec = NewExecutor(ExecConfig{
		Symbol:      cfg.Symbol,
		Magic:       cfg.MagicNumber,
		Deviation:   cfg.MinDeviation,
		RiskPercent: cfg.RiskPercentPerTrade,
		Stops:       cfg.Stops(),
		Trail:       cfg.Trail(),
	}, b, events, bot.metrics, bot.log, bot.dailyPnL)
	return bot, nil
}

func (b *Bot) Gate() *risk.Gate    { return b.gate }
func (b *Bot) Executor() *Executor { return b.exec }
func (b *Bot) dailyPnL() float64   { return b.gate.Snapshot().DailyPnL }

func (b *Bot) onGateEvent(e risk.Event) {
	lvl := zerolog.WarnLevel
	if e.Kind == risk.EventReset {
		lvl = zerolog.InfoLevel
	}
	b.log.WithLevel(lvl).Str("event", string(e.Kind)).Float64("daily_pnl", e.DailyPnL).Msg(e.Comment)

	err := b.events.Record(journal.Event{
		Time:     e.Time,
		Kind:     journal.Kind(e.Kind),
		Symbol:   b.cfg.Symbol,
		DailyPnL: journal.Float(e.DailyPnL),
		Comment:  e.Comment,
	})
	if err != nil {
		b.log.Error().Err(err).Str("event", string(e.Kind)).Msg("event log write failed")
	}
}

// skippable errors end a cycle quietly; the next bar retries.
func skippable(err error) bool {
	return errors.Is(err, broker.ErrDataUnavailable) || errors.Is(err, indicators.ErrInsufficientData)
}

// Cycle runs one trading cycle. Missing data skips the cycle and returns
// nil; any other error is the caller's to record.
func (b *Bot) Cycle(ctx context.Context) error {
	b.lastStart = time.Now()
	b.lastNow = time.Time{}
	b.lastConds = nil

	err := b.cycle(ctx)
	b.metrics.CycleDuration.Observe(time.Since(b.lastStart).Seconds())

	switch {
	case err == nil:
		b.metrics.CyclesTotal.WithLabelValues("ok").Inc()
		return nil
	case errors.Is(err, indicators.ErrInsufficientData):
		b.metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		b.log.Warn().Err(err).Msg("not enough data for indicators, skipping cycle")
		return nil
	case skippable(err):
		b.metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		b.log.Error().Err(err).Msg("market data unavailable, skipping cycle")
		return nil
	}
	b.metrics.CyclesTotal.WithLabelValues("error").Inc()
	return err
}

func (b *Bot) cycle(ctx context.Context) error {
	now, err := b.broker.Now(ctx)
	if err != nil {
		return fmt.Errorf("broker clock: %w", err)
	}
	b.lastNow = now

	b.gate.Rollover(now)
	if err := b.gate.Resync(ctx, now); err != nil {
		return err
	}
	dec := b.gate.Check(ctx, now)
	b.metrics.DailyPnL.Set(dec.DailyPnL)
	b.metrics.SetBlocked(!dec.Allowed)

	spec, err := b.broker.GetSymbolSpec(ctx, b.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("symbol spec %s: %w", b.cfg.Symbol, err)
	}

	if !dec.Allowed {
		b.log.Info().Str("reason", dec.Reason()).Float64("daily_pnl", dec.DailyPnL).
			Msg("new entries blocked, managing open position only")
		return b.manageOnly(ctx, spec)
	}

	bars, err := b.broker.FetchBars(ctx, b.cfg.Symbol, b.cfg.Timeframe, b.cfg.FetchCount())
	if err != nil {
		return fmt.Errorf("fetch bars: %w", err)
	}
	frame, err := indicators.Build(bars, b.params)
	if err != nil {
		return err
	}
	last, _ := frame.Last()

	pos, err := b.broker.GetOpenPosition(ctx, b.cfg.Symbol, b.cfg.MagicNumber)
	if err != nil {
		return fmt.Errorf("open position: %w", err)
	}
	if pos != nil {
		b.log.Info().Str("position", pos.Ticket).Float64("daily_pnl", dec.DailyPnL).Msg("position open")
		_, err := b.exec.TrailStop(ctx, *pos, spec, last.ATR)
		return err
	}

	res := b.strategy.Evaluate(frame)
	b.lastConds = res.Conditions.Fields()
	b.metrics.SignalsTotal.WithLabelValues(res.Signal.String()).Inc()
	b.log.Info().
		Str("signal", res.Signal.String()).
		Float64("price", last.Close).
		Float64("atr", last.ATR).
		Msg("signal check")

	if !b.gate.AllowATR(last.ATR) {
		b.log.Info().Float64("atr", last.ATR).Float64("min_atr", b.cfg.MinATRForTrade).Msg("volatility below floor, no trade")
		return nil
	}
	side, ok := res.Signal.Side()
	if !ok {
		return nil
	}
	return b.exec.Open(ctx, spec, side, last.ATR, dec.Balance, b.lastConds)
}

// manageOnly trails an open position while entries are blocked. Only ATR
// is needed, so the fetch is just long enough to warm the indicators.
func (b *Bot) manageOnly(ctx context.Context, spec market.SymbolSpec) error {
	pos, err := b.broker.GetOpenPosition(ctx, b.cfg.Symbol, b.cfg.MagicNumber)
	if err != nil {
		return fmt.Errorf("open position: %w", err)
	}
	if pos == nil || !b.cfg.EnableTrailingStop {
		return nil
	}

	bars, err := b.broker.FetchBars(ctx, b.cfg.Symbol, b.cfg.Timeframe, b.params.Warmup()+2)
	if err != nil {
		return fmt.Errorf("fetch bars for trailing: %w", err)
	}
	frame, err := indicators.Build(bars, b.params)
	if err != nil {
		return err
	}
	last, _ := frame.Last()
	_, err = b.exec.TrailStop(ctx, *pos, spec, last.ATR)
	return err
}

// ClosePosition flattens this bot's position on the configured symbol.
// It reports false when there was nothing to close.
func (b *Bot) ClosePosition(ctx context.Context) (bool, error) {
	pos, err := b.broker.GetOpenPosition(ctx, b.cfg.Symbol, b.cfg.MagicNumber)
	if err != nil {
		return false, fmt.Errorf("open position: %w", err)
	}
	if pos == nil {
		return false, nil
	}
	res, err := b.exec.Close(ctx, *pos, nil)
	if err != nil {
		return false, err
	}
	if !res.Success {
		return false, fmt.Errorf("close rejected: retcode %d, %s", res.Retcode, res.Message)
	}
	return true, nil
}
