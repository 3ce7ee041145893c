package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/trendbot/broker"
	"github.com/rustyeddy/trendbot/broker/paper"
	"github.com/rustyeddy/trendbot/config"
	"github.com/rustyeddy/trendbot/indicators"
	"github.com/rustyeddy/trendbot/journal"
	"github.com/rustyeddy/trendbot/market"
	"github.com/rustyeddy/trendbot/metrics"
	"github.com/rustyeddy/trendbot/strategies"
)

const symbol = "XAUUSD"

var t0 = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

type stubFeed struct {
	mu      sync.Mutex
	bars    []market.Bar
	barsErr error
	tick    market.Tick
	spec    market.SymbolSpec
}

func (f *stubFeed) FetchBars(ctx context.Context, sym, timeframe string, count int) ([]market.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.barsErr != nil {
		return nil, f.barsErr
	}
	bars := f.bars
	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	return append([]market.Bar(nil), bars...), nil
}

func (f *stubFeed) GetTick(ctx context.Context, sym string) (market.Tick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tick, nil
}

func (f *stubFeed) GetSymbolSpec(ctx context.Context, sym string) (market.SymbolSpec, error) {
	return f.spec, nil
}

func (f *stubFeed) Now(ctx context.Context) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tick.Time, nil
}

func (f *stubFeed) quote(bid, ask float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tick = market.Tick{Symbol: symbol, Bid: bid, Ask: ask, Time: t0}
}

// flatBars closes every bar at price with a range of two, so ATR is 2.
func flatBars(n int, price float64) []market.Bar {
	bars := make([]market.Bar, n)
	for i := range bars {
		bars[i] = market.Bar{
			Time:  t0.Add(time.Duration(i-n) * time.Minute),
			Open:  price,
			High:  price + 1,
			Low:   price - 1,
			Close: price,
		}
	}
	return bars
}

type memLog struct {
	mu     sync.Mutex
	events []journal.Event
}

func (m *memLog) Record(e journal.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memLog) Close() error { return nil }

func (m *memLog) kinds() []journal.Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]journal.Kind, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Kind)
	}
	return out
}

func (m *memLog) last(kind journal.Kind) (journal.Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].Kind == kind {
			return m.events[i], true
		}
	}
	return journal.Event{}, false
}

type fixedStrategy struct {
	signal strategies.Signal
	panics bool
}

func (s fixedStrategy) Name() string { return "fixed" }

func (s fixedStrategy) Evaluate(frame indicators.Frame) strategies.Result {
	if s.panics {
		panic("boom")
	}
	last, _ := frame.Last()
	return strategies.Result{
		Signal: s.signal,
		Conditions: strategies.Conditions{
			Valid: true, SMAFast: last.SMAFast, SMASlow: last.SMASlow, SMATrend: last.SMATrend,
			ATR: last.ATR, RSIText: strategies.RSIDisabled,
			BuyCross: s.signal == strategies.Buy, TrendBuy: true, RSIBuy: true, RSISell: true,
		},
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Symbol = symbol
	cfg.EnableRSIFilter = false
	cfg.Bot.Timezone = "UTC"
	cfg.Bot.ErrorCooldown = "1s"
	cfg.Bot.MaxCooldown = "4s"
	return cfg
}

type harness struct {
	bot    *Bot
	engine *paper.Engine
	feed   *stubFeed
	log    *memLog
}

func newHarness(t *testing.T, cfg *config.Config, wrap func(*paper.Engine) broker.Broker, opts ...Option) *harness {
	t.Helper()

	feed := &stubFeed{
		bars: flatBars(cfg.FetchCount(), 2000),
		spec: market.SymbolSpec{
			Name: symbol, Point: 0.01, Digits: 2,
			TickValue: 1, TickSize: 1,
			VolumeMin: 0.01, VolumeMax: 100, VolumeStep: 0.01,
		},
	}
	feed.quote(1999.90, 2000.00)

	engine := paper.New(feed, 10000, "USD")
	var b broker.Broker = engine
	if wrap != nil {
		b = wrap(engine)
	}

	log := &memLog{}
	bot, err := New(cfg, b, log, opts...)
	require.NoError(t, err)
	return &harness{bot: bot, engine: engine, feed: feed, log: log}
}

func (h *harness) position(t *testing.T) *market.Position {
	t.Helper()
	pos, err := h.engine.GetOpenPosition(context.Background(), symbol, h.bot.cfg.MagicNumber)
	require.NoError(t, err)
	return pos
}

func TestCycleOpensSizedBuy(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig(), nil, WithStrategy(fixedStrategy{signal: strategies.Buy}))

	require.NoError(t, h.bot.Cycle(context.Background()))
	assert.Equal(t, []journal.Kind{journal.TradeOpened}, h.log.kinds())

	ev, ok := h.log.last(journal.TradeOpened)
	require.True(t, ok)
	assert.Equal(t, "BUY", ev.Side)
	assert.InDelta(t, 0.33, *ev.Volume, 1e-9)
	assert.InDelta(t, 2000.00, *ev.Entry, 1e-9)
	assert.InDelta(t, 1997.00, *ev.SL, 1e-9)
	assert.InDelta(t, 2006.00, *ev.TP, 1e-9)
	assert.Equal(t, "True", ev.Conditions[strategies.ColSMABuyCond])

	pos := h.position(t)
	require.NotNil(t, pos)
	assert.Equal(t, market.Buy, pos.Side)
	assert.InDelta(t, 0.33, pos.Volume, 1e-9)

	// one position at a time
	require.NoError(t, h.bot.Cycle(context.Background()))
	assert.Equal(t, []journal.Kind{journal.TradeOpened}, h.log.kinds())
}

func TestCycleOpensSell(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig(), nil, WithStrategy(fixedStrategy{signal: strategies.Sell}))

	require.NoError(t, h.bot.Cycle(context.Background()))

	ev, ok := h.log.last(journal.TradeOpened)
	require.True(t, ok)
	assert.Equal(t, "SELL", ev.Side)
	assert.InDelta(t, 1999.90, *ev.Entry, 1e-9)
	assert.InDelta(t, 2002.90, *ev.SL, 1e-9)
	assert.InDelta(t, 1993.90, *ev.TP, 1e-9)
}

func TestCycleHoldPlacesNothing(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig(), nil, WithStrategy(fixedStrategy{signal: strategies.Hold}))

	require.NoError(t, h.bot.Cycle(context.Background()))
	assert.Empty(t, h.log.kinds())
	assert.Nil(t, h.position(t))
}

func TestCycleATRFloor(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.MinATRForTrade = 2.5
	h := newHarness(t, cfg, nil, WithStrategy(fixedStrategy{signal: strategies.Buy}))

	require.NoError(t, h.bot.Cycle(context.Background()))
	assert.Nil(t, h.position(t))
}

func TestCycleRealCrossover(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	h := newHarness(t, cfg, nil)

	bars := flatBars(cfg.FetchCount(), 2000)
	n := len(bars)
	bars[n-2].Close, bars[n-2].High, bars[n-2].Low = 1999, 2000, 1998
	bars[n-1].Close, bars[n-1].High, bars[n-1].Low = 2010, 2011, 2009
	h.feed.bars = bars

	require.NoError(t, h.bot.Cycle(context.Background()))

	ev, ok := h.log.last(journal.TradeOpened)
	require.True(t, ok, "kinds: %v", h.log.kinds())
	assert.Equal(t, "BUY", ev.Side)
	assert.Less(t, *ev.SL, *ev.Entry)
	assert.Greater(t, *ev.TP, *ev.Entry)
	assert.Equal(t, "True", ev.Conditions[strategies.ColSMABuyCond])
	assert.Equal(t, "True", ev.Conditions[strategies.ColTrendBuyCond])
	assert.Equal(t, strategies.RSIDisabled, ev.Conditions[strategies.ColRSI])
}

func TestCycleTrailsOpenPosition(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.EnableTrailingStop = true
	cfg.ATRMultiplierTP = 10
	h := newHarness(t, cfg, nil, WithStrategy(fixedStrategy{signal: strategies.Buy}))

	require.NoError(t, h.bot.Cycle(context.Background()))
	require.NotNil(t, h.position(t))

	h.feed.quote(2010.00, 2010.10)
	require.NoError(t, h.bot.Cycle(context.Background()))

	pos := h.position(t)
	require.NotNil(t, pos)
	assert.InDelta(t, 2008.00, pos.SL, 1e-9)
	assert.InDelta(t, 2020.00, pos.TP, 1e-9)

	// price falls back; the stop never loosens
	h.feed.quote(2009.00, 2009.10)
	require.NoError(t, h.bot.Cycle(context.Background()))
	assert.InDelta(t, 2008.00, h.position(t).SL, 1e-9)
}

type lossBroker struct {
	*paper.Engine
	magic int
}

func (b lossBroker) FetchClosedDeals(ctx context.Context, from, to time.Time) ([]market.Deal, error) {
	return []market.Deal{
		{ID: "d1", Time: from.Add(time.Hour), Profit: -600, Magic: b.magic, Entry: market.DealOut},
		{ID: "d2", Time: from.Add(time.Hour), Profit: -900, Magic: b.magic + 1, Entry: market.DealOut},
	}, nil
}

func TestCycleBlockedByDailyLoss(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	m := metrics.New()
	h := newHarness(t, cfg, func(e *paper.Engine) broker.Broker {
		return lossBroker{Engine: e, magic: cfg.MagicNumber}
	}, WithStrategy(fixedStrategy{signal: strategies.Buy}), WithMetrics(m))

	require.NoError(t, h.bot.Cycle(context.Background()))
	require.NoError(t, h.bot.Cycle(context.Background()))

	assert.Equal(t, []journal.Kind{journal.DailyLossLimit}, h.log.kinds())
	assert.Nil(t, h.position(t))
	assert.Equal(t, -600.0, h.bot.Gate().Snapshot().DailyPnL)

	ev, _ := h.log.last(journal.DailyLossLimit)
	assert.InDelta(t, -600, *ev.DailyPnL, 1e-9)
}

// armedLossBroker reports a -600 closing deal once armed is set.
type armedLossBroker struct {
	*paper.Engine
	magic int
	armed *bool
}

func (b armedLossBroker) FetchClosedDeals(ctx context.Context, from, to time.Time) ([]market.Deal, error) {
	deals, err := b.Engine.FetchClosedDeals(ctx, from, to)
	if err != nil || !*b.armed {
		return deals, err
	}
	return append(deals, market.Deal{ID: "loss", Time: from.Add(time.Hour), Profit: -600, Magic: b.magic, Entry: market.DealOut}), nil
}

func TestCycleBlockedStillTrails(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.EnableTrailingStop = true
	cfg.ATRMultiplierTP = 10
	armed := false
	h := newHarness(t, cfg, func(e *paper.Engine) broker.Broker {
		return armedLossBroker{Engine: e, magic: cfg.MagicNumber, armed: &armed}
	}, WithStrategy(fixedStrategy{signal: strategies.Buy}))

	require.NoError(t, h.bot.Cycle(context.Background()))
	require.NotNil(t, h.position(t))

	armed = true
	h.feed.quote(2010.00, 2010.10)
	require.NoError(t, h.bot.Cycle(context.Background()))

	assert.Equal(t, []journal.Kind{journal.TradeOpened, journal.DailyLossLimit}, h.log.kinds())
	pos := h.position(t)
	require.NotNil(t, pos)
	assert.InDelta(t, 2008.00, pos.SL, 1e-9)
}

type rejectBroker struct{ *paper.Engine }

func (rejectBroker) SubmitMarketOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	return broker.OrderResult{Retcode: 10019, Message: "no money"}, nil
}

func TestCycleRecordsRejectedOrder(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig(), func(e *paper.Engine) broker.Broker {
		return rejectBroker{e}
	}, WithStrategy(fixedStrategy{signal: strategies.Buy}))

	require.NoError(t, h.bot.Cycle(context.Background()))

	ev, ok := h.log.last(journal.TradeFailed)
	require.True(t, ok)
	assert.Contains(t, ev.Comment, "10019")
	assert.Contains(t, ev.Comment, "no money")
	assert.InDelta(t, 0.33, *ev.Volume, 1e-9)
}

func TestCycleConstraintAbortsQuietly(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig(), nil, WithStrategy(fixedStrategy{signal: strategies.Buy}))
	h.feed.spec.TickSize = 0

	require.NoError(t, h.bot.Cycle(context.Background()))
	assert.Empty(t, h.log.kinds())
	assert.Nil(t, h.position(t))
}

func TestCycleSkipsMissingData(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig(), nil, WithStrategy(fixedStrategy{signal: strategies.Buy}))

	h.feed.barsErr = fmt.Errorf("candles: %w", broker.ErrDataUnavailable)
	assert.NoError(t, h.bot.Cycle(context.Background()))

	h.feed.barsErr = nil
	h.feed.bars = flatBars(10, 2000)
	assert.NoError(t, h.bot.Cycle(context.Background()))

	assert.Nil(t, h.position(t))
}

func TestClosePosition(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig(), nil, WithStrategy(fixedStrategy{signal: strategies.Buy}))

	closed, err := h.bot.ClosePosition(context.Background())
	require.NoError(t, err)
	assert.False(t, closed)

	require.NoError(t, h.bot.Cycle(context.Background()))
	closed, err = h.bot.ClosePosition(context.Background())
	require.NoError(t, err)
	assert.True(t, closed)
	assert.Nil(t, h.position(t))

	ev, ok := h.log.last(journal.TradeClosed)
	require.True(t, ok)
	assert.InDelta(t, 1999.90, *ev.ClosePrice, 1e-9)
	assert.InDelta(t, -3.30, *ev.Profit, 1e-6)
}

type brokenClock struct{ *paper.Engine }

func (brokenClock) Now(ctx context.Context) (time.Time, error) {
	return time.Time{}, errors.New("terminal disconnected")
}

func TestRunBacksOffOnErrors(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig(), func(e *paper.Engine) broker.Broker {
		return brokenClock{e}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var waits []time.Duration
	h.bot.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		if len(waits) == 5 {
			cancel()
			return ctx.Err()
		}
		return nil
	}
	h.bot.waitBar = func(context.Context, time.Time, string) error {
		t.Fatal("no cycle succeeded")
		return nil
	}

	require.NoError(t, h.bot.Run(ctx))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second, 4 * time.Second}, waits)

	kinds := h.log.kinds()
	require.Len(t, kinds, 5)
	ev, _ := h.log.last(journal.UnhandledError)
	assert.Contains(t, ev.Comment, "terminal disconnected")
}

func TestRunRecoversPanic(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig(), nil, WithStrategy(fixedStrategy{panics: true}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.bot.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	require.NoError(t, h.bot.Run(ctx))
	ev, ok := h.log.last(journal.UnhandledError)
	require.True(t, ok)
	assert.Contains(t, ev.Comment, "panic: boom")
}

func TestRunWaitsForNextBar(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testConfig(), nil, WithStrategy(fixedStrategy{signal: strategies.Hold}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int
	h.bot.waitBar = func(ctx context.Context, now time.Time, tf string) error {
		calls++
		assert.Equal(t, "M1", tf)
		assert.False(t, now.Before(t0))
		if calls == 2 {
			cancel()
			return ctx.Err()
		}
		return nil
	}
	h.bot.sleep = func(context.Context, time.Duration) error {
		t.Fatal("unexpected cooldown")
		return nil
	}

	require.NoError(t, h.bot.Run(ctx))
	assert.Equal(t, 2, calls)
	assert.NotContains(t, h.log.kinds(), journal.UnhandledError)
}
