package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/trendbot/market"
)

type AccountSource interface {
	GetAccount(ctx context.Context) (market.Account, error)
}

type DealSource interface {
	FetchClosedDeals(ctx context.Context, from, to time.Time) ([]market.Deal, error)
}

type GateConfig struct {
	MaxDailyLossPct   float64 // 0 disables the loss breaker
	MaxDailyProfitPct float64 // 0 disables the profit breaker
	MinATR            float64
	Magic             int
	Location          *time.Location // session day boundary, default time.Local
}

type EventKind string

const (
	EventReset        EventKind = "Daily P/L Reset"
	EventLossLimit    EventKind = "Daily Loss Limit"
	EventProfitTarget EventKind = "Daily Profit Target"
)

// Event is emitted on rollover and when a breaker trips.
type Event struct {
	Kind     EventKind
	Time     time.Time
	DailyPnL float64
	Limit    float64
	Comment  string
}

// Decision is the outcome of a gate check.
type Decision struct {
	Allowed    bool
	Violations []Violation
	Balance    float64
	DailyPnL   float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Reason joins the violation messages.
func (d Decision) Reason() string {
	s := ""
	for i, v := range d.Violations {
		if i > 0 {
			s += "; "
		}
		s += v.Msg
	}
	return s
}

// Gate owns the session state and decides whether new entries are
// allowed. Existing positions are never affected by a closed gate.
type Gate struct {
	cfg     GateConfig
	account AccountSource
	deals   DealSource
	onEvent func(Event)

	mu      sync.Mutex
	session Session
	tripped map[EventKind]bool // breakers already reported this session
}

// NewGate builds a gate. onEvent may be nil.
func NewGate(cfg GateConfig, account AccountSource, deals DealSource, onEvent func(Event)) *Gate {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if onEvent == nil {
		onEvent = func(Event) {}
	}
	return &Gate{
		cfg:     cfg,
		account: account,
		deals:   deals,
		onEvent: onEvent,
		tripped: make(map[EventKind]bool),
	}
}

// Rollover starts a new session when now falls on a different day than
// the current one. It reports whether a reset happened. The first session
// of the process starts silently; only day changes emit EventReset.
func (g *Gate) Rollover(now time.Time) bool {
	day := midnight(now, g.cfg.Location)

	g.mu.Lock()
	if g.session.ResetDate.Equal(day) {
		g.mu.Unlock()
		return false
	}
	prev := g.session
	g.session = Session{DailyPnL: 0, ResetDate: day}
	g.tripped = make(map[EventKind]bool)
	g.mu.Unlock()

	if prev.ResetDate.IsZero() {
		return true
	}
	comment := fmt.Sprintf("New trading day %s, previous day P/L %.2f", day.Format("2006-01-02"), prev.DailyPnL)
	g.onEvent(Event{Kind: EventReset, Time: now, DailyPnL: 0, Comment: comment})
	return true
}

// Resync overwrites the daily P/L with the realized profit of this bot's
// closing deals from the session's midnight to now.
func (g *Gate) Resync(ctx context.Context, now time.Time) error {
	from := midnight(now, g.cfg.Location)
	deals, err := g.deals.FetchClosedDeals(ctx, from, now)
	if err != nil {
		return fmt.Errorf("resync daily pnl: %w", err)
	}

	total := 0.0
	for _, d := range deals {
		if d.Magic != g.cfg.Magic || d.Entry != market.DealOut {
			continue
		}
		total += d.Profit
	}

	g.mu.Lock()
	g.session.DailyPnL = total
	g.mu.Unlock()
	return nil
}

// Check applies the daily loss and profit breakers against the current
// balance. An unavailable account closes the gate.
func (g *Gate) Check(ctx context.Context, now time.Time) Decision {
	g.mu.Lock()
	pnl := g.session.DailyPnL
	g.mu.Unlock()

	d := Decision{Allowed: true, DailyPnL: pnl}

	acct, err := g.account.GetAccount(ctx)
	if err != nil {
		d.add("ACCOUNT_UNAVAILABLE", fmt.Sprintf("account info unavailable: %v", err))
		return d
	}
	d.Balance = acct.Balance

	if g.cfg.MaxDailyLossPct > 0 {
		limit := acct.Balance * g.cfg.MaxDailyLossPct / 100
		if pnl < -limit {
			d.add("DAILY_LOSS_LIMIT", fmt.Sprintf("daily loss %.2f exceeds limit %.2f", -pnl, limit))
			g.trip(EventLossLimit, now, pnl, -limit)
		}
	}
	if g.cfg.MaxDailyProfitPct > 0 {
		limit := acct.Balance * g.cfg.MaxDailyProfitPct / 100
		if pnl > limit {
			d.add("DAILY_PROFIT_TARGET", fmt.Sprintf("daily profit %.2f reached target %.2f", pnl, limit))
			g.trip(EventProfitTarget, now, pnl, limit)
		}
	}
	return d
}

// trip reports a breaker once per session.
func (g *Gate) trip(kind EventKind, now time.Time, pnl, limit float64) {
	g.mu.Lock()
	seen := g.tripped[kind]
	g.tripped[kind] = true
	g.mu.Unlock()
	if seen {
		return
	}

	comment := fmt.Sprintf("Daily P/L %.2f crossed %.2f. Trading halted for today.", pnl, limit)
	g.onEvent(Event{Kind: kind, Time: now, DailyPnL: pnl, Limit: limit, Comment: comment})
}

// AllowATR reports whether volatility is high enough to enter.
func (g *Gate) AllowATR(atr float64) bool {
	return atr >= g.cfg.MinATR
}

// Snapshot returns a copy of the session.
func (g *Gate) Snapshot() Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session
}
