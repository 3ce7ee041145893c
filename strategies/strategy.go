// Package strategies turns an indicator frame into a trade signal.
package strategies

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/trendbot/indicators"
	"github.com/rustyeddy/trendbot/market"
)

// Signal is the engine's decision for the newest bar.
type Signal int

const (
	Hold Signal = 0
	Buy  Signal = 1
	Sell Signal = -1
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Side maps BUY and SELL onto an order side. HOLD reports false.
func (s Signal) Side() (market.Side, bool) {
	switch s {
	case Buy:
		return market.Buy, true
	case Sell:
		return market.Sell, true
	}
	return 0, false
}

// Result is a signal plus the condition snapshot it was decided from.
type Result struct {
	Signal     Signal
	Conditions Conditions
}

// Strategy evaluates a frame. Implementations are pure.
type Strategy interface {
	Name() string
	Evaluate(frame indicators.Frame) Result
}

// ByName returns the strategy registered under name.
func ByName(name string, cfg SMACrossConfig) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sma-cross", "smacross":
		return NewSMACross(cfg), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: sma-cross)", name)
	}
}
