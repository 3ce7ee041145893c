package strategies

import (
	"math"

	"github.com/rustyeddy/trendbot/indicators"
)

type SMACrossConfig struct {
	RSIFilter     bool    `json:"enable_rsi_filter" yaml:"enable_rsi_filter"`
	RSIOverbought float64 `json:"rsi_overbought" yaml:"rsi_overbought"`
	RSIOversold   float64 `json:"rsi_oversold" yaml:"rsi_oversold"`
}

// SMACross signals when the fast SMA crosses the slow SMA on the newest
// bar, in the direction of the trend SMA, optionally confirmed by RSI.
type SMACross struct {
	cfg SMACrossConfig
}

func NewSMACross(cfg SMACrossConfig) *SMACross {
	return &SMACross{cfg: cfg}
}

func (s *SMACross) Name() string { return "sma-cross" }

// Evaluate reads the last two rows of frame. With fewer than two rows it
// returns HOLD and empty conditions.
//
// When the RSI filter is on but the newest RSI is missing, both momentum
// flags pass for this evaluation only and the snapshot says so.
func (s *SMACross) Evaluate(frame indicators.Frame) Result {
	if len(frame) < 2 {
		return Result{Signal: Hold}
	}
	prev, last := frame[len(frame)-2], frame[len(frame)-1]

	c := Conditions{
		Valid:    true,
		SMAFast:  last.SMAFast,
		SMASlow:  last.SMASlow,
		SMATrend: last.SMATrend,
		ATR:      last.ATR,
		RSI:      last.RSI,

		BuyCross:  prev.SMAFast < prev.SMASlow && last.SMAFast > last.SMASlow,
		SellCross: prev.SMAFast > prev.SMASlow && last.SMAFast < last.SMASlow,
		TrendBuy:  last.Close > last.SMATrend,
		TrendSell: last.Close < last.SMATrend,
	}

	switch {
	case !s.cfg.RSIFilter:
		c.RSIBuy, c.RSISell = true, true
		c.RSIText = RSIDisabled
	case math.IsNaN(last.RSI):
		c.RSIBuy, c.RSISell = true, true
		c.RSIText = RSIUnavailable
	default:
		c.RSIBuy = last.RSI < s.cfg.RSIOverbought
		c.RSISell = last.RSI > s.cfg.RSIOversold
	}

	sig := Hold
	switch {
	case c.BuyCross && c.TrendBuy && c.RSIBuy:
		sig = Buy
	case c.SellCross && c.TrendSell && c.RSISell:
		sig = Sell
	}
	return Result{Signal: sig, Conditions: c}
}
