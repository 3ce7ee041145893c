package strategies

import (
	"fmt"
	"math"
)

// RSI text written when the filter is off or the value is missing.
const (
	RSIDisabled    = "Disabled"
	RSIUnavailable = "N/A (RSI Data Missing)"
)

// Condition column names, as they appear in the event log.
const (
	ColSMAFast       = "SMA Fast"
	ColSMASlow       = "SMA Slow"
	ColSMATrend      = "SMA Trend"
	ColATR           = "ATR"
	ColRSI           = "RSI"
	ColSMABuyCond    = "SMA Buy Cond"
	ColSMASellCond   = "SMA Sell Cond"
	ColTrendBuyCond  = "Trend Buy Cond"
	ColTrendSellCond = "Trend Sell Cond"
	ColRSIBuyCond    = "RSI Buy Cond"
	ColRSISellCond   = "RSI Sell Cond"
)

// ConditionColumns lists the condition columns in log order.
var ConditionColumns = []string{
	ColSMAFast, ColSMASlow, ColSMATrend, ColATR, ColRSI,
	ColSMABuyCond, ColSMASellCond,
	ColTrendBuyCond, ColTrendSellCond,
	ColRSIBuyCond, ColRSISellCond,
}

// Conditions is the audit snapshot of one evaluation. A zero Conditions
// (Valid false) renders as empty columns.
type Conditions struct {
	Valid bool

	SMAFast  float64
	SMASlow  float64
	SMATrend float64
	ATR      float64
	RSI      float64
	RSIText  string // set instead of RSI when disabled or missing

	BuyCross  bool
	SellCross bool
	TrendBuy  bool
	TrendSell bool
	RSIBuy    bool
	RSISell   bool
}

// Fields renders the snapshot keyed by column name.
func (c Conditions) Fields() map[string]string {
	out := make(map[string]string, len(ConditionColumns))
	if !c.Valid {
		for _, col := range ConditionColumns {
			out[col] = ""
		}
		return out
	}

	out[ColSMAFast] = fmt.Sprintf("%.5f", c.SMAFast)
	out[ColSMASlow] = fmt.Sprintf("%.5f", c.SMASlow)
	out[ColSMATrend] = fmt.Sprintf("%.5f", c.SMATrend)
	out[ColATR] = fmt.Sprintf("%.5f", c.ATR)
	out[ColRSI] = c.RSIText
	if c.RSIText == "" && !math.IsNaN(c.RSI) {
		out[ColRSI] = fmt.Sprintf("%.2f", c.RSI)
	}
	out[ColSMABuyCond] = flag(c.BuyCross)
	out[ColSMASellCond] = flag(c.SellCross)
	out[ColTrendBuyCond] = flag(c.TrendBuy)
	out[ColTrendSellCond] = flag(c.TrendSell)
	out[ColRSIBuyCond] = flag(c.RSIBuy)
	out[ColRSISellCond] = flag(c.RSISell)
	return out
}

func flag(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
