// Package journal is the bot's append-only audit trail. Every material
// decision is one Event row; rows are never rewritten.
package journal

import (
	"fmt"
	"time"

	"github.com/rustyeddy/trendbot/strategies"
)

type Kind string

const (
	TradeOpened       Kind = "Trade Opened"
	TradeClosed       Kind = "Trade Closed"
	TradeFailed       Kind = "Trade Failed"
	CloseFailed       Kind = "Close Failed"
	DailyReset        Kind = "Daily P/L Reset"
	DailyLossLimit    Kind = "Daily Loss Limit"
	DailyProfitTarget Kind = "Daily Profit Target"
	UnhandledError    Kind = "Unhandled Error"
)

// TimeLayout is the timestamp format of the log.
const TimeLayout = "2006-01-02 15:04:05"

// Event is one log row. Nil numbers render as empty columns.
type Event struct {
	Time   time.Time
	Kind   Kind
	Symbol string
	Side   string

	Volume     *float64
	Entry      *float64
	SL         *float64
	TP         *float64
	ClosePrice *float64
	Profit     *float64
	DailyPnL   *float64

	// Conditions is keyed by strategies.ConditionColumns.
	Conditions map[string]string
	Comment    string
}

// Float returns a pointer to v for optional Event fields.
func Float(v float64) *float64 { return &v }

// Columns is the log header.
var Columns = append([]string{
	"Timestamp", "Event", "Symbol", "Trade Type", "Volume",
	"Entry Price", "SL Price", "TP Price", "Close Price",
	"Profit/Loss", "Daily P/L",
}, append(append([]string(nil), strategies.ConditionColumns...), "Comment")...)

// Row renders e in Columns order.
func (e Event) Row() []string {
	row := []string{
		e.Time.Format(TimeLayout),
		string(e.Kind),
		e.Symbol,
		e.Side,
		num(e.Volume, 2),
		num(e.Entry, 5),
		num(e.SL, 5),
		num(e.TP, 5),
		num(e.ClosePrice, 5),
		num(e.Profit, 2),
		num(e.DailyPnL, 2),
	}
	for _, col := range strategies.ConditionColumns {
		row = append(row, e.Conditions[col])
	}
	return append(row, e.Comment)
}

func num(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.*f", prec, *v)
}

// EventLog is a sink for events.
type EventLog interface {
	Record(Event) error
	Close() error
}
