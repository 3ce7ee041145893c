package journal

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/trendbot/strategies"
)

var t0 = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

func openedEvent(at time.Time) Event {
	cond := strategies.Conditions{
		Valid: true, SMAFast: 2034.1, SMASlow: 2033.9, SMATrend: 2020, ATR: 1.75,
		RSIText: strategies.RSIDisabled, BuyCross: true, TrendBuy: true, RSIBuy: true, RSISell: true,
	}
	return Event{
		Time:       at,
		Kind:       TradeOpened,
		Symbol:     "XAU_USD",
		Side:       "BUY",
		Volume:     Float(0.13),
		Entry:      Float(2034.45),
		SL:         Float(2031.82),
		TP:         Float(2039.7),
		DailyPnL:   Float(-12.5),
		Conditions: cond.Fields(),
		Comment:    "BUY Signal Bot",
	}
}

func TestColumns(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Timestamp", Columns[0])
	assert.Equal(t, "Daily P/L", Columns[10])
	assert.Equal(t, "SMA Fast", Columns[11])
	assert.Equal(t, "RSI Sell Cond", Columns[21])
	assert.Equal(t, "Comment", Columns[len(Columns)-1])
	assert.Len(t, Columns, 23)
}

func TestEventRow(t *testing.T) {
	t.Parallel()

	row := openedEvent(t0).Row()
	require.Len(t, row, len(Columns))
	assert.Equal(t, "2024-01-02 09:30:00", row[0])
	assert.Equal(t, "Trade Opened", row[1])
	assert.Equal(t, "0.13", row[4])
	assert.Equal(t, "2034.45000", row[5])
	assert.Equal(t, "", row[8])
	assert.Equal(t, "", row[9])
	assert.Equal(t, "-12.50", row[10])
	assert.Equal(t, "2034.10000", row[11])
	assert.Equal(t, "Disabled", row[15])
	assert.Equal(t, "True", row[16])
	assert.Equal(t, "False", row[17])
	assert.Equal(t, "BUY Signal Bot", row[22])

	empty := Event{Time: t0, Kind: UnhandledError, Comment: "boom"}.Row()
	require.Len(t, empty, len(Columns))
	for _, v := range empty[2:22] {
		assert.Equal(t, "", v)
	}
}

func TestCSVHeaderOnceAndAppend(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "trade_log.csv")

	j, err := NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(openedEvent(t0)))
	require.NoError(t, j.Close())

	j, err = NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(Event{Time: t0.Add(time.Minute), Kind: TradeFailed, Symbol: "XAU_USD", Comment: "Retcode: 10016"}))
	require.NoError(t, j.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "Timestamp,Event"))

	header, rows, err := TailCSV(path, 10)
	require.NoError(t, err)
	assert.Equal(t, Columns, header)
	require.Len(t, rows, 2)
	assert.Equal(t, "Trade Failed", rows[1][1])

	_, rows, err = TailCSV(path, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Retcode: 10016", rows[0][22])
}

func TestCSVHeaderOnEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trade_log.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	j, err := NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	header, rows, err := TailCSV(path, 0)
	require.NoError(t, err)
	assert.Equal(t, Columns, header)
	assert.Empty(t, rows)
}

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "events.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	_, path := newTestSQLite(t)

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='events'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "events", name)
}

func TestSQLiteRoundTrip(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)

	require.NoError(t, j.Record(openedEvent(t0)))
	require.NoError(t, j.Record(Event{Time: t0.Add(time.Hour), Kind: TradeClosed, Symbol: "XAU_USD", Side: "BUY",
		ClosePrice: Float(2039.7), Profit: Float(68.25)}))
	require.NoError(t, j.Record(Event{Time: t0.Add(24 * time.Hour), Kind: DailyReset, Comment: "New trading day"}))

	events, err := j.ListBetween(t0, t0.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)

	got := events[0]
	assert.True(t, got.Time.Equal(t0))
	assert.Equal(t, TradeOpened, got.Kind)
	require.NotNil(t, got.Volume)
	assert.Equal(t, 0.13, *got.Volume)
	assert.Nil(t, got.ClosePrice)
	assert.Equal(t, "True", got.Conditions["SMA Buy Cond"])
	assert.Equal(t, openedEvent(t0).Row(), got.Row())

	assert.Equal(t, 68.25, *events[1].Profit)

	tail, err := j.Tail(2)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, TradeClosed, tail[0].Kind)
	assert.Equal(t, DailyReset, tail[1].Kind)
}

type failingLog struct{ closed bool }

func (f *failingLog) Record(Event) error { return errors.New("disk full") }
func (f *failingLog) Close() error       { f.closed = true; return nil }

func TestMultiAttemptsEverySink(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "trade_log.csv")
	c, err := NewCSV(path)
	require.NoError(t, err)
	bad := &failingLog{}

	m := Multi{bad, c}
	err = m.Record(openedEvent(t0))
	assert.ErrorContains(t, err, "disk full")
	require.NoError(t, m.Close())
	assert.True(t, bad.closed)

	_, rows, err := TailCSV(path, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
