package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/trendbot/config"
	"github.com/rustyeddy/trendbot/indicators"
	"github.com/rustyeddy/trendbot/journal"
	"github.com/rustyeddy/trendbot/market"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.yaml")

	out, err := execute(t, "config", "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created default configuration")

	out, err = execute(t, "config", "validate", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "XAUUSDm M1")
}

func TestJournalTailCSV(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Journal.Path = filepath.Join(dir, "events.csv")
	cfgPath := filepath.Join(dir, "bot.yaml")
	require.NoError(t, cfg.SaveToFile(cfgPath))

	j, err := journal.NewCSV(cfg.Journal.Path)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, j.Record(journal.Event{
			Time:    time.Date(2024, 1, 2, 9, i, 0, 0, time.UTC),
			Kind:    journal.DailyReset,
			Symbol:  "XAUUSDm",
			Comment: "row",
		}))
	}
	require.NoError(t, j.Close())

	out, err := execute(t, "journal", "tail", "-n", "2", "-c", cfgPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Timestamp,Event"))
	assert.True(t, strings.HasPrefix(lines[1], "2024-01-02 09:01:00"))
}

func TestDayBounds(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("X", 3*3600)
	start, end, err := dayBounds(loc, "2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, loc), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))

	_, _, err = dayBounds(loc, "10/03/2024")
	assert.Error(t, err)
}

func TestWriteFrame(t *testing.T) {
	t.Parallel()

	frame := indicators.Frame{
		{
			Bar:     market.Bar{Time: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
			SMAFast: 1.25, SMASlow: 1.2, SMATrend: 1.1, ATR: 0.4, RSI: 61.234,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, frame, true))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "time,open,high,low,close,volume,sma_fast,sma_slow,sma_trend,atr,rsi", lines[0])
	assert.Equal(t, "2024-01-02T09:00:00Z,1.00000,2.00000,0.50000,1.50000,10,1.25000,1.20000,1.10000,0.40000,61.23", lines[1])

	buf.Reset()
	require.NoError(t, writeFrame(&buf, frame, false))
	assert.NotContains(t, buf.String(), "rsi")
}
