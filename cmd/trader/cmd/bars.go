package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/trendbot/config"
	"github.com/rustyeddy/trendbot/indicators"
	"github.com/rustyeddy/trendbot/strategies"
)

var barsCmd = &cobra.Command{
	Use:   "bars",
	Short: "Export recent bars with their indicator columns",
	Long: `Fetch the bars the bot would fetch, compute the indicator frame and
write it as CSV, followed by the signal the strategy gives on the last bar.
Use it to check indicator values against the broker's charts.

Examples:
  trader bars -c config.yaml
  trader bars -c config.yaml -o xau_m1.csv`,
	Args: cobra.NoArgs,
	RunE: runBars,
}

var barsOut string

func init() {
	rootCmd.AddCommand(barsCmd)

	barsCmd.Flags().StringVarP(&barsOut, "output", "o", "", "output CSV path (default stdout)")
}

func runBars(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	client, err := newOANDA(cfg)
	if err != nil {
		return fmt.Errorf("broker: %w", err)
	}

	bars, err := client.FetchBars(context.Background(), cfg.Symbol, cfg.Timeframe, cfg.FetchCount())
	if err != nil {
		return err
	}
	frame, err := indicators.Build(bars, cfg.IndicatorParams())
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if barsOut != "" {
		f, err := os.Create(barsOut)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := writeFrame(w, frame, cfg.EnableRSIFilter); err != nil {
		return err
	}

	strat, err := strategies.ByName(cfg.Strategy, cfg.SMACross())
	if err != nil {
		return err
	}
	res := strat.Evaluate(frame)
	fmt.Fprintf(cmd.ErrOrStderr(), "%d bars, %d rows after warm-up, last bar signal %s\n", len(bars), len(frame), res.Signal)
	return nil
}

func writeFrame(w io.Writer, frame indicators.Frame, withRSI bool) error {
	cw := csv.NewWriter(w)
	header := []string{"time", "open", "high", "low", "close", "volume", "sma_fast", "sma_slow", "sma_trend", "atr"}
	if withRSI {
		header = append(header, "rsi")
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 5, 64) }
	for _, r := range frame {
		rec := []string{
			r.Time.UTC().Format(time.RFC3339),
			f(r.Open), f(r.High), f(r.Low), f(r.Close),
			strconv.FormatFloat(r.Volume, 'f', -1, 64),
			f(r.SMAFast), f(r.SMASlow), f(r.SMATrend), f(r.ATR),
		}
		if withRSI {
			rec = append(rec, strconv.FormatFloat(r.RSI, 'f', 2, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
