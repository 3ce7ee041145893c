package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/trendbot/bot"
	"github.com/rustyeddy/trendbot/internal/logging"
	"github.com/rustyeddy/trendbot/metrics"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading bot",
	Long: `Run the trading loop: one cycle per bar of the configured timeframe.

A missing config file is created with the defaults. The OANDA token and
account id are read from the environment variables named in the broker
section, optionally loaded from an env file.

Examples:
  trader run -c config.yaml
  trader run -c config.yaml --paper
  trader run -c config.yaml --once`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	runOnce  bool
	runPaper bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single cycle and exit")
	runCmd.Flags().BoolVar(&runPaper, "paper", false, "execute in a paper account regardless of broker.kind")
}

func runRun(cmd *cobra.Command, args []string) error {
	boot, _ := logging.New(bootLogConfig())
	cfg, err := loadConfig(boot)
	if err != nil {
		return err
	}

	log, closer := logging.New(cfg.Log)
	defer closer.Close()

	b, err := openBroker(cfg, runPaper, log)
	if err != nil {
		return fmt.Errorf("broker: %w", err)
	}

	events, err := openEventLog(cfg)
	if err != nil {
		return fmt.Errorf("event log: %w", err)
	}
	defer events.Close()

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		srv := metrics.Serve(cfg.Metrics.Addr, m)
		defer srv.Close()
		log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics listening")
	}

	tb, err := bot.New(cfg, b, events, bot.WithLogger(log), bot.WithMetrics(m))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runOnce {
		return tb.Cycle(ctx)
	}
	return tb.Run(ctx)
}
