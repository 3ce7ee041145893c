package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/trendbot/bot"
	"github.com/rustyeddy/trendbot/internal/logging"
)

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Close the bot's open position",
	Long: `Flatten the position this bot holds on the configured symbol at the
current market price. The outcome is recorded in the event log.

Example:
  trader close -c config.yaml`,
	Args: cobra.NoArgs,
	RunE: runClose,
}

func init() {
	rootCmd.AddCommand(closeCmd)
}

func runClose(cmd *cobra.Command, args []string) error {
	boot, _ := logging.New(bootLogConfig())
	cfg, err := loadConfig(boot)
	if err != nil {
		return err
	}
	if cfg.Broker.Kind == "paper" {
		return fmt.Errorf("paper positions live only inside a running bot")
	}

	log, closer := logging.New(cfg.Log)
	defer closer.Close()

	b, err := openBroker(cfg, false, log)
	if err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	events, err := openEventLog(cfg)
	if err != nil {
		return fmt.Errorf("event log: %w", err)
	}
	defer events.Close()

	tb, err := bot.New(cfg, b, events, bot.WithLogger(log))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	closed, err := tb.ClosePosition(ctx)
	if err != nil {
		return err
	}
	if !closed {
		fmt.Fprintf(cmd.OutOrStdout(), "No open %s position for magic %d\n", cfg.Symbol, cfg.MagicNumber)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Closed %s position\n", cfg.Symbol)
	return nil
}
