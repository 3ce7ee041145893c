package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/trendbot/config"
)

var brokerCmd = &cobra.Command{
	Use:   "broker",
	Short: "Inspect the broker connection",
	Long: `Show what the bot sees at the broker: account, symbol contract and
the current quote. Useful to check credentials and the symbol spec before
running.

Example:
  trader broker info -c config.yaml`,
}

var brokerInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print account, symbol spec and quote",
	Args:  cobra.NoArgs,
	RunE:  runBrokerInfo,
}

func init() {
	rootCmd.AddCommand(brokerCmd)
	brokerCmd.AddCommand(brokerInfoCmd)
}

func runBrokerInfo(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	client, err := newOANDA(cfg)
	if err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	ctx := context.Background()

	acct, err := client.GetAccount(ctx)
	if err != nil {
		return err
	}
	spec, err := client.GetSymbolSpec(ctx, cfg.Symbol)
	if err != nil {
		return err
	}
	tick, err := client.GetTick(ctx, cfg.Symbol)
	if err != nil {
		return err
	}
	now, err := client.Now(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Account %s: balance %.2f %s, equity %.2f\n", acct.ID, acct.Balance, acct.Currency, acct.Equity)
	fmt.Fprintf(out, "Symbol %s: point %g, digits %d, tick value %g / size %g\n",
		spec.Name, spec.Point, spec.Digits, spec.TickValue, spec.TickSize)
	fmt.Fprintf(out, "  volume %g..%g step %g, min stop %g points\n",
		spec.VolumeMin, spec.VolumeMax, spec.VolumeStep, spec.MinStopPoints)
	fmt.Fprintf(out, "Quote %s: bid %.*f ask %.*f spread %.*f\n",
		tick.Time.Format("2006-01-02 15:04:05"), spec.Digits, tick.Bid, spec.Digits, tick.Ask, spec.Digits, tick.Spread())
	fmt.Fprintf(out, "Broker clock %s\n", now.Format("2006-01-02 15:04:05 MST"))
	return nil
}
