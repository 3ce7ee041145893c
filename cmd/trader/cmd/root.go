package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "SMA crossover trading bot",
	Long: `Trader runs an SMA crossover strategy against an OANDA account or a
paper account fed by live OANDA prices.

It provides tools for:
  - Running the bot one bar at a time, with ATR stops and targets
  - Daily loss and profit circuit breakers
  - Trailing stops on the open position
  - Reading back the event log
  - Flattening the bot's position by hand`,
	SilenceUsage: true,
}

var configPath string

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file (YAML or JSON)")
}
