package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/trendbot/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage the bot configuration file.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  trader config init -o config.yaml
  trader config validate -c config.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var configInitOutput string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "config.yaml", "output config file path (.yaml or .json)")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nEdit the file and run with:")
	fmt.Fprintf(out, "  trader run -c %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", configPath)
	fmt.Fprintf(out, "  Symbol: %s %s (strategy %s, magic %d)\n", cfg.Symbol, cfg.Timeframe, cfg.Strategy, cfg.MagicNumber)
	fmt.Fprintf(out, "  SMA: %d/%d trend %d, ATR %d, RSI filter %v\n",
		cfg.SMAFastLength, cfg.SMASlowLength, cfg.SMATrendLength, cfg.ATRPeriod, cfg.EnableRSIFilter)
	fmt.Fprintf(out, "  Risk: %.2f%% per trade, daily loss %.2f%%, daily profit %.2f%%\n",
		cfg.RiskPercentPerTrade, cfg.MaxDailyLossPercent, cfg.MaxDailyProfitPercent)
	fmt.Fprintf(out, "  Broker: %s (%s)\n", cfg.Broker.Kind, cfg.Broker.Environment)
	fmt.Fprintf(out, "  Journal: %s\n", cfg.Journal.Type)
	return nil
}
