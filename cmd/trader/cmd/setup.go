package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/trendbot/broker"
	"github.com/rustyeddy/trendbot/broker/oanda"
	"github.com/rustyeddy/trendbot/broker/paper"
	"github.com/rustyeddy/trendbot/config"
	"github.com/rustyeddy/trendbot/journal"
)

// bootLogConfig is used until the config file has been read.
func bootLogConfig() config.LogConfig {
	return config.LogConfig{Level: os.Getenv("TRADER_LOG_LEVEL")}
}

// loadConfig reads the config file, writing the defaults first when it
// does not exist yet.
func loadConfig(log zerolog.Logger) (*config.Config, error) {
	cfg, created, err := config.LoadOrCreate(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if created {
		log.Warn().Str("path", configPath).Msg("config file not found, wrote defaults")
	}
	return cfg, nil
}

// loadEnv pulls secrets from the env file when there is one. Variables
// already set in the environment win.
func loadEnv(cfg *config.Config) error {
	if cfg.Broker.EnvFile == "" {
		return nil
	}
	err := godotenv.Load(cfg.Broker.EnvFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", cfg.Broker.EnvFile, err)
	}
	return nil
}

func newOANDA(cfg *config.Config) (*oanda.Client, error) {
	if err := loadEnv(cfg); err != nil {
		return nil, err
	}
	token := os.Getenv(cfg.Broker.TokenEnv)
	account := os.Getenv(cfg.Broker.AccountEnv)
	if token == "" || account == "" {
		return nil, fmt.Errorf("%s and %s must be set", cfg.Broker.TokenEnv, cfg.Broker.AccountEnv)
	}
	base, err := oanda.BaseURL(cfg.Broker.Environment)
	if err != nil {
		return nil, err
	}
	return oanda.NewClient(token, account, base == oanda.PracticeURL,
		oanda.WithBaseURL(base),
		oanda.WithMinStopPoints(cfg.Broker.MinStopPoints),
	), nil
}

// openBroker returns the configured broker bounded by the broker timeout.
// Paper mode quotes from OANDA and executes in memory.
func openBroker(cfg *config.Config, forcePaper bool, log zerolog.Logger) (broker.Broker, error) {
	timeout, err := cfg.Bot.BrokerTimeoutDuration()
	if err != nil {
		return nil, err
	}

	client, err := newOANDA(cfg)
	if err != nil {
		return nil, err
	}

	var b broker.Broker = client
	if forcePaper || cfg.Broker.Kind == "paper" {
		log.Info().Float64("balance", cfg.Broker.PaperBalance).Str("currency", cfg.Broker.PaperCurrency).
			Msg("paper trading on live prices")
		b = paper.New(client, cfg.Broker.PaperBalance, cfg.Broker.PaperCurrency,
			paper.WithLogger(log.With().Str("broker", "paper").Logger()))
	}
	return broker.WithTimeout(b, timeout), nil
}

// openEventLog opens the configured event log sinks.
func openEventLog(cfg *config.Config) (journal.EventLog, error) {
	switch cfg.Journal.Type {
	case "csv":
		return journal.NewCSV(cfg.Journal.Path)
	case "sqlite":
		return journal.NewSQLite(cfg.Journal.DBPath)
	case "both":
		c, err := journal.NewCSV(cfg.Journal.Path)
		if err != nil {
			return nil, err
		}
		s, err := journal.NewSQLite(cfg.Journal.DBPath)
		if err != nil {
			c.Close()
			return nil, err
		}
		return journal.Multi{c, s}, nil
	default:
		return nil, fmt.Errorf("unknown journal type %q", cfg.Journal.Type)
	}
}
