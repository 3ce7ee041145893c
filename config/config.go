// Package config holds the bot's immutable runtime configuration. Trading
// keys sit at the top level; infrastructure settings are grouped in
// sections.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/trendbot/indicators"
	"github.com/rustyeddy/trendbot/market"
	"github.com/rustyeddy/trendbot/risk"
	"github.com/rustyeddy/trendbot/strategies"
)

type Config struct {
	Symbol    string `json:"symbol" yaml:"symbol"`
	Timeframe string `json:"timeframe" yaml:"timeframe"`
	Strategy  string `json:"strategy" yaml:"strategy"`

	RiskPercentPerTrade float64 `json:"risk_percent_per_trade" yaml:"risk_percent_per_trade"`
	DefaultRRRatio      float64 `json:"default_rr_ratio" yaml:"default_rr_ratio"`

	ATRPeriod       int     `json:"atr_period" yaml:"atr_period"`
	ATRMultiplierSL float64 `json:"atr_multiplier_sl" yaml:"atr_multiplier_sl"`
	ATRMultiplierTP float64 `json:"atr_multiplier_tp" yaml:"atr_multiplier_tp"`
	MinATRForTrade  float64 `json:"min_atr_for_trade" yaml:"min_atr_for_trade"`

	SMAFastLength  int `json:"sma_fast_length" yaml:"sma_fast_length"`
	SMASlowLength  int `json:"sma_slow_length" yaml:"sma_slow_length"`
	SMATrendLength int `json:"sma_trend_length" yaml:"sma_trend_length"`

	EnableRSIFilter bool    `json:"enable_rsi_filter" yaml:"enable_rsi_filter"`
	RSIPeriod       int     `json:"rsi_period" yaml:"rsi_period"`
	RSIOverbought   float64 `json:"rsi_overbought" yaml:"rsi_overbought"`
	RSIOversold     float64 `json:"rsi_oversold" yaml:"rsi_oversold"`

	MaxDailyLossPercent   float64 `json:"max_daily_loss_percent" yaml:"max_daily_loss_percent"`
	MaxDailyProfitPercent float64 `json:"max_daily_profit_percent" yaml:"max_daily_profit_percent"`

	DataBarsToFetch int `json:"data_bars_to_fetch" yaml:"data_bars_to_fetch"`
	MinDeviation    int `json:"min_deviation" yaml:"min_deviation"`
	MagicNumber     int `json:"magic_number" yaml:"magic_number"`

	EnableTrailingStop          bool    `json:"enable_trailing_stop" yaml:"enable_trailing_stop"`
	TrailingStopATRFactor       float64 `json:"trailing_stop_atr_factor" yaml:"trailing_stop_atr_factor"`
	TrailingStopMinProfitPoints float64 `json:"trailing_stop_min_profit_points" yaml:"trailing_stop_min_profit_points"`

	Broker  BrokerConfig  `json:"broker" yaml:"broker"`
	Journal JournalConfig `json:"journal" yaml:"journal"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Bot     BotConfig     `json:"bot" yaml:"bot"`
}

// BrokerConfig selects the broker adapter. Secrets are read from the
// named environment variables, never from the file.
type BrokerConfig struct {
	Kind          string  `json:"kind" yaml:"kind"`               // "oanda" or "paper"
	Environment   string  `json:"environment" yaml:"environment"` // "practice" or "live"
	TokenEnv      string  `json:"token_env" yaml:"token_env"`
	AccountEnv    string  `json:"account_env" yaml:"account_env"`
	EnvFile       string  `json:"env_file,omitempty" yaml:"env_file,omitempty"`
	MinStopPoints float64 `json:"min_stop_points" yaml:"min_stop_points"`

	PaperBalance  float64 `json:"paper_balance" yaml:"paper_balance"`
	PaperCurrency string  `json:"paper_currency" yaml:"paper_currency"`
}

// JournalConfig contains event log parameters
type JournalConfig struct {
	Type   string `json:"type" yaml:"type"` // "csv", "sqlite" or "both"
	Path   string `json:"path" yaml:"path"`
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type LogConfig struct {
	Level      string `json:"level" yaml:"level"`
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
}

type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"` // e.g. ":9108"; empty disables
}

// BotConfig tunes the run loop. Durations are strings like "10s" or "1m".
type BotConfig struct {
	BrokerTimeout string `json:"broker_timeout" yaml:"broker_timeout"`
	ErrorCooldown string `json:"error_cooldown" yaml:"error_cooldown"`
	MaxCooldown   string `json:"max_cooldown" yaml:"max_cooldown"`
	WarmupBars    int    `json:"warmup_bars" yaml:"warmup_bars"`
	Timezone      string `json:"timezone" yaml:"timezone"` // session day boundary
}

func (b BotConfig) BrokerTimeoutDuration() (time.Duration, error) {
	return parseDuration("bot.broker_timeout", b.BrokerTimeout)
}

func (b BotConfig) ErrorCooldownDuration() (time.Duration, error) {
	return parseDuration("bot.error_cooldown", b.ErrorCooldown)
}

func (b BotConfig) MaxCooldownDuration() (time.Duration, error) {
	return parseDuration("bot.max_cooldown", b.MaxCooldown)
}

// Location resolves Timezone. Empty and "Local" mean the host zone.
func (b BotConfig) Location() (*time.Location, error) {
	switch b.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return nil, fmt.Errorf("bot.timezone: %w", err)
	}
	return loc, nil
}

func parseDuration(key, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

// Default returns the built-in configuration. Every key missing from a
// file keeps its value from here.
func Default() *Config {
	return &Config{
		Symbol:    "XAUUSDm",
		Timeframe: "M1",
		Strategy:  "sma-cross",

		RiskPercentPerTrade: 1.0,
		DefaultRRRatio:      2.0,

		ATRPeriod:       14,
		ATRMultiplierSL: 1.5,
		ATRMultiplierTP: 3.0,
		MinATRForTrade:  0.5,

		SMAFastLength:  5,
		SMASlowLength:  20,
		SMATrendLength: 50,

		EnableRSIFilter: true,
		RSIPeriod:       14,
		RSIOverbought:   70,
		RSIOversold:     30,

		MaxDailyLossPercent:   5.0,
		MaxDailyProfitPercent: 10.0,

		DataBarsToFetch: 300,
		MinDeviation:    20,
		MagicNumber:     123456,

		EnableTrailingStop:          false,
		TrailingStopATRFactor:       1.0,
		TrailingStopMinProfitPoints: 50,

		Broker: BrokerConfig{
			Kind:          "oanda",
			Environment:   "practice",
			TokenEnv:      "OANDA_TOKEN",
			AccountEnv:    "OANDA_ACCOUNT_ID",
			EnvFile:       ".env",
			PaperBalance:  10000,
			PaperCurrency: "USD",
		},
		Journal: JournalConfig{
			Type:   "csv",
			Path:   "trade_log.csv",
			DBPath: "trade_log.db",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Bot: BotConfig{
			BrokerTimeout: "10s",
			ErrorCooldown: "60s",
			MaxCooldown:   "10m",
			WarmupBars:    100,
			Timezone:      "Local",
		},
	}
}

// LoadFromFile reads a YAML or JSON file over Default. Unknown keys are
// ignored.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", errors.Join(err, jerr))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadOrCreate loads path, first writing the defaults there when the file
// does not exist. It reports whether the file was created.
func LoadOrCreate(path string) (*Config, bool, error) {
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := Default()
		if err := cfg.SaveToFile(path); err != nil {
			return nil, false, err
		}
		return cfg, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("stat config file: %w", err)
	}

	cfg, err := LoadFromFile(path)
	return cfg, false, err
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate returns the first invalid key.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if _, err := market.TimeframeDuration(c.Timeframe); err != nil {
		return fmt.Errorf("timeframe: %w", err)
	}
	if c.RiskPercentPerTrade <= 0 || c.RiskPercentPerTrade > 100 {
		return fmt.Errorf("risk_percent_per_trade must be in (0, 100]")
	}
	if c.DefaultRRRatio <= 0 {
		return fmt.Errorf("default_rr_ratio must be positive")
	}
	if c.ATRMultiplierSL <= 0 || c.ATRMultiplierTP <= 0 {
		return fmt.Errorf("atr_multiplier_sl and atr_multiplier_tp must be positive")
	}
	if c.MinATRForTrade < 0 {
		return fmt.Errorf("min_atr_for_trade must not be negative")
	}
	if err := c.IndicatorParams().Validate(); err != nil {
		return err
	}
	if c.SMAFastLength >= c.SMASlowLength {
		return fmt.Errorf("sma_fast_length must be shorter than sma_slow_length")
	}
	if c.EnableRSIFilter && c.RSIOversold >= c.RSIOverbought {
		return fmt.Errorf("rsi_oversold must be below rsi_overbought")
	}
	if c.MaxDailyLossPercent < 0 || c.MaxDailyProfitPercent < 0 {
		return fmt.Errorf("max daily loss/profit percent must not be negative")
	}
	if c.DataBarsToFetch < 2 {
		return fmt.Errorf("data_bars_to_fetch must be at least 2")
	}
	if c.MinDeviation < 0 {
		return fmt.Errorf("min_deviation must not be negative")
	}
	if c.EnableTrailingStop && c.TrailingStopATRFactor <= 0 {
		return fmt.Errorf("trailing_stop_atr_factor must be positive")
	}
	if _, err := strategies.ByName(c.Strategy, c.SMACross()); err != nil {
		return err
	}

	switch c.Broker.Kind {
	case "oanda", "paper":
	default:
		return fmt.Errorf("broker.kind must be 'oanda' or 'paper'")
	}
	if c.Broker.Kind == "paper" && c.Broker.PaperBalance <= 0 {
		return fmt.Errorf("broker.paper_balance must be positive")
	}
	switch c.Journal.Type {
	case "csv", "both":
		if c.Journal.Path == "" {
			return fmt.Errorf("journal.path required for CSV type")
		}
	case "sqlite":
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'both'")
	}
	if c.Journal.Type != "csv" && c.Journal.DBPath == "" {
		return fmt.Errorf("journal.db_path required for SQLite type")
	}

	if _, err := c.Bot.BrokerTimeoutDuration(); err != nil {
		return err
	}
	cooldown, err := c.Bot.ErrorCooldownDuration()
	if err != nil {
		return err
	}
	if cooldown <= 0 {
		return fmt.Errorf("bot.error_cooldown must be positive")
	}
	maxCooldown, err := c.Bot.MaxCooldownDuration()
	if err != nil {
		return err
	}
	if maxCooldown < cooldown {
		return fmt.Errorf("bot.max_cooldown must not be below bot.error_cooldown")
	}
	if c.Bot.WarmupBars < 0 {
		return fmt.Errorf("bot.warmup_bars must not be negative")
	}
	if _, err := c.Bot.Location(); err != nil {
		return err
	}
	return nil
}

// IndicatorParams are the frame settings for indicators.Build.
func (c *Config) IndicatorParams() indicators.Params {
	return indicators.Params{
		FastLen:   c.SMAFastLength,
		SlowLen:   c.SMASlowLength,
		TrendLen:  c.SMATrendLength,
		ATRPeriod: c.ATRPeriod,
		RSI:       c.EnableRSIFilter,
		RSIPeriod: c.RSIPeriod,
	}
}

func (c *Config) SMACross() strategies.SMACrossConfig {
	return strategies.SMACrossConfig{
		RSIFilter:     c.EnableRSIFilter,
		RSIOverbought: c.RSIOverbought,
		RSIOversold:   c.RSIOversold,
	}
}

func (c *Config) Stops() risk.StopConfig {
	return risk.StopConfig{
		SLMultiplier: c.ATRMultiplierSL,
		TPMultiplier: c.ATRMultiplierTP,
		RRRatio:      c.DefaultRRRatio,
	}
}

func (c *Config) Trail() risk.TrailConfig {
	return risk.TrailConfig{
		Enabled:         c.EnableTrailingStop,
		ATRFactor:       c.TrailingStopATRFactor,
		MinProfitPoints: c.TrailingStopMinProfitPoints,
	}
}

// Gate builds the risk gate settings. The timezone must already be valid.
func (c *Config) Gate() risk.GateConfig {
	loc, err := c.Bot.Location()
	if err != nil {
		loc = time.Local
	}
	return risk.GateConfig{
		MaxDailyLossPct:   c.MaxDailyLossPercent,
		MaxDailyProfitPct: c.MaxDailyProfitPercent,
		MinATR:            c.MinATRForTrade,
		Magic:             c.MagicNumber,
		Location:          loc,
	}
}

// FetchCount is the number of bars a cycle requests: the configured look
// back plus the warm-up buffer.
func (c *Config) FetchCount() int {
	return c.DataBarsToFetch + c.Bot.WarmupBars
}
