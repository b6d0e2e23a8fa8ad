// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/rpillai/etfsentinel/internal/market"
	"github.com/rpillai/etfsentinel/internal/slab"
)

// Config represents the complete application configuration.
type Config struct {
	Market      MarketConfig      `mapstructure:"market"`
	Instruments InstrumentsConfig `mapstructure:"instruments"`
	Alerts      AlertsConfig      `mapstructure:"alerts"`
	Sources     SourcesConfig     `mapstructure:"sources"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// MarketConfig holds the trading calendar: timezone, weekday set, and the
// open/close window, all fixed per market but configurable per deployment.
type MarketConfig struct {
	Timezone      string   `mapstructure:"timezone"`
	Weekdays      []string `mapstructure:"weekdays"`
	Open          string   `mapstructure:"open"`
	Close         string   `mapstructure:"close"`
	SummaryCutoff string   `mapstructure:"summary_cutoff"`
}

// InstrumentsConfig lists the tracked NSE symbols per category.
type InstrumentsConfig struct {
	ETFs   []string `mapstructure:"etfs"`
	Stocks []string `mapstructure:"stocks"`
}

// AlertsConfig holds the slab thresholds per category.
type AlertsConfig struct {
	ETFSlabs   []float64 `mapstructure:"etf_slabs"`
	StockSlabs []float64 `mapstructure:"stock_slabs"`
}

// SourcesConfig selects the primary price source and optional fallback.
type SourcesConfig struct {
	Primary  string       `mapstructure:"primary"`
	Fallback string       `mapstructure:"fallback"`
	Upstox   UpstoxConfig `mapstructure:"upstox"`
	Yahoo    YahooConfig  `mapstructure:"yahoo"`
}

// UpstoxConfig holds Upstox API client settings.
type UpstoxConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	PageSize       int           `mapstructure:"page_size"`
}

// YahooConfig holds Yahoo Finance client settings.
type YahooConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	DBPath        string `mapstructure:"db_path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("ETF_SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Market defaults: NSE hours.
	v.SetDefault("market.timezone", "Asia/Kolkata")
	v.SetDefault("market.weekdays", []string{"Mon", "Tue", "Wed", "Thu", "Fri"})
	v.SetDefault("market.open", "09:15")
	v.SetDefault("market.close", "15:30")
	v.SetDefault("market.summary_cutoff", "15:30")

	// Alert slab defaults.
	v.SetDefault("alerts.etf_slabs", []float64{-2.5, -3.5, -5.0, -8.0, -10.0})
	v.SetDefault("alerts.stock_slabs", []float64{-5.0, -8.0, -10.0})

	// Source defaults.
	v.SetDefault("sources.primary", "upstox")
	v.SetDefault("sources.fallback", "yahoo")
	v.SetDefault("sources.upstox.base_url", "https://api.upstox.com/v2/market-quote/etfs")
	v.SetDefault("sources.upstox.timeout", "15s")
	v.SetDefault("sources.upstox.max_retries", 3)
	v.SetDefault("sources.upstox.retry_delay_base", "1s")
	v.SetDefault("sources.upstox.page_size", 50)
	v.SetDefault("sources.yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("sources.yahoo.timeout", "15s")
	v.SetDefault("sources.yahoo.max_retries", 3)
	v.SetDefault("sources.yahoo.retry_delay_base", "1s")
	v.SetDefault("sources.yahoo.max_concurrency", 8)

	// Telegram defaults.
	v.SetDefault("telegram.enabled", true)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults.
	v.SetDefault("storage.db_path", "./data/etfsentinel.db")
	v.SetDefault("storage.retention_days", 30)

	// Logging defaults.
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

var validWeekdays = map[string]time.Weekday{
	"Sun": time.Sunday, "Mon": time.Monday, "Tue": time.Tuesday, "Wed": time.Wednesday,
	"Thu": time.Thursday, "Fri": time.Friday, "Sat": time.Saturday,
}

// Validate checks that all configuration values are valid. It runs before
// any network activity; a broken config is fatal at startup.
func (c *Config) Validate() error {
	if c.Market.Timezone == "" {
		return fmt.Errorf("market.timezone is required")
	}
	if len(c.Market.Weekdays) == 0 {
		return fmt.Errorf("market.weekdays must contain at least one day")
	}
	for _, d := range c.Market.Weekdays {
		if _, ok := validWeekdays[d]; !ok {
			return fmt.Errorf("market.weekdays contains unknown day %q", d)
		}
	}
	for _, field := range []struct{ name, val string }{
		{"market.open", c.Market.Open},
		{"market.close", c.Market.Close},
		{"market.summary_cutoff", c.Market.SummaryCutoff},
	} {
		if _, err := market.ParseMinuteOfDay(field.val); err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
	}

	if len(c.Alerts.ETFSlabs) == 0 {
		return fmt.Errorf("alerts.etf_slabs must contain at least one threshold")
	}
	if len(c.Alerts.StockSlabs) == 0 {
		return fmt.Errorf("alerts.stock_slabs must contain at least one threshold")
	}
	if _, err := c.SlabTables(); err != nil {
		return err
	}

	switch c.Sources.Primary {
	case "upstox", "yahoo":
	default:
		return fmt.Errorf("sources.primary must be one of: upstox, yahoo")
	}
	switch c.Sources.Fallback {
	case "", "upstox", "yahoo":
	default:
		return fmt.Errorf("sources.fallback must be empty or one of: upstox, yahoo")
	}
	if c.Sources.Fallback == c.Sources.Primary {
		return fmt.Errorf("sources.fallback must differ from sources.primary")
	}
	if c.Sources.Upstox.BaseURL == "" {
		return fmt.Errorf("sources.upstox.base_url is required")
	}
	if c.Sources.Yahoo.BaseURL == "" {
		return fmt.Errorf("sources.yahoo.base_url is required")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.RetentionDays < 1 {
		return fmt.Errorf("storage.retention_days must be at least 1")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// SlabTables builds the per-category slab tables from the configured
// thresholds.
func (c *Config) SlabTables() (slab.Tables, error) {
	etf, err := slab.NewTable(toDecimals(c.Alerts.ETFSlabs))
	if err != nil {
		return slab.Tables{}, fmt.Errorf("alerts.etf_slabs: %w", err)
	}
	stock, err := slab.NewTable(toDecimals(c.Alerts.StockSlabs))
	if err != nil {
		return slab.Tables{}, fmt.Errorf("alerts.stock_slabs: %w", err)
	}
	return slab.Tables{ETF: etf, Stock: stock}, nil
}

// Calendar builds the trading calendar from the market section.
func (c *Config) Calendar() (*market.Calendar, error) {
	open, err := market.ParseMinuteOfDay(c.Market.Open)
	if err != nil {
		return nil, fmt.Errorf("market.open: %w", err)
	}
	closeAt, err := market.ParseMinuteOfDay(c.Market.Close)
	if err != nil {
		return nil, fmt.Errorf("market.close: %w", err)
	}
	cutoff, err := market.ParseMinuteOfDay(c.Market.SummaryCutoff)
	if err != nil {
		return nil, fmt.Errorf("market.summary_cutoff: %w", err)
	}
	days := make([]time.Weekday, 0, len(c.Market.Weekdays))
	for _, d := range c.Market.Weekdays {
		wd, ok := validWeekdays[d]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", d)
		}
		days = append(days, wd)
	}
	return market.NewCalendar(c.Market.Timezone, days, open, closeAt, cutoff)
}

func toDecimals(vals []float64) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(vals))
	for _, v := range vals {
		out = append(out, decimal.NewFromFloat(v))
	}
	return out
}
