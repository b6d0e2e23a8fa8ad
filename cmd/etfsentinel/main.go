// etfsentinel - NSE ETF and stock slab alerting over Telegram.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rpillai/etfsentinel/internal/config"
	"github.com/rpillai/etfsentinel/internal/logger"
	"github.com/rpillai/etfsentinel/internal/pricesource"
	"github.com/rpillai/etfsentinel/internal/pricesource/upstox"
	"github.com/rpillai/etfsentinel/internal/pricesource/yahoo"
	"github.com/rpillai/etfsentinel/internal/runner"
	"github.com/rpillai/etfsentinel/internal/storage"
	"github.com/rpillai/etfsentinel/internal/telegram"
)

var (
	version    = "0.1.0"
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "etfsentinel",
		Short: "NSE ETF and stock threshold alerting",
		Long: `etfsentinel polls NSE ETF and stock prices, alerts a Telegram chat
once per newly reached drop slab per instrument per day, and sends one
end-of-day summary. Each invocation is a single poll cycle; scheduling
is external (cron or CI trigger).`,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to configuration file")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one scheduled poll cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCycle(false)
		},
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Run a manual verification cycle",
		Long: `verify reports every crossed slab regardless of what has already been
alerted today and does not persist state, so it never pollutes the
day's dedup memory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCycle(true)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("etfsentinel version %s\n", version)
		},
	}
}

func runCycle(manual bool) error {
	// Secrets like ETF_SENTINEL_TELEGRAM_BOT_TOKEN may live in .env;
	// absence is fine in production.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", configPath)

	tables, err := cfg.SlabTables()
	if err != nil {
		logger.Fatal("Invalid slab tables: %v", err)
	}
	cal, err := cfg.Calendar()
	if err != nil {
		logger.Fatal("Invalid market calendar: %v", err)
	}

	store, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to open storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	source, err := buildSourceChain(cfg)
	if err != nil {
		logger.Fatal("Failed to build price sources: %v", err)
	}

	var notifier runner.Notifier
	if cfg.Telegram.Enabled {
		client, err := telegram.NewClient(
			cfg.Telegram.BotToken, cfg.Telegram.ChatID, cal.Location(),
			cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase,
		)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		notifier = client
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	r := runner.New(store, source, tables, cal, notifier, cfg.Storage.RetentionDays)
	if manual {
		logger.Info("Running in manual verification mode: dedup bypassed, state not persisted")
	}
	return r.RunCycle(ctx, manual)
}

func buildSourceChain(cfg *config.Config) (pricesource.Source, error) {
	build := func(name string) (pricesource.Source, error) {
		switch name {
		case "upstox":
			return upstox.NewClient(upstox.Config{
				BaseURL:        cfg.Sources.Upstox.BaseURL,
				Timeout:        cfg.Sources.Upstox.Timeout,
				MaxRetries:     cfg.Sources.Upstox.MaxRetries,
				RetryDelayBase: cfg.Sources.Upstox.RetryDelayBase,
				PageSize:       cfg.Sources.Upstox.PageSize,
			}), nil
		case "yahoo":
			return yahoo.NewClient(yahoo.Config{
				BaseURL:        cfg.Sources.Yahoo.BaseURL,
				Timeout:        cfg.Sources.Yahoo.Timeout,
				MaxRetries:     cfg.Sources.Yahoo.MaxRetries,
				RetryDelayBase: cfg.Sources.Yahoo.RetryDelayBase,
				MaxConcurrency: cfg.Sources.Yahoo.MaxConcurrency,
				ETFSymbols:     cfg.Instruments.ETFs,
				StockSymbols:   cfg.Instruments.Stocks,
			}), nil
		default:
			return nil, fmt.Errorf("unknown price source %q", name)
		}
	}

	primary, err := build(cfg.Sources.Primary)
	if err != nil {
		return nil, err
	}
	if cfg.Sources.Fallback == "" {
		return pricesource.NewChain(primary), nil
	}
	fallback, err := build(cfg.Sources.Fallback)
	if err != nil {
		return nil, err
	}
	return pricesource.NewChain(primary, fallback), nil
}
