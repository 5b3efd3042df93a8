package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fxq/internal/client"
	"fxq/internal/config"
	"fxq/internal/logger"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	serverURL string

	// cfg is loaded before any command runs
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "fxq",
	Short: "Currency quote service with an LRU rate cache",
	Long: `fxq serves currency quotes backed by an exchange rate provider.

Conversion rates are kept in a fixed size LRU cache with a time to live, so
repeated quotes for the same currency pair do not hit the provider again
until the cached rate expires.

Common usage:
  fxq serve                                # Run the HTTP service
  fxq quote EUR USD 100                    # Ask a running service for a quote
  fxq cache dump                           # Show cached rates, most recent first
  fxq watch                                # Live view of the rate cache
  fxq history list                         # Rates fetched from the provider

Configuration is read from --config (YAML), then the environment
(PORT, EXCHANGERATE_API_URL, EXCHANGERATE_API_KEY, CACHE_SIZE, CACHE_TTL, ...),
then command line flags.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			loaded.LogFormat = logFormat
		}
		if cmd.Flags().Changed("server") {
			loaded.ServerURL = serverURL
		}
		cfg = loaded

		return logger.Init(logger.Options{
			Level:   cfg.LogLevel,
			Format:  cfg.EffectiveLogFormat(),
			File:    cfg.LogFile,
			Service: "fxq",
		})
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Close()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "YAML configuration file")
	pf.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "", "Log format: json or text (default depends on environment)")
	pf.StringVar(&serverURL, "server", config.DefaultServerURL, "URL of a running fxq server")
}

// newClient returns a client for the configured server
func newClient() *client.Client {
	return client.New(cfg.ServerURL, client.DefaultTimeout)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
