package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"fxq/internal/cache"
	"fxq/internal/config"
	"fxq/internal/exchangerate"
	"fxq/internal/history"
	"fxq/internal/logger"
	"fxq/internal/metrics"
	"fxq/internal/quote"
	"fxq/internal/retry"
	"fxq/internal/server"
)

// serveFlags receives serve flags before the configuration is loaded
var serveFlags = config.Default()

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the quote HTTP service",
	Long: `Run the HTTP service answering GET /quote requests.

Routes:
  GET    /quote?base_currency=EUR&quote_currency=USD&base_amount=100
  GET    /cache            cache statistics
  GET    /cache/entries    cached rates, most recently used first
  DELETE /cache            flush the cache
  GET    /health
  GET    /metrics          Prometheus metrics

The service stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveFlags.BindFlags(serveCmd.Flags())
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := cfg.Validate(true); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rateCache, err := cache.New(cache.Options{Size: cfg.CacheSize, TTL: cfg.CacheTTL})
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	var recorder quote.Recorder
	if cfg.HistoryPath != "" {
		journal, err := history.Open(cfg.HistoryPath)
		if err != nil {
			return err
		}
		defer journal.Close()
		recorder = journal
	}

	m := metrics.New()
	retryCfg := retry.DefaultConfig()
	fetcher := exchangerate.NewClient(exchangerate.Options{
		URLTemplate: cfg.ExchangeRateAPIURL,
		APIKey:      cfg.ExchangeRateAPIKey,
		Timeout:     cfg.UpstreamTimeout,
		Retry:       retryCfg,
	})

	svc, err := quote.New(quote.Options{
		Cache:        rateCache,
		Fetcher:      fetcher,
		Recorder:     recorder,
		Metrics:      m,
		Precision:    cfg.RoundPrecision,
		TTL:          cfg.CacheTTL,
		Currencies:   cfg.Currencies,
		FetchTimeout: retryCfg.Budget(cfg.UpstreamTimeout),
	})
	if err != nil {
		return err
	}

	logger.L().Info("starting",
		"port", cfg.Port,
		"cache_size", cfg.CacheSize,
		"cache_ttl", cfg.CacheTTL.String(),
		"precision", cfg.RoundPrecision,
		"currencies", cfg.Currencies,
		"environment", cfg.Environment,
		"history", cfg.HistoryPath,
	)

	addr := net.JoinHostPort("", strconv.Itoa(cfg.Port))
	return server.New(addr, svc, m).Run(ctx)
}
