package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/text/currency"
	"gopkg.in/yaml.v3"

	"fxq/internal/errors"
	"fxq/internal/validation"
)

// Service defaults
const (
	DefaultPort            = 7788
	DefaultRoundPrecision  = 3
	DefaultCacheSize       = 2
	DefaultCacheTTL        = 10 * time.Second
	DefaultUpstreamTimeout = 10 * time.Second
	DefaultExchangeRateURL = "https://v6.exchangerate-api.com/v6/{{API_KEY}}/pair/{{FROM}}/{{TO}}"
	DefaultServerURL       = "http://localhost:7788"
	MaxRoundPrecision      = 10
)

// Environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// maxTTLMillis is the largest millisecond TTL a time.Duration holds
const maxTTLMillis = math.MaxInt64 / int64(time.Millisecond)

// DefaultCurrencies is the list of currencies accepted when none are configured
var DefaultCurrencies = []string{"USD", "EUR", "GBP"}

// Config holds everything the service and CLI read at startup
type Config struct {
	Port               int           `yaml:"port"`
	ExchangeRateAPIURL string        `yaml:"exchangerate_api_url"`
	ExchangeRateAPIKey string        `yaml:"exchangerate_api_key"`
	RoundPrecision     int           `yaml:"round_precision"`
	CacheSize          int           `yaml:"cache_size"`
	CacheTTL           time.Duration `yaml:"-"`
	Currencies         []string      `yaml:"currencies"`
	UpstreamTimeout    time.Duration `yaml:"upstream_timeout"`
	HistoryPath        string        `yaml:"history_db"`
	LogLevel           string        `yaml:"log_level"`
	LogFormat          string        `yaml:"log_format"`
	LogFile            string        `yaml:"log_file"`
	Environment        string        `yaml:"environment"`
	ServerURL          string        `yaml:"server_url"`
}

// fileConfig carries fields whose file representation differs from Config
type fileConfig struct {
	Config     `yaml:",inline"`
	CacheTTLMs *int64 `yaml:"cache_ttl"`
}

// Default returns a Config populated with defaults
func Default() *Config {
	return &Config{
		Port:               DefaultPort,
		ExchangeRateAPIURL: DefaultExchangeRateURL,
		RoundPrecision:     DefaultRoundPrecision,
		CacheSize:          DefaultCacheSize,
		CacheTTL:           DefaultCacheTTL,
		Currencies:         append([]string(nil), DefaultCurrencies...),
		UpstreamTimeout:    DefaultUpstreamTimeout,
		HistoryPath:        DefaultHistoryPath(),
		LogLevel:           "info",
		Environment:        EnvDevelopment,
		ServerURL:          DefaultServerURL,
	}
}

// Load builds a Config from defaults, an optional YAML file and the
// environment, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile merges a YAML file into cfg
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	fc := fileConfig{Config: *c}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return errors.WrapConfigError(err, path)
	}
	*c = fc.Config
	if fc.CacheTTLMs != nil {
		ttl, err := ttlFromMillis(*fc.CacheTTLMs, "cache_ttl")
		if err != nil {
			return err
		}
		c.CacheTTL = ttl
	}
	return nil
}

// ApplyEnv overrides cfg from environment variables looked up with lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, ok := validation.ParseInteger(v)
		if !ok {
			return errors.WrapConfigError(fmt.Errorf("not an integer: %q", v), key)
		}
		*dst = int(n)
		return nil
	}

	if err := integer("PORT", &c.Port); err != nil {
		return err
	}
	if err := integer("ROUND_PRECISION", &c.RoundPrecision); err != nil {
		return err
	}
	if err := integer("CACHE_SIZE", &c.CacheSize); err != nil {
		return err
	}
	if v, ok := lookup("CACHE_TTL"); ok && v != "" {
		ms, ok := validation.ParseInteger(v)
		if !ok {
			return errors.WrapConfigError(fmt.Errorf("not an integer: %q", v), "CACHE_TTL")
		}
		ttl, err := ttlFromMillis(ms, "CACHE_TTL")
		if err != nil {
			return err
		}
		c.CacheTTL = ttl
	}
	if v, ok := lookup("FXQ_UPSTREAM_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.WrapConfigError(err, "FXQ_UPSTREAM_TIMEOUT")
		}
		c.UpstreamTimeout = d
	}
	if v, ok := lookup("FXQ_CURRENCIES"); ok && v != "" {
		c.Currencies = SplitList(v)
	}

	str("EXCHANGERATE_API_URL", &c.ExchangeRateAPIURL)
	str("EXCHANGERATE_API_KEY", &c.ExchangeRateAPIKey)
	// Set but empty disables the history journal
	if v, ok := lookup("FXQ_HISTORY_DB"); ok {
		c.HistoryPath = v
	}
	str("LOG_LEVEL", &c.LogLevel)
	str("FXQ_LOG_FORMAT", &c.LogFormat)
	str("FXQ_LOG", &c.LogFile)
	str("FXQ_ENV", &c.Environment)
	str("FXQ_SERVER", &c.ServerURL)
	return nil
}

// ttlFromMillis converts a millisecond TTL, rejecting values a
// time.Duration cannot hold
func ttlFromMillis(ms int64, field string) (time.Duration, error) {
	if ms < 0 {
		return 0, errors.WrapConfigError(fmt.Errorf("must not be negative, got %d", ms), field)
	}
	if ms > maxTTLMillis {
		return 0, errors.WrapConfigError(fmt.Errorf("must be at most %d, got %d", maxTTLMillis, ms), field)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// BindFlags registers flags that override cfg. Call after Load so the
// defaults shown in help reflect file and environment values.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.IntVar(&c.Port, "port", c.Port, "HTTP port to listen on")
	fs.StringVar(&c.ExchangeRateAPIURL, "api-url", c.ExchangeRateAPIURL, "Exchange rate API URL template ({{API_KEY}}, {{FROM}}, {{TO}})")
	fs.IntVar(&c.RoundPrecision, "precision", c.RoundPrecision, "Decimal places of the returned exchange rate")
	fs.IntVar(&c.CacheSize, "cache-size", c.CacheSize, "Maximum number of cached currency pairs")
	fs.DurationVar(&c.CacheTTL, "cache-ttl", c.CacheTTL, "Cached rate lifetime (0 disables expiration)")
	fs.StringSliceVar(&c.Currencies, "currencies", c.Currencies, "Supported currency codes")
	fs.DurationVar(&c.UpstreamTimeout, "upstream-timeout", c.UpstreamTimeout, "Timeout of a single rate provider request")
	fs.StringVar(&c.HistoryPath, "history-db", c.HistoryPath, "SQLite rate history path (empty disables history)")
}

// ApplyFlags copies the flags explicitly set on fs onto c. fs must have
// been populated by BindFlags, usually on a throwaway Config so that
// flags can be parsed before the file and environment are loaded.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	target := pflag.NewFlagSet("config", pflag.ContinueOnError)
	c.BindFlags(target)

	var err error
	fs.Visit(func(f *pflag.Flag) {
		dst := target.Lookup(f.Name)
		if dst == nil || err != nil {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			if dv, ok := dst.Value.(pflag.SliceValue); ok {
				err = dv.Replace(sv.GetSlice())
				return
			}
		}
		err = dst.Value.Set(f.Value.String())
	})
	return err
}

// Validate checks values needed by the HTTP service. requireUpstream
// additionally demands an API URL and key.
func (c *Config) Validate(requireUpstream bool) error {
	if c.Port < 1 || c.Port > 65535 {
		return errors.WrapConfigError(fmt.Errorf("must be between 1 and 65535, got %d", c.Port), "port")
	}
	if c.RoundPrecision < 0 || c.RoundPrecision > MaxRoundPrecision {
		return errors.WrapConfigError(fmt.Errorf("must be between 0 and %d, got %d", MaxRoundPrecision, c.RoundPrecision), "round_precision")
	}
	if c.CacheSize < 1 {
		return errors.WrapConfigError(fmt.Errorf("must be at least 1, got %d", c.CacheSize), "cache_size")
	}
	if c.CacheTTL < 0 {
		return errors.WrapConfigError(fmt.Errorf("must be 0 (disabled) or positive, got %s", c.CacheTTL), "cache_ttl")
	}
	if c.UpstreamTimeout <= 0 {
		return errors.WrapConfigError(fmt.Errorf("must be positive, got %s", c.UpstreamTimeout), "upstream_timeout")
	}
	if err := c.normalizeCurrencies(); err != nil {
		return err
	}
	if requireUpstream {
		if c.ExchangeRateAPIURL == "" {
			return errors.WrapConfigError(fmt.Errorf("not defined"), "EXCHANGERATE_API_URL")
		}
		if c.ExchangeRateAPIKey == "" {
			return errors.WrapConfigError(fmt.Errorf("not defined"), "EXCHANGERATE_API_KEY")
		}
	}
	return nil
}

// normalizeCurrencies upper-cases the configured codes and checks each one
// against ISO 4217
func (c *Config) normalizeCurrencies() error {
	if len(c.Currencies) == 0 {
		return errors.WrapConfigError(fmt.Errorf("at least one currency is required"), "currencies")
	}
	seen := make(map[string]bool, len(c.Currencies))
	out := make([]string, 0, len(c.Currencies))
	for _, code := range c.Currencies {
		code = validation.NormalizeCurrency(code)
		unit, err := currency.ParseISO(code)
		if err != nil {
			return errors.WrapConfigError(fmt.Errorf("unknown currency %q", code), "currencies")
		}
		code = unit.String()
		if !seen[code] {
			seen[code] = true
			out = append(out, code)
		}
	}
	c.Currencies = out
	return nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool { return c.Environment == EnvProduction }

// IsTest reports whether the service runs under tests
func (c *Config) IsTest() bool { return c.Environment == EnvTest }

// EffectiveLogFormat returns the configured log format, defaulting to text
// in development and json otherwise
func (c *Config) EffectiveLogFormat() string {
	if c.LogFormat != "" {
		return c.LogFormat
	}
	if c.Environment == EnvDevelopment {
		return "text"
	}
	return "json"
}

// SplitList splits a comma separated list, dropping empty items
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DefaultHistoryPath returns the rate history path following XDG standards
func DefaultHistoryPath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "fxq", "history.db")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".", "fxq-history.db")
	}
	return filepath.Join(home, ".local", "share", "fxq", "history.db")
}
