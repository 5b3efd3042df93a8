package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"fxq/internal/errors"
)

func envFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Port != 7788 {
		t.Errorf("Expected default port 7788, got %d", cfg.Port)
	}
	if cfg.CacheSize != 2 {
		t.Errorf("Expected default cache size 2, got %d", cfg.CacheSize)
	}
	if cfg.CacheTTL != 10*time.Second {
		t.Errorf("Expected default cache TTL 10s, got %v", cfg.CacheTTL)
	}
	if cfg.RoundPrecision != 3 {
		t.Errorf("Expected default precision 3, got %d", cfg.RoundPrecision)
	}
	if len(cfg.Currencies) != 3 {
		t.Errorf("Expected 3 default currencies, got %v", cfg.Currencies)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envFrom(map[string]string{
		"PORT":                 "8080",
		"CACHE_SIZE":           "16",
		"CACHE_TTL":            "20000",
		"ROUND_PRECISION":      "4",
		"EXCHANGERATE_API_URL": "http://fake-api-url/{{API_KEY}}/pair/{{FROM}}/{{TO}}",
		"EXCHANGERATE_API_KEY": "THIS_IS_API_KEY",
		"FXQ_CURRENCIES":       "usd, eur,,ils",
		"FXQ_UPSTREAM_TIMEOUT": "3s",
		"FXQ_ENV":              "production",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.Port != 8080 || cfg.CacheSize != 16 || cfg.RoundPrecision != 4 {
		t.Errorf("Integer overrides not applied: %+v", cfg)
	}
	if cfg.CacheTTL != 20*time.Second {
		t.Errorf("Expected CACHE_TTL in milliseconds, got %v", cfg.CacheTTL)
	}
	if cfg.UpstreamTimeout != 3*time.Second {
		t.Errorf("Expected upstream timeout 3s, got %v", cfg.UpstreamTimeout)
	}
	if len(cfg.Currencies) != 3 || cfg.Currencies[2] != "ils" {
		t.Errorf("Unexpected currencies %v", cfg.Currencies)
	}
	if !cfg.IsProduction() || cfg.EffectiveLogFormat() != "json" {
		t.Error("Expected production mode with json logs")
	}
}

func TestApplyEnvRejectsNonIntegers(t *testing.T) {
	for _, key := range []string{"PORT", "CACHE_SIZE", "CACHE_TTL", "ROUND_PRECISION"} {
		for _, value := range []string{"5e5", "1.5", "12a"} {
			cfg := Default()
			err := cfg.ApplyEnv(envFrom(map[string]string{key: value}))
			var qe *errors.QuoteError
			if !stderrors.As(err, &qe) || qe.Code != errors.InvalidConfiguration {
				t.Errorf("%s=%s: expected InvalidConfiguration, got %v", key, value, err)
			}
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero cache size", func(c *Config) { c.CacheSize = 0 }, true},
		{"negative ttl", func(c *Config) { c.CacheTTL = -time.Millisecond }, true},
		{"ttl disabled", func(c *Config) { c.CacheTTL = 0 }, false},
		{"bad port", func(c *Config) { c.Port = 70000 }, true},
		{"precision too high", func(c *Config) { c.RoundPrecision = 11 }, true},
		{"no currencies", func(c *Config) { c.Currencies = nil }, true},
		{"unknown currency", func(c *Config) { c.Currencies = []string{"USD", "XYZ"} }, true},
		{"zero timeout", func(c *Config) { c.UpstreamTimeout = 0 }, true},
	}

	for _, test := range tests {
		cfg := Default()
		test.mutate(cfg)
		err := cfg.Validate(false)
		if (err != nil) != test.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", test.name, err, test.wantErr)
		}
	}
}

func TestValidateRequiresUpstream(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(true); err == nil {
		t.Error("Expected missing API key to fail validation")
	}
	cfg.ExchangeRateAPIKey = "key"
	if err := cfg.Validate(true); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestValidateNormalizesCurrencies(t *testing.T) {
	cfg := Default()
	cfg.Currencies = []string{"usd", "EUR", "usd", " gbp "}
	if err := cfg.Validate(false); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expected := []string{"USD", "EUR", "GBP"}
	if len(cfg.Currencies) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, cfg.Currencies)
	}
	for i := range expected {
		if cfg.Currencies[i] != expected[i] {
			t.Errorf("Expected %v, got %v", expected, cfg.Currencies)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fxq.yaml")
	content := `
port: 9000
cache_size: 8
cache_ttl: 1500
round_precision: 2
currencies: [USD, EUR, JPY]
upstream_timeout: 2s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg := Default()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Port != 9000 || cfg.CacheSize != 8 || cfg.RoundPrecision != 2 {
		t.Errorf("File values not applied: %+v", cfg)
	}
	if cfg.CacheTTL != 1500*time.Millisecond {
		t.Errorf("Expected cache_ttl in milliseconds, got %v", cfg.CacheTTL)
	}
	if cfg.UpstreamTimeout != 2*time.Second {
		t.Errorf("Expected upstream timeout 2s, got %v", cfg.UpstreamTimeout)
	}
	if cfg.ExchangeRateAPIURL != DefaultExchangeRateURL {
		t.Error("Fields absent from the file must keep their defaults")
	}
}

func TestBindFlagsOverride(t *testing.T) {
	cfg := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)

	if err := fs.Parse([]string{"--cache-size=5", "--cache-ttl=0s", "--currencies=USD,ILS"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.CacheSize != 5 || cfg.CacheTTL != 0 {
		t.Errorf("Flag overrides not applied: %+v", cfg)
	}
	if len(cfg.Currencies) != 2 || cfg.Currencies[1] != "ILS" {
		t.Errorf("Unexpected currencies %v", cfg.Currencies)
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" a, ,b,c ,")
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("Unexpected split %v", got)
	}
}

func TestApplyFlagsOverridesLoadedValues(t *testing.T) {
	scratch := Default()
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	scratch.BindFlags(fs)
	if err := fs.Parse([]string{"--port=9999", "--currencies=USD,JPY"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	cfg := Default()
	if err := cfg.ApplyEnv(envFrom(map[string]string{"PORT": "8080", "CACHE_SIZE": "7"})); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if err := cfg.ApplyFlags(fs); err != nil {
		t.Fatalf("ApplyFlags failed: %v", err)
	}

	if cfg.Port != 9999 {
		t.Errorf("Expected flag to win over environment, got port %d", cfg.Port)
	}
	if cfg.CacheSize != 7 {
		t.Errorf("Expected unset flags to keep environment values, got %d", cfg.CacheSize)
	}
	if len(cfg.Currencies) != 2 || cfg.Currencies[1] != "JPY" {
		t.Errorf("Unexpected currencies %v", cfg.Currencies)
	}
}

func TestCacheTTLBounds(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"0", false},
		{"9223372036854", false},
		{"9223372036855", true},
		{"9223372036854775807", true},
		{"-1", true},
	}

	for _, test := range tests {
		cfg := Default()
		err := cfg.ApplyEnv(envFrom(map[string]string{"CACHE_TTL": test.value}))
		if (err != nil) != test.wantErr {
			t.Errorf("CACHE_TTL=%s: error = %v, wantErr %v", test.value, err, test.wantErr)
			continue
		}
		if err != nil {
			var qe *errors.QuoteError
			if !stderrors.As(err, &qe) || qe.Code != errors.InvalidConfiguration {
				t.Errorf("CACHE_TTL=%s: expected InvalidConfiguration, got %v", test.value, err)
			}
			continue
		}
		if cfg.CacheTTL < 0 {
			t.Errorf("CACHE_TTL=%s: got negative TTL %v", test.value, cfg.CacheTTL)
		}
	}

	path := filepath.Join(t.TempDir(), "fxq.yaml")
	if err := os.WriteFile(path, []byte("cache_ttl: 9223372036854775807\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if err := Default().LoadFile(path); err == nil {
		t.Error("Expected an out of range cache_ttl in the file to be rejected")
	}
}

func TestApplyEnvEmptyHistoryDisablesJournal(t *testing.T) {
	cfg := Default()
	if cfg.HistoryPath == "" {
		t.Fatal("Expected a default history path")
	}
	if err := cfg.ApplyEnv(envFrom(map[string]string{"FXQ_HISTORY_DB": ""})); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if cfg.HistoryPath != "" {
		t.Errorf("Expected empty FXQ_HISTORY_DB to disable history, got %q", cfg.HistoryPath)
	}

	cfg = Default()
	if err := cfg.ApplyEnv(envFrom(map[string]string{"LOG_LEVEL": ""})); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected empty LOG_LEVEL to keep the default, got %q", cfg.LogLevel)
	}
}
