// Package quote computes currency quotes on top of the rate cache.
//
// A quote looks up the BASE-TARGET pair in the cache. On a miss (absent or
// expired) the rate is fetched from the provider without holding the cache
// lock and stored back, so concurrent requests for other pairs are never
// blocked behind a slow upstream call. Concurrent misses for the same pair
// share one fetch.
package quote

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/singleflight"

	"fxq/internal/cache"
	"fxq/internal/errors"
	"fxq/internal/exchangerate"
	"fxq/internal/history"
	"fxq/internal/logger"
	"fxq/internal/metrics"
	"fxq/internal/utils"
	"fxq/internal/validation"
)

// DefaultFetchTimeout bounds a shared upstream fetch when Options.FetchTimeout is zero
const DefaultFetchTimeout = 30 * time.Second

// Recorder persists fetched rates
type Recorder interface {
	Record(ctx context.Context, r history.Record) error
}

// Options configures a Service
type Options struct {
	Cache      cache.Service
	Fetcher    exchangerate.Fetcher
	Recorder   Recorder         // optional
	Metrics    *metrics.Metrics // optional
	Precision  int
	TTL        time.Duration
	Currencies []string
	// FetchTimeout bounds a shared upstream fetch, retries included. It
	// outlives the callers waiting on it.
	FetchTimeout time.Duration
	Now          func() time.Time
}

// Result is a computed quote
type Result struct {
	BaseCurrency   string  `json:"-"`
	TargetCurrency string  `json:"-"`
	BaseAmount     int64   `json:"-"`
	ExchangeRate   float64 `json:"exchange_rate"`
	QuoteAmount    int64   `json:"quote_amount"`
	CacheHit       bool    `json:"-"`
	// MaxAge is how long the rate stays fresh in the cache. Zero when the
	// rate is already at its expiry or expiration is disabled.
	MaxAge time.Duration `json:"-"`
}

// Service answers quote requests
type Service struct {
	cache      cache.Service
	fetcher    exchangerate.Fetcher
	recorder   Recorder
	metrics    *metrics.Metrics
	precision  int
	ttl        time.Duration
	currencies   []string
	fetchTimeout time.Duration
	now          func() time.Time
	group        singleflight.Group
}

// New creates a quote service
func New(opts Options) (*Service, error) {
	if opts.Cache == nil {
		return nil, fmt.Errorf("quote: cache is required")
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("quote: rate fetcher is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	fetchTimeout := opts.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	return &Service{
		cache:      opts.Cache,
		fetcher:    opts.Fetcher,
		recorder:   opts.Recorder,
		metrics:    opts.Metrics,
		precision:  opts.Precision,
		ttl:        opts.TTL,
		currencies:   append([]string(nil), opts.Currencies...),
		fetchTimeout: fetchTimeout,
		now:          now,
	}, nil
}

// Key returns the cache key of a currency pair
func Key(base, target string) string {
	return base + "-" + target
}

// Currencies returns the supported currency codes
func (s *Service) Currencies() []string {
	return s.currencies
}

// Validate parses raw request values against the supported currencies
func (s *Service) Validate(base, target, amount string) (*validation.QuoteParams, *errors.QuoteError) {
	return validation.ValidateQuoteParams(base, target, amount, s.currencies)
}

// Quote computes the quote for validated params
func (s *Service) Quote(ctx context.Context, p validation.QuoteParams) (*Result, error) {
	res, err := s.quote(ctx, p)
	if s.metrics != nil {
		code := metrics.CodeOK
		if err != nil {
			code = string(errors.UnknownError)
			var qe *errors.QuoteError
			if stderrors.As(err, &qe) {
				code = string(qe.Code)
			}
		}
		s.metrics.RecordQuote(code)
	}
	return res, err
}

func (s *Service) quote(ctx context.Context, p validation.QuoteParams) (*Result, error) {
	key := Key(p.BaseCurrency, p.TargetCurrency)

	var rate *exchangerate.Rate
	var maxAge time.Duration
	hit := false

	if entry, ok := s.cache.Get(key); ok {
		if r, ok := entry.Value.(*exchangerate.Rate); ok {
			logger.Debugf("Key %s was found in cache", key)
			rate, hit = r, true
			if s.ttl > 0 {
				maxAge = s.ttl - s.now().Sub(entry.Timestamp)
			}
		} else {
			logger.Warnf("Unexpected cached value type %T for key %s", entry.Value, key)
		}
	}
	if s.metrics != nil {
		s.metrics.RecordCacheLookup(hit)
	}

	if !hit {
		logger.Debugf("Key %s was NOT found in cache. Making request to service...", key)
		r, err := s.fetch(ctx, key, p.BaseCurrency, p.TargetCurrency)
		if err != nil {
			logger.Errorf("Failed to fetch conversion rate for %s: %v", key, err)
			return nil, err
		}
		rate = r
		maxAge = s.ttl
	}

	if maxAge < 0 {
		maxAge = 0
	}

	amount := utils.Round(float64(p.BaseAmount)*rate.ConversionRate, 0)
	if math.IsNaN(amount) || amount > validation.MaxSafeInteger {
		logger.Warnf("Quote amount for %d %s overflows at rate %v", p.BaseAmount, key, rate.ConversionRate)
		return nil, errors.NewValidationError(errors.InvalidAmount, s.currencies)
	}

	return &Result{
		BaseCurrency:   p.BaseCurrency,
		TargetCurrency: p.TargetCurrency,
		BaseAmount:     p.BaseAmount,
		ExchangeRate:   utils.Round(rate.ConversionRate, s.precision),
		QuoteAmount:    int64(amount),
		CacheHit:       hit,
		MaxAge:         maxAge,
	}, nil
}

// fetch loads the rate from the provider and stores it. Callers missing on
// the same key wait for a single shared fetch, which is not cancelled when
// one of them gives up but is bounded by fetchTimeout.
func (s *Service) fetch(ctx context.Context, key, base, target string) (*exchangerate.Rate, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()

		start := s.now()
		r, err := s.fetcher.FetchRate(shared, base, target)
		latency := s.now().Sub(start)
		if s.metrics != nil {
			s.metrics.RecordUpstream(err == nil, latency)
		}
		if err != nil {
			return nil, err
		}

		s.cache.Put(key, r)
		if s.metrics != nil {
			s.metrics.UpdateCacheEntries(s.cache.Len())
		}

		if s.recorder != nil {
			rec := history.Record{Base: base, Target: target, Rate: r.ConversionRate, FetchedAt: r.FetchedAt, Latency: latency}
			if err := s.recorder.Record(shared, rec); err != nil {
				logger.Warnf("Failed to record rate history for %s: %v", key, err)
			}
		}
		return r, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*exchangerate.Rate), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Flush empties the rate cache
func (s *Service) Flush() {
	s.cache.Flush()
	if s.metrics != nil {
		s.metrics.RecordFlush()
	}
	logger.Infof("Rate cache flushed")
}

// Stats returns the rate cache statistics
func (s *Service) Stats() cache.Stats {
	return s.cache.Stats()
}

// Entries returns the resident cache entries, most recently used first
func (s *Service) Entries() []cache.EntryInfo {
	return s.cache.Entries()
}
