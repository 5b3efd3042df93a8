// Package server exposes the quote service over HTTP.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"fxq/internal/cache"
	"fxq/internal/errors"
	"fxq/internal/exchangerate"
	"fxq/internal/logger"
	"fxq/internal/metrics"
	"fxq/internal/quote"
	"fxq/internal/validation"
)

// Header names
const (
	HeaderCache     = "X-Cache"
	HeaderRequestID = "X-Request-ID"
)

// shutdownTimeout bounds graceful shutdown in Run
const shutdownTimeout = 10 * time.Second

// QuoteService is what the handlers need from the quote layer
type QuoteService interface {
	Validate(base, target, amount string) (*validation.QuoteParams, *errors.QuoteError)
	Quote(ctx context.Context, p validation.QuoteParams) (*quote.Result, error)
	Flush()
	Stats() cache.Stats
	Entries() []cache.EntryInfo
}

// ErrorBody is the error payload of every failed request
type ErrorBody struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail carries the error code and a client safe message
type ErrorDetail struct {
	ErrorCode errors.ErrorCode `json:"errorCode"`
	Message   string           `json:"message"`
}

// QuoteBody is the payload of a successful quote
type QuoteBody struct {
	ExchangeRate float64 `json:"exchange_rate"`
	QuoteAmount  int64   `json:"quote_amount"`
}

// StatsBody is the payload of GET /cache
type StatsBody struct {
	Capacity  int    `json:"capacity"`
	Entries   int    `json:"entries"`
	TTLMillis int64  `json:"ttl_ms"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Expired   uint64 `json:"expired"`
	Evictions uint64 `json:"evictions"`
}

// EntryBody describes one cached rate in GET /cache/entries, most recently
// used first
type EntryBody struct {
	Key          string    `json:"key"`
	ExchangeRate float64   `json:"exchange_rate"`
	Timestamp    time.Time `json:"timestamp"`
	AgeMillis    int64     `json:"age_ms"`
	Expired      bool      `json:"expired"`
}

// Server is the HTTP front of the quote service
type Server struct {
	svc     QuoteService
	metrics *metrics.Metrics
	http    *http.Server
}

// New creates a server listening on addr. m may be nil.
func New(addr string, svc QuoteService, m *metrics.Metrics) *Server {
	s := &Server{svc: svc, metrics: m}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /quote", s.handleQuote)
	mux.HandleFunc("GET /cache", s.handleCacheStats)
	mux.HandleFunc("GET /cache/entries", s.handleCacheEntries)
	mux.HandleFunc("DELETE /cache", s.handleCacheFlush)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return requestID(securityHeaders(s.accessLog(mux)))
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	logger.Infof("Listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Infof("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, verr := s.svc.Validate(q.Get("base_currency"), q.Get("quote_currency"), q.Get("base_amount"))
	if verr != nil {
		if s.metrics != nil {
			s.metrics.RecordQuote(string(verr.Code))
		}
		writeError(w, verr)
		return
	}

	res, err := s.svc.Quote(r.Context(), *p)
	if err != nil {
		writeError(w, err)
		return
	}

	if res.CacheHit {
		w.Header().Set(HeaderCache, "HIT")
	} else {
		w.Header().Set(HeaderCache, "MISS")
	}
	if maxAge := int64(res.MaxAge / time.Second); maxAge > 0 {
		w.Header().Set("Cache-Control", "max-age="+strconv.FormatInt(maxAge, 10))
	}

	writeJSON(w, http.StatusOK, QuoteBody{ExchangeRate: res.ExchangeRate, QuoteAmount: res.QuoteAmount})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Stats()
	writeJSON(w, http.StatusOK, StatsBody{
		Capacity:  st.Capacity,
		Entries:   st.Entries,
		TTLMillis: st.TTL.Milliseconds(),
		Hits:      st.Hits,
		Misses:    st.Misses,
		Expired:   st.Expired,
		Evictions: st.Evictions,
	})
}

func (s *Server) handleCacheEntries(w http.ResponseWriter, r *http.Request) {
	entries := s.svc.Entries()
	out := make([]EntryBody, 0, len(entries))
	for _, e := range entries {
		body := EntryBody{
			Key:       e.Key,
			Timestamp: e.Timestamp,
			AgeMillis: e.Age.Milliseconds(),
			Expired:   e.Expired,
		}
		if rate, ok := e.Value.(*exchangerate.Rate); ok {
			body.ExchangeRate = rate.ConversionRate
		}
		out = append(out, body)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCacheFlush(w http.ResponseWriter, r *http.Request) {
	s.svc.Flush()
	w.WriteHeader(http.StatusNoContent)
}

// writeError answers with the error body. Anything that is not a
// QuoteError is reported as UnknownError.
func writeError(w http.ResponseWriter, err error) {
	var qe *errors.QuoteError
	if !stderrors.As(err, &qe) {
		qe = &errors.QuoteError{Code: errors.UnknownError, Underlying: err}
	}
	writeJSON(w, qe.HTTPStatus(), ErrorBody{
		Success: false,
		Error: ErrorDetail{
			ErrorCode: qe.Code,
			Message:   qe.UserFriendlyMessage(),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("Failed to write response: %v", err)
	}
}
