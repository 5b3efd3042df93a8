package client

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"fxq/internal/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", time.Second)
}

func TestQuote(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/quote" || q.Get("base_currency") != "EUR" || q.Get("quote_currency") != "USD" || q.Get("base_amount") != "100" {
			t.Errorf("Unexpected request %s", r.URL)
		}
		w.Header().Set("X-Cache", "HIT")
		w.Header().Set("Cache-Control", "max-age=7")
		w.Header().Set("X-Request-ID", "req-1")
		w.Write([]byte(`{"exchange_rate":1.235,"quote_amount":123}`))
	})

	res, err := c.Quote(context.Background(), "EUR", "USD", 100)
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if res.ExchangeRate != 1.235 || res.QuoteAmount != 123 {
		t.Errorf("Unexpected quote %+v", res)
	}
	if !res.CacheHit || res.MaxAge != 7*time.Second || res.RequestID != "req-1" {
		t.Errorf("Unexpected headers in result %+v", res)
	}
}

func TestQuoteErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"success":false,"error":{"errorCode":"InvalidAmount","message":"Invalid amount"}}`))
	})

	_, err := c.Quote(context.Background(), "EUR", "USD", 0)
	var qe *errors.QuoteError
	if !stderrors.As(err, &qe) {
		t.Fatalf("Expected QuoteError, got %v", err)
	}
	if qe.Code != errors.InvalidAmount || qe.HTTPStatus() != http.StatusUnprocessableEntity || qe.Message != "Invalid amount" {
		t.Errorf("Unexpected error %+v", qe)
	}
}

func TestUnexpectedErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	})

	err := c.Health(context.Background())
	if err == nil {
		t.Fatal("Expected an error")
	}
	var qe *errors.QuoteError
	if stderrors.As(err, &qe) {
		t.Errorf("Plain text bodies must not decode into a QuoteError: %v", err)
	}
}

func TestCacheCalls(t *testing.T) {
	var flushed atomic.Bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/cache":
			w.Write([]byte(`{"capacity":2,"entries":1,"ttl_ms":10000,"hits":3,"misses":1}`))
		case r.Method == http.MethodGet && r.URL.Path == "/cache/entries":
			w.Write([]byte(`[{"key":"EUR-USD","exchange_rate":1.1,"age_ms":1500,"expired":false}]`))
		case r.Method == http.MethodDelete && r.URL.Path == "/cache":
			flushed.Store(true)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	stats, err := c.CacheStats(ctx)
	if err != nil {
		t.Fatalf("CacheStats failed: %v", err)
	}
	if stats.Capacity != 2 || stats.Hits != 3 || stats.TTLMillis != 10000 {
		t.Errorf("Unexpected stats %+v", stats)
	}

	entries, err := c.CacheEntries(ctx)
	if err != nil {
		t.Fatalf("CacheEntries failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Key != "EUR-USD" || entries[0].AgeMillis != 1500 {
		t.Errorf("Unexpected entries %+v", entries)
	}

	if err := c.FlushCache(ctx); err != nil {
		t.Fatalf("FlushCache failed: %v", err)
	}
	if !flushed.Load() {
		t.Error("Expected DELETE /cache to be called")
	}
}

func TestParseMaxAge(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
	}{
		{"", 0},
		{"max-age=10", 10 * time.Second},
		{"public, max-age=3", 3 * time.Second},
		{"max-age=abc", 0},
		{"no-store", 0},
	}
	for _, test := range tests {
		if got := parseMaxAge(test.input); got != test.expected {
			t.Errorf("parseMaxAge(%q) = %s, expected %s", test.input, got, test.expected)
		}
	}
}
