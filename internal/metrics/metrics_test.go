package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCacheLookups(t *testing.T) {
	m := New()
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)

	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues(ResultHit)); got != 1 {
		t.Errorf("Expected 1 hit, got %v", got)
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues(ResultMiss)); got != 2 {
		t.Errorf("Expected 2 misses, got %v", got)
	}
}

func TestFlushResetsEntries(t *testing.T) {
	m := New()
	m.UpdateCacheEntries(5)
	m.RecordFlush()

	if got := testutil.ToFloat64(m.CacheEntries); got != 0 {
		t.Errorf("Expected 0 entries after flush, got %v", got)
	}
	if got := testutil.ToFloat64(m.CacheFlushes); got != 1 {
		t.Errorf("Expected 1 flush, got %v", got)
	}
}

func TestUpstreamAndQuotes(t *testing.T) {
	m := New()
	m.RecordUpstream(true, 20*time.Millisecond)
	m.RecordUpstream(false, time.Second)
	m.RecordQuote("")
	m.RecordQuote("ServiceError")

	if got := testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("error")); got != 1 {
		t.Errorf("Expected 1 upstream error, got %v", got)
	}
	if got := testutil.CollectAndCount(m.QuotesTotal); got != 2 {
		t.Errorf("Expected 2 quote series, got %d", got)
	}
	if got := testutil.ToFloat64(m.QuotesTotal.WithLabelValues(CodeOK)); got != 1 {
		t.Errorf("Expected success counted under %q, got %v", CodeOK, got)
	}
}

func TestIndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.RecordFlush()
	if got := testutil.ToFloat64(b.CacheFlushes); got != 0 {
		t.Errorf("Expected instances not to share state, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordHTTPRequest("/quote", 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `fxq_http_requests_total{route="/quote",status="200"} 1`) {
		t.Errorf("Expected request counter in exposition, got:\n%s", body)
	}
}
