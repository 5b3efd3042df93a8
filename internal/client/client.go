// Package client talks to a running fxq server.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fxq/internal/errors"
	"fxq/internal/server"
)

// DefaultTimeout bounds a single request to the server
const DefaultTimeout = 5 * time.Second

// Client calls the fxq HTTP API
type Client struct {
	baseURL string
	http    *http.Client
}

// QuoteResult is a quote plus the cache headers that came with it
type QuoteResult struct {
	server.QuoteBody
	CacheHit  bool
	MaxAge    time.Duration
	RequestID string
}

// New creates a client for the server at baseURL
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// do sends a request and decodes a JSON body into out when the status is
// expected. Error bodies are turned into a *errors.QuoteError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, expect int, out any) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach fxq server at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != expect {
		return resp, decodeError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var eb server.ErrorBody
	if err := json.Unmarshal(body, &eb); err != nil || eb.Error.ErrorCode == "" {
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return &errors.QuoteError{
		Code:       eb.Error.ErrorCode,
		Message:    eb.Error.Message,
		StatusCode: resp.StatusCode,
	}
}

// Quote requests a quote for amount of base in target
func (c *Client) Quote(ctx context.Context, base, target string, amount int64) (*QuoteResult, error) {
	q := url.Values{}
	q.Set("base_currency", base)
	q.Set("quote_currency", target)
	q.Set("base_amount", strconv.FormatInt(amount, 10))

	var res QuoteResult
	resp, err := c.do(ctx, http.MethodGet, "/quote", q, http.StatusOK, &res.QuoteBody)
	if err != nil {
		return nil, err
	}
	res.CacheHit = resp.Header.Get(server.HeaderCache) == "HIT"
	res.MaxAge = parseMaxAge(resp.Header.Get("Cache-Control"))
	res.RequestID = resp.Header.Get(server.HeaderRequestID)
	return &res, nil
}

// CacheStats returns the server's cache statistics
func (c *Client) CacheStats(ctx context.Context) (*server.StatsBody, error) {
	var stats server.StatsBody
	if _, err := c.do(ctx, http.MethodGet, "/cache", nil, http.StatusOK, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// CacheEntries returns the resident cache entries, most recently used first
func (c *Client) CacheEntries(ctx context.Context) ([]server.EntryBody, error) {
	var entries []server.EntryBody
	if _, err := c.do(ctx, http.MethodGet, "/cache/entries", nil, http.StatusOK, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// FlushCache empties the server's cache
func (c *Client) FlushCache(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/cache", nil, http.StatusNoContent, nil)
	return err
}

// Health checks that the server is up
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil, http.StatusOK, nil)
	return err
}

// parseMaxAge reads max-age from a Cache-Control header
func parseMaxAge(v string) time.Duration {
	for _, part := range strings.Split(v, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		secs, err := strconv.Atoi(value)
		if err != nil || secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	return 0
}
