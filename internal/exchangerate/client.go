package exchangerate

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fxq/internal/errors"
	"fxq/internal/logger"
	"fxq/internal/retry"
	"fxq/internal/validation"
)

// DefaultUserAgent is sent with every upstream request
const DefaultUserAgent = "fxq/1.0"

// maxErrorBody caps how much of a failed response is kept for logging
const maxErrorBody = 4 << 10

var errInvalidResponse = stderrors.New("invalid rate provider response")

// Rate is a conversion rate fetched from the provider
type Rate struct {
	Base           string    `json:"base"`
	Target         string    `json:"target"`
	ConversionRate float64   `json:"conversion_rate"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// apiResponse is the subset of the pair endpoint payload we read
type apiResponse struct {
	Result         string   `json:"result"`
	BaseCode       string   `json:"base_code"`
	TargetCode     string   `json:"target_code"`
	ConversionRate *float64 `json:"conversion_rate"`
	ErrorType      string   `json:"error-type,omitempty"`
}

// Fetcher fetches a single conversion rate
type Fetcher interface {
	FetchRate(ctx context.Context, base, target string) (*Rate, error)
}

// Options configures a Client
type Options struct {
	// URLTemplate contains {{API_KEY}}, {{FROM}} and {{TO}} placeholders
	URLTemplate string
	APIKey      string
	Timeout     time.Duration
	UserAgent   string
	Retry       *retry.Config
	// HTTPClient is used as the base client when set. Its transport is wrapped.
	HTTPClient *http.Client
}

// Client talks to the exchange rate provider
type Client struct {
	urlTemplate string
	apiKey      string
	http        *http.Client
	retry       *retry.Config
	now         func() time.Time
}

// userAgentTransport sets the User-Agent header on outgoing requests
type userAgentTransport struct {
	wrapped   http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.wrapped.RoundTrip(clone)
}

// NewClient creates a rate provider client
func NewClient(opts Options) *Client {
	base := &http.Client{}
	if opts.HTTPClient != nil {
		c := *opts.HTTPClient
		base = &c
	}
	if base.Transport == nil {
		base.Transport = http.DefaultTransport
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	base.Transport = &userAgentTransport{wrapped: base.Transport, userAgent: ua}
	if opts.Timeout > 0 {
		base.Timeout = opts.Timeout
	}

	r := opts.Retry
	if r == nil {
		r = retry.DefaultConfig()
	}

	return &Client{
		urlTemplate: opts.URLTemplate,
		apiKey:      opts.APIKey,
		http:        base,
		retry:       r,
		now:         time.Now,
	}
}

// BuildURL fills the URL template for a currency pair
func (c *Client) BuildURL(base, target string) string {
	return strings.NewReplacer(
		"{{API_KEY}}", c.apiKey,
		"{{FROM}}", base,
		"{{TO}}", target,
	).Replace(c.urlTemplate)
}

// redactedURL is BuildURL without the API key, for logs
func (c *Client) redactedURL(base, target string) string {
	if c.apiKey == "" {
		return c.BuildURL(base, target)
	}
	return strings.ReplaceAll(c.BuildURL(base, target), c.apiKey, "***")
}

// FetchRate retrieves the conversion rate from base to target, retrying
// transport failures and retryable provider errors
func (c *Client) FetchRate(ctx context.Context, base, target string) (*Rate, error) {
	url := c.BuildURL(base, target)
	if !validation.IsValidURL(url) {
		return nil, &errors.QuoteError{
			Code:    errors.InvalidUrl,
			Message: "Invalid rate provider URL",
			Context: map[string]string{"base": base, "target": target},
		}
	}
	logger.Debugf("Making service request with url %s", c.redactedURL(base, target))

	var rate *Rate
	err := retry.WithRetry(ctx, c.retry, "fetch rate "+base+"-"+target, func(ctx context.Context) error {
		var fetchErr error
		rate, fetchErr = c.fetchOnce(ctx, url, base, target)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	return rate, nil
}

func (c *Client) fetchOnce(ctx context.Context, url, base, target string) (*Rate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapRequestError(err, base, target)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Errorf("Service request failed for %s-%s: %v", base, target, err)
		return nil, errors.WrapRequestError(err, base, target)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logger.Errorf("Service request for %s-%s returned %d: %s", base, target, resp.StatusCode, body)
		qe := errors.WrapServiceError(fmt.Errorf("unexpected status code: %d", resp.StatusCode), resp.StatusCode, base, target)
		qe.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, qe
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		logger.Errorf("Failed to decode service response for %s-%s: %v", base, target, err)
		return nil, errors.WrapServiceError(err, 0, base, target)
	}

	if !payload.valid(base, target) {
		// the payload is logged but never relayed to clients
		logger.Errorf("Got invalid service response: %+v", payload)
		return nil, errors.WrapServiceError(errInvalidResponse, 0, base, target)
	}

	logger.Debugf("Got service response for %s-%s: %v", base, target, *payload.ConversionRate)
	return &Rate{
		Base:           base,
		Target:         target,
		ConversionRate: *payload.ConversionRate,
		FetchedAt:      c.now(),
	}, nil
}

func (r *apiResponse) valid(base, target string) bool {
	return r.Result == "success" &&
		r.BaseCode == base &&
		r.TargetCode == target &&
		r.ConversionRate != nil &&
		validation.IsValidRate(*r.ConversionRate)
}

// parseRetryAfter reads a Retry-After header given in seconds
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
