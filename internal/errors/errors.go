package errors

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// ErrorCode identifies a class of quote failure. The string value is what
// clients see in the "errorCode" field of an error response.
type ErrorCode string

const (
	InvalidBaseCurrencyCode   ErrorCode = "InvalidBaseCurrencyCode"
	InvalidTargetCurrencyCode ErrorCode = "InvalidTargetCurrencyCode"
	InvalidCurrencyCodePair   ErrorCode = "InvalidCurrencyCodePair"
	InvalidAmount             ErrorCode = "InvalidAmount"
	InvalidUrl                ErrorCode = "InvalidUrl"
	RequestFailed             ErrorCode = "RequestFailed"
	ServiceError              ErrorCode = "ServiceError"
	UnknownError              ErrorCode = "UnknownError"
	InvalidConfiguration      ErrorCode = "InvalidConfiguration"
)

// DefaultMessage is used when neither the error nor its code carries a message
const DefaultMessage = "Unknown error"

// QuoteError represents a structured error with context and retry information
type QuoteError struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Underlying error
	Retryable  bool
	RetryAfter time.Duration
	Context    map[string]string
}

// Error implements the error interface
func (e *QuoteError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, e.Context[k]))
		}
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(parts, ", "))
	}
	if e.Underlying != nil {
		return msg + ": " + e.Underlying.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *QuoteError) Unwrap() error {
	return e.Underlying
}

// IsRetryable returns whether this error can be retried
func (e *QuoteError) IsRetryable() bool {
	return e.Retryable
}

// GetRetryAfter returns the duration to wait before retrying
func (e *QuoteError) GetRetryAfter() time.Duration {
	if e.RetryAfter > 0 {
		return e.RetryAfter
	}
	switch e.Code {
	case RequestFailed:
		return 500 * time.Millisecond
	case ServiceError:
		return 1 * time.Second
	default:
		return 0
	}
}

// HTTPStatus returns the status code a handler should answer with
func (e *QuoteError) HTTPStatus() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Code {
	case InvalidBaseCurrencyCode, InvalidTargetCurrencyCode, InvalidCurrencyCodePair, InvalidAmount:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError builds a client-facing validation error for a quote request.
// supported is the list of currencies the service accepts; it is only used
// to build the message of currency code errors.
func NewValidationError(code ErrorCode, supported []string) *QuoteError {
	return &QuoteError{
		Code:       code,
		Message:    MessageFor(code, supported),
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// WrapRequestError wraps a transport level failure talking to the rate provider
func WrapRequestError(err error, base, target string) *QuoteError {
	if err == nil {
		return nil
	}
	return &QuoteError{
		Code:       RequestFailed,
		Message:    "Rate provider request failed",
		Underlying: err,
		Retryable:  true,
		Context:    map[string]string{"base": base, "target": target},
	}
}

// WrapServiceError wraps a failure reported by the rate provider itself.
// Only 5xx and 429 responses are retried.
func WrapServiceError(err error, status int, base, target string) *QuoteError {
	if err == nil {
		return nil
	}
	ctx := map[string]string{"base": base, "target": target}
	if status != 0 {
		ctx["status"] = fmt.Sprintf("%d", status)
	}
	return &QuoteError{
		Code:       ServiceError,
		Message:    "Rate provider returned an error",
		Underlying: err,
		Retryable:  status >= 500 || status == http.StatusTooManyRequests,
		Context:    ctx,
	}
}

// WrapConfigError wraps configuration loading and validation errors
func WrapConfigError(err error, field string) *QuoteError {
	if err == nil {
		return nil
	}
	return &QuoteError{
		Code:       InvalidConfiguration,
		Message:    fmt.Sprintf("Invalid configuration value for %s", field),
		Underlying: err,
		Context:    map[string]string{"field": field},
	}
}

// MessageFor returns the client facing message for code
func MessageFor(code ErrorCode, supported []string) string {
	list := strings.Join(supported, ", ")
	switch code {
	case InvalidBaseCurrencyCode:
		return fmt.Sprintf("Invalid base currency code. Supported currencies: %s", list)
	case InvalidTargetCurrencyCode:
		return fmt.Sprintf("Invalid target currency code. Supported currencies: %s", list)
	case InvalidCurrencyCodePair:
		return "Invalid base and target currency pair"
	case InvalidAmount:
		return "Invalid amount"
	default:
		return DefaultMessage
	}
}

// UserFriendlyMessage returns the message safe to relay to API clients.
// Upstream details are never included.
func (e *QuoteError) UserFriendlyMessage() string {
	switch e.Code {
	case InvalidBaseCurrencyCode, InvalidTargetCurrencyCode, InvalidCurrencyCodePair, InvalidAmount:
		if e.Message != "" {
			return e.Message
		}
		return MessageFor(e.Code, nil)
	default:
		return DefaultMessage
	}
}
