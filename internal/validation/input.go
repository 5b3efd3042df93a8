package validation

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"fxq/internal/errors"
)

// MaxSafeInteger mirrors the largest integer a JSON number carries exactly
const MaxSafeInteger = 1<<53 - 1

// Input patterns
var (
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
	integerPattern  = regexp.MustCompile(`^-?(0|[1-9][0-9]*)$`)
)

// QuoteParams is a normalised quote request
type QuoteParams struct {
	BaseCurrency   string
	TargetCurrency string
	BaseAmount     int64
}

// NormalizeCurrency upper-cases and trims a currency code
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidCurrency reports whether code is a three letter upper case code
// present in supported. Lower case input is rejected.
func IsValidCurrency(code string, supported []string) bool {
	if !currencyPattern.MatchString(code) {
		return false
	}
	for _, s := range supported {
		if s == code {
			return true
		}
	}
	return false
}

// ParseInteger parses a base 10 integer and rejects anything that does
// not round-trip exactly: "5e5", "1.5", "123a", "+1" and "007" all fail.
func ParseInteger(input string) (int64, bool) {
	if !integerPattern.MatchString(input) {
		return 0, false
	}
	n, err := strconv.ParseInt(input, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsValidAmount reports whether amount is a positive safe integer
func IsValidAmount(amount int64) bool {
	return amount > 0 && amount <= MaxSafeInteger
}

// ParseAmount parses and validates a base amount string
func ParseAmount(input string) (int64, bool) {
	n, ok := ParseInteger(strings.TrimSpace(input))
	if !ok || !IsValidAmount(n) {
		return 0, false
	}
	return n, true
}

// IsValidURL reports whether input is an absolute http or https URL
func IsValidURL(input string) bool {
	u, err := url.Parse(input)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// IsValidRate reports whether rate is a usable conversion rate
func IsValidRate(rate float64) bool {
	return !math.IsNaN(rate) && !math.IsInf(rate, 0) && rate > 0
}

// ValidateQuoteParams normalises raw query values and validates them in
// order: base currency, target currency, pair, amount. The first failure
// wins.
func ValidateQuoteParams(base, target, amount string, supported []string) (*QuoteParams, *errors.QuoteError) {
	p := &QuoteParams{
		BaseCurrency:   NormalizeCurrency(base),
		TargetCurrency: NormalizeCurrency(target),
	}

	if !IsValidCurrency(p.BaseCurrency, supported) {
		return nil, errors.NewValidationError(errors.InvalidBaseCurrencyCode, supported)
	}
	if !IsValidCurrency(p.TargetCurrency, supported) {
		return nil, errors.NewValidationError(errors.InvalidTargetCurrencyCode, supported)
	}
	if p.BaseCurrency == p.TargetCurrency {
		return nil, errors.NewValidationError(errors.InvalidCurrencyCodePair, supported)
	}

	n, ok := ParseAmount(amount)
	if !ok {
		return nil, errors.NewValidationError(errors.InvalidAmount, supported)
	}
	p.BaseAmount = n

	return p, nil
}
