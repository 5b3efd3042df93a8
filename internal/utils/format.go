package utils

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Round rounds value to precision decimal places, half away from zero.
// Rounding works on the shortest decimal representation of value so that
// 1.2345 rounds to 1.235 rather than suffering binary error.
func Round(value float64, precision int) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) || precision < 0 {
		return value
	}

	neg := value < 0
	s := strconv.FormatFloat(math.Abs(value), 'f', -1, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	if len(frac) <= precision {
		return value
	}

	digits := []byte(intPart + frac[:precision])
	if frac[precision] >= '5' {
		digits = incrementDigits(digits)
	}
	point := len(digits) - precision
	out := string(digits[:point])
	if precision > 0 {
		out += "." + string(digits[point:])
	}

	r, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return value
	}
	if neg {
		r = -r
	}
	return r
}

// incrementDigits adds one to a decimal digit string, growing it on carry
func incrementDigits(d []byte) []byte {
	for i := len(d) - 1; i >= 0; i-- {
		if d[i] < '9' {
			d[i]++
			return d
		}
		d[i] = '0'
	}
	return append([]byte{'1'}, d...)
}

// FormatRate renders a rate without trailing zeros
func FormatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', -1, 64)
}

// FormatAmount renders an integer amount with thousands separators
func FormatAmount(n int64) string {
	return humanize.Comma(n)
}

// FormatAge describes how long ago ts was, relative to now
func FormatAge(ts, now time.Time) string {
	return humanize.RelTime(ts, now, "ago", "from now")
}

// FormatExpiry describes when an entry stored at ts expires under ttl.
// A zero ttl never expires.
func FormatExpiry(ts time.Time, ttl time.Duration, now time.Time) string {
	if ttl <= 0 {
		return "never"
	}
	exp := ts.Add(ttl)
	if exp.Before(now) {
		return "expired"
	}
	return humanize.RelTime(exp, now, "ago", "from now")
}
