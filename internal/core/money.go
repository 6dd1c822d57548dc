// Package core provides money parsing and formatting utilities.
//
// Amounts are kept as decimal.Decimal end to end; float64 never appears
// outside the JSON boundary.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CoerceAmount converts raw form input into an amount the way a numeric
// input field does while the user types.
//
// The longest leading prefix of the form
// [+-]?(digits[.[digits]]|.digits)([eE][+-]?digits)? is parsed; anything
// after it is discarded. When no prefix exists, or the parsed value is zero,
// the field collapses to empty and ok is false. Exponents outside the
// float64 range (beyond 308) also collapse to empty.
//
// Examples:
//
//	CoerceAmount("12.5")    -> 12.5, true
//	CoerceAmount("12.5abc") -> 12.5, true
//	CoerceAmount("1e3")     -> 1000, true
//	CoerceAmount(" 7,20")   -> 7, true
//	CoerceAmount("abc")     -> 0, false
//	CoerceAmount("0.00")    -> 0, false
func CoerceAmount(s string) (decimal.Decimal, bool) {
	prefix := numericPrefix(strings.TrimSpace(s))
	if prefix == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(prefix)
	if err != nil || d.IsZero() {
		return decimal.Zero, false
	}
	return d, true
}

// numericPrefix returns the longest valid decimal prefix of s, or "".
func numericPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	intStart := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	intDigits := i - intStart
	end := i
	// mantissaEnd is where an exponent may start; "12.e3" is 12e3
	mantissaEnd := i
	if i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		if j-(i+1) > 0 {
			end, mantissaEnd = j, j
		} else if intDigits > 0 {
			// "12." parses as 12
			end, mantissaEnd = i, j
		}
	}
	if intDigits == 0 && end <= intStart {
		return ""
	}
	out := s[:end]
	exp, ok := exponent(s[mantissaEnd:])
	if ok {
		if expTooLarge(exp) {
			return ""
		}
		out += exp
	}
	if strings.HasPrefix(out, "+") {
		out = out[1:]
	}
	if strings.HasPrefix(out, ".") {
		out = "0" + out
	} else if strings.HasPrefix(out, "-.") {
		out = "-0" + out[1:]
	}
	return out
}

// exponent returns the leading [eE][+-]?digits of s.
func exponent(s string) (string, bool) {
	if len(s) < 2 || (s[0] != 'e' && s[0] != 'E') {
		return "", false
	}
	i := 1
	if s[i] == '+' || s[i] == '-' {
		i++
	}
	start := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i == start {
		return "", false
	}
	return "e" + s[1:i], true
}

// expTooLarge reports whether an exponent like "e-400" exceeds the float64 range.
func expTooLarge(exp string) bool {
	digits := strings.TrimLeft(strings.TrimLeft(exp[1:], "+-"), "0")
	if len(digits) > 3 {
		return true
	}
	n := 0
	for _, c := range digits {
		n = n*10 + int(c-'0')
	}
	return n > 308
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// FormatCurrency renders an amount as US dollars with thousands separators,
// e.g. "$1,234.50" and "-$3.00".
func FormatCurrency(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// Percent returns part/total as a whole percentage rounded half up.
// A zero total yields 0.
func Percent(part, total decimal.Decimal) int {
	if !total.IsPositive() || !part.IsPositive() {
		return 0
	}
	return int(part.Mul(hundred).Div(total).Round(0).IntPart())
}
