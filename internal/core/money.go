// Package core provides the expense domain types and parsing utilities.
//
// This file contains functions for parsing monetary amounts from strings and
// converting between cents and unit representations.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseAmount converts a human-written amount to cents with half-up rounding
// on the third decimal place. It tolerates leading/trailing currency symbols
// and codes ("$50", "50 EUR", "€12,30"), thousands separators ("1,234.56",
// "1.234,56", "1 234.56"), and both dot and comma decimal separators.
// The result must be positive; anything without an interpretable positive
// quantity returns ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")     -> 1234
//	ParseAmount("$1,234.5")  -> 123450
//	ParseAmount("€1.234,56") -> 123456
//	ParseAmount("12.346")    -> 1235 (rounds up)
func ParseAmount(s string) (Money, error) {
	s = stripNonNumeric(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "-") {
		// Only positive values allowed.
		return Money{}, ErrInvalidAmount
	}
	s = strings.TrimPrefix(s, "+")

	intPart, fracPart, err := splitDecimal(s)
	if err != nil {
		return Money{}, err
	}

	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	// Prevent overflow when multiplying by 100.
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return Money{}, ErrInvalidAmount
	}

	// Take the first two fractional digits; half-up rounding on the third.
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}

	cents := iv*100 + fracCents
	if cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents}, nil
}

// stripNonNumeric removes currency symbols, letters, and whitespace, keeping
// digits, separators, and a leading sign.
func stripNonNumeric(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' || r == ',':
			b.WriteRune(r)
		case (r == '-' || r == '+') && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// splitDecimal resolves separator ambiguity and returns the integer and
// fractional digit strings. A trailing group of exactly three digits after
// the last separator is a thousands group only when an earlier separator of
// the other kind exists or the same separator repeats; otherwise the last
// separator is the decimal mark.
func splitDecimal(s string) (string, string, error) {
	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')

	decimalAt := -1
	switch {
	case lastDot == -1 && lastComma == -1:
		// Integer amount.
	case lastDot != -1 && lastComma != -1:
		// Both present: the later one is the decimal mark.
		if lastDot > lastComma {
			decimalAt = lastDot
		} else {
			decimalAt = lastComma
		}
	case lastDot != -1:
		decimalAt = lastDot
		if strings.Count(s, ".") > 1 {
			// "1.234.567" - all thousands groups.
			decimalAt = -1
		}
	default:
		decimalAt = lastComma
		if strings.Count(s, ",") > 1 {
			// "1,234,567" - all thousands groups.
			decimalAt = -1
		} else if len(s)-lastComma-1 == 3 && lastComma > 0 {
			// "1,234" - a single comma before exactly three digits reads
			// as a thousands separator, not a decimal mark.
			decimalAt = -1
		}
	}

	var intPart, fracPart string
	if decimalAt == -1 {
		intPart = s
	} else {
		intPart = s[:decimalAt]
		fracPart = s[decimalAt+1:]
	}

	// Drop remaining group separators from the integer part.
	intPart = strings.Map(func(r rune) rune {
		if r == '.' || r == ',' {
			return -1
		}
		return r
	}, intPart)

	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return "", "", ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return "", "", ErrInvalidAmount
		}
	}
	if intPart == "0" && fracPart == "" {
		return "", "", ErrInvalidAmount
	}
	return intPart, fracPart, nil
}

// Units returns the amount in major units as a float64 for display purposes.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount with two decimal places, e.g. "12.34".
func (m Money) String() string {
	sign := ""
	c := m.Cents
	if c < 0 {
		sign = "-"
		c = -c
	}
	return sign + strconv.FormatInt(c/100, 10) + "." + pad2(c%100)
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
