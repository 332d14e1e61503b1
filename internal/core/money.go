// Package core holds the domain model shared by the client, the cache layer,
// and the display surfaces.
//
// This file contains money handling: amounts live as integer cents everywhere
// and only the display layer converts to and from dollar strings.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Money is an amount in integer cents (minor currency units).
type Money int64

// String renders the amount as an en-US dollar string, e.g. "$25.99".
func (m Money) String() string {
	neg := m < 0
	if neg {
		m = -m
	}
	s := fmt.Sprintf("$%d.%02d", int64(m)/100, int64(m)%100)
	if neg {
		return "-" + s
	}
	return s
}

// FormatCents renders cents as a dollar string for display.
func FormatCents(cents int64) string {
	return Money(cents).String()
}

// ParseDollarsToCents converts a dollar string to cents with half-up rounding
// on the third decimal place. A leading "$" and thousands commas are accepted
// and stripped. The result is non-negative; signed and malformed inputs are
// rejected. Zero parses fine here — whether zero is an acceptable amount is a
// form-validation rule, not a parsing one.
//
// Examples:
//
//	ParseDollarsToCents("25.99")   -> 2599, nil
//	ParseDollarsToCents("$1,234")  -> 123400, nil
//	ParseDollarsToCents("0.005")   -> 1, nil (rounds up)
//	ParseDollarsToCents("$0.00")   -> 0, nil
func ParseDollarsToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	// Thousands separators carry no information
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		// Only positive values allowed; direction comes from the category type
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	// a bare "." has no digits at all
	if intPart == "" && fracPart == "" {
		return 0, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	for _, r := range fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	// First two fractional digits, then half-up rounding on the third
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
	return iv*100 + fracCents, nil
}

// Dollars returns the dollar value as a float64 for display purposes only.
// Use cents for calculations to avoid floating-point precision issues.
func (m Money) Dollars() float64 {
	return float64(m) / 100.0
}
