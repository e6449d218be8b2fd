// Package core provides money parsing and handling utilities.
//
// This file contains the fixed-point Money type. Amounts are held as integer
// cents so that sums are exact; shopspring/decimal is used at the edges to
// parse, round and format.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a fixed-point currency amount with two fractional digits.
type Money struct {
	Cents int64
}

// MaxAmount is the largest single amount, 9999999999.99, the range of the
// NUMERIC(12,2) column. It also keeps per-project sums far from overflow.
var MaxAmount = Money{Cents: 999_999_999_999}

var maxCents = decimal.NewFromInt(math.MaxInt64)

// ParseAmount converts a decimal string into a positive Money value.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// rounds half-up to two fractional digits. Zero, negative, malformed and
// values above MaxAmount fail with an InvalidInput error on the "amount"
// field.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,34")  -> 12.34
//	ParseAmount("12.345") -> 12.35
//	ParseAmount("0.004")  -> error (rounds to zero)
func ParseAmount(s string) (Money, error) {
	m, err := ParseDecimal(s)
	if err != nil {
		return Money{}, err
	}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// ParseDecimal is ParseAmount without the positivity check.
func ParseDecimal(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, InvalidInput("amount", "is required")
	}
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, InvalidInput("amount", "is not a valid decimal number")
	}
	return MoneyFromDecimal(d)
}

// MoneyFromDecimal rounds d half-up to cents.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Round(2).Shift(2)
	if cents.Abs().GreaterThan(maxCents) {
		return Money{}, InvalidInput("amount", "is out of range")
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Cents builds Money from an integer number of cents.
func Cents(c int64) Money {
	return Money{Cents: c}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return InvalidInput("amount", "must be greater than zero")
	}
	if m.Cents > MaxAmount.Cents {
		return InvalidInput("amount", "is out of range")
	}
	return nil
}

// Add returns the exact sum of m and o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Decimal returns the amount as an exact decimal with two fractional digits.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with exactly two fractional digits, e.g. "42.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}
