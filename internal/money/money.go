// Package money provides the fixed-point amount type used by the ledger engine.
//
// Amounts are whole minor units (cents). All engine arithmetic is integer-only;
// decimals appear only when parsing input or rendering output.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a signed count of minor currency units.
type Amount int64

// Epsilon is the tolerance for monetary equality: one minor unit (0.01).
// Two amounts are considered equal when they are strictly less than Epsilon
// apart, which for whole minor units means exactly equal.
const Epsilon Amount = 1

// Zero is the zero amount.
const Zero Amount = 0

// Max is the largest amount accepted from input: 1,000,000,000.00.
const Max Amount = 100_000_000_000

const minorDigits = 2

// Cents builds an Amount from a minor-unit count.
func Cents(c int64) Amount { return Amount(c) }

// FromDecimal converts a major-unit decimal to an Amount, rounding half away
// from zero to the nearest minor unit.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount(d.Shift(minorDigits).Round(0).IntPart())
}

// Parse parses a major-unit string such as "33.34".
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -minorDigits)
}

// String renders the amount with exactly two decimals, e.g. "-12.05".
func (a Amount) String() string {
	return a.Decimal().StringFixed(minorDigits)
}

// Abs returns the absolute value.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a < b {
		return a
	}
	return b
}

// IsNegligible reports whether the amount is within Epsilon of zero.
func (a Amount) IsNegligible() bool {
	return a.Abs() < Epsilon
}

// ApproxEqual reports whether a and b are within Epsilon of each other.
func ApproxEqual(a, b Amount) bool {
	return (a - b).IsNegligible()
}

// Sum adds all values.
func Sum(values ...Amount) Amount {
	var total Amount
	for _, v := range values {
		total += v
	}
	return total
}
