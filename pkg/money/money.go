// Package money keeps every amount in integer minor units (cents) and only
// turns them into decimals for display.
package money

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

const minorUnitExponent = -2

// ErrOutOfRange is returned when an amount no longer fits in int64 cents.
var ErrOutOfRange = errors.New("money: amount out of range")

// FromCents converts an integer amount of cents into a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, minorUnitExponent)
}

// Format renders cents as a fixed two-decimal string, e.g. 2000 -> "20.00".
func Format(cents int64) string {
	return FromCents(cents).StringFixed(2)
}

// LineTotal multiplies a unit price by a quantity without leaving integer space.
func LineTotal(unitCents int64, quantity int) (int64, error) {
	q := int64(quantity)
	if unitCents == 0 || q == 0 {
		return 0, nil
	}
	total := unitCents * q
	if total/q != unitCents || (q == -1 && unitCents == math.MinInt64) {
		return 0, ErrOutOfRange
	}
	return total, nil
}

// Add sums two amounts, failing instead of wrapping around.
func Add(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, ErrOutOfRange
	}
	return sum, nil
}
