// Package money provides currency-aware rounding and amount arithmetic used
// throughout the pricing engine and order pipeline.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

const defaultScale = 2

// Scale returns the number of decimal digits used for amounts in the given
// ISO 4217 currency. Unknown codes fall back to two digits.
func Scale(currencyCode string) int32 {
	unit, err := currency.ParseISO(strings.TrimSpace(currencyCode))
	if err != nil {
		return defaultScale
	}
	scale, _ := currency.Cash.Rounding(unit)
	return int32(scale)
}

// Round rounds an amount to the scale of the given currency, half away from
// zero.
func Round(amount decimal.Decimal, currencyCode string) decimal.Decimal {
	return amount.Round(Scale(currencyCode))
}

// RoundToNearest snaps an amount to the nearest multiple of the given
// denomination and returns the snapped amount together with the signed
// difference (snapped minus original). A non-positive denomination leaves the
// amount untouched.
func RoundToNearest(amount, denomination decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if denomination.Sign() <= 0 {
		return amount, decimal.Zero
	}
	snapped := amount.Div(denomination).Round(0).Mul(denomination)
	return snapped, snapped.Sub(amount)
}

// ClampZero returns zero for negative amounts, the amount otherwise.
func ClampZero(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// Min returns the smaller of two amounts.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of two amounts.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}
