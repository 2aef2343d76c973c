// Package money provides two-decimal monetary arithmetic helpers used across
// the discount and cart engines. Amounts are major units (e.g. 10.50), minor
// units are cents.
package money

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	cent    = decimal.New(1, -2)
)

// Round2 rounds to cent precision, halves rounding away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FloorCents truncates towards negative infinity at cent precision.
func FloorCents(d decimal.Decimal) decimal.Decimal {
	return d.Mul(hundred).Floor().Div(hundred)
}

// Cents returns the amount in minor units after rounding to cent precision.
func Cents(d decimal.Decimal) int64 {
	return d.Round(2).Mul(hundred).IntPart()
}

// String2 formats the amount with exactly two fraction digits, the shape
// every monetary field on the provider wire uses.
func String2(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// BelowCent reports whether the magnitude of d is smaller than one cent.
func BelowCent(d decimal.Decimal) bool {
	return d.Abs().LessThan(cent)
}
