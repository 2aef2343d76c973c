package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	gramsPerKg  = decimal.NewFromInt(1000)
	gramsPerLb  = decimal.NewFromFloat(453.592)
	gramsPerOz  = decimal.NewFromFloat(28.3495)
	cmPerMeter  = decimal.NewFromInt(100)
	cmPerInch   = decimal.NewFromFloat(2.54)
	cmPerYard   = decimal.NewFromFloat(91.44)
	mmPerCm     = decimal.NewFromInt(10)
)

// Grams converts a weight in the storefront's configured unit to grams.
// Unrecognised units pass through unconverted.
func Grams(value decimal.Decimal, unit string) decimal.Decimal {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "kg":
		return value.Mul(gramsPerKg)
	case "g":
		return value
	case "lbs":
		return value.Mul(gramsPerLb)
	case "oz":
		return value.Mul(gramsPerOz)
	default:
		return value
	}
}

// Centimeters converts a dimension in the storefront's configured unit to
// centimetres. Unrecognised units pass through unconverted.
func Centimeters(value decimal.Decimal, unit string) decimal.Decimal {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "m":
		return value.Mul(cmPerMeter)
	case "cm":
		return value
	case "mm":
		return value.Div(mmPerCm)
	case "in":
		return value.Mul(cmPerInch)
	case "yd":
		return value.Mul(cmPerYard)
	default:
		return value
	}
}
