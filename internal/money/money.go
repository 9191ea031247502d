// Package money converts between the decimal amounts stored on orders and
// the integer minor units the payment provider speaks.
package money

import "github.com/shopspring/decimal"

// Two fractional digits per currency unit.
const minorUnitExponent = 2

// ToMinorUnits converts a decimal amount to integer minor units,
// rounding half away from zero. The conversion is deterministic: the
// same input always yields the same output.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(minorUnitExponent).Round(0).IntPart()
}

// FromMinorUnits converts provider minor units back to a decimal amount.
func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.New(units, -minorUnitExponent)
}
