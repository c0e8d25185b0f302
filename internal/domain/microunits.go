package domain

import "github.com/shopspring/decimal"

// microUnitScale is the scale factor between a dollar and a settlement-service
// micro-unit: 1 unit = 1,000,000 micro-units (§6).
var microUnitScale = decimal.NewFromInt(1_000_000)

// ToMicroUnits converts a decimal-dollar amount to an integer micro-unit
// string, rounding to the nearest micro-unit.
func ToMicroUnits(amount decimal.Decimal) string {
	return amount.Mul(microUnitScale).Round(0).String()
}

// FromMicroUnits converts an integer micro-unit string back to decimal
// dollars. Malformed input decodes to zero.
func FromMicroUnits(microUnits string) decimal.Decimal {
	d, err := decimal.NewFromString(microUnits)
	if err != nil {
		return decimal.Zero
	}
	return d.Div(microUnitScale)
}
