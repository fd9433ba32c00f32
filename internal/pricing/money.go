package pricing

import "github.com/shopspring/decimal"

// Round rounds half away from zero to whole units.
func Round(d decimal.Decimal) Money {
	return d.Round(0).IntPart()
}

// sanitize coerces negative values to zero.
func sanitize(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
