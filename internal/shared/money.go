package shared

import "github.com/shopspring/decimal"

// Tolerance is the largest debit/credit difference still treated as equal.
var Tolerance = decimal.RequireFromString("0.01")

// Round2 rounds a monetary amount half away from zero to two decimals.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// RoundCost rounds a unit cost to the six decimals stored for average costs.
func RoundCost(v float64) float64 {
	return decimal.NewFromFloat(v).Round(6).InexactFloat64()
}

// Monetary multiplies quantity by unit cost and rounds the result to cents.
func Monetary(qty, unitCost float64) float64 {
	return decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(unitCost)).Round(2).InexactFloat64()
}

// Sum adds amounts without accumulating binary float error.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.InexactFloat64()
}

// WithinTolerance reports whether a and b differ by less than Tolerance.
func WithinTolerance(a, b float64) bool {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Abs().LessThan(Tolerance)
}

// Exceeds reports whether amount is greater than limit once both are rounded to cents.
func Exceeds(amount, limit float64) bool {
	return decimal.NewFromFloat(amount).Round(2).GreaterThan(decimal.NewFromFloat(limit).Round(2))
}

// Numeric formats a value for a NUMERIC column with the given scale.
func Numeric(v float64, scale int32) string {
	return decimal.NewFromFloat(v).StringFixed(scale)
}
