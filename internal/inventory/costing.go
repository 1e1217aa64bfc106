package inventory

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Totals returns the quantity and value held across locations.
func Totals(locations []StockLocation) (qty, value float64) {
	q, v := totals(locations)
	return q.InexactFloat64(), v.Round(2).InexactFloat64()
}

func totals(locations []StockLocation) (decimal.Decimal, decimal.Decimal) {
	qty, value := decimal.Zero, decimal.Zero
	for _, loc := range locations {
		q := decimal.NewFromFloat(loc.Quantity)
		qty = qty.Add(q)
		value = value.Add(q.Mul(decimal.NewFromFloat(loc.AvgCost)))
	}
	return qty, value
}

// AverageCost is the quantity weighted mean cost across locations, zero when
// nothing is on hand.
func AverageCost(locations []StockLocation) float64 {
	qty, value := totals(locations)
	if !qty.IsPositive() {
		return 0
	}
	return shared.RoundCost(value.Div(qty).InexactFloat64())
}

// WeightedAverage folds an incoming quantity at unitCost into the existing
// stock. Without existing stock the incoming cost is the new average.
func WeightedAverage(locations []StockLocation, incomingQty, unitCost float64) float64 {
	qty, value := totals(locations)
	in := decimal.NewFromFloat(incomingQty)
	if !qty.IsPositive() {
		return shared.RoundCost(unitCost)
	}
	total := qty.Add(in)
	if !total.IsPositive() {
		return 0
	}
	value = value.Add(in.Mul(decimal.NewFromFloat(unitCost)))
	return shared.RoundCost(value.Div(total).InexactFloat64())
}

// deduction is the outcome of taking a quantity out of a product's locations.
// kept lists every surviving location, touched or not, with its new quantity.
type deduction struct {
	kept      []StockLocation
	removed   []int64
	shortfall float64
}

// planDeduction takes qty from locations in the given order. Each location
// gives up as much as it holds before the next is touched; emptied locations
// are removed.
func planDeduction(locations []StockLocation, qty float64) deduction {
	var out deduction
	remaining := decimal.NewFromFloat(qty)
	for _, loc := range locations {
		have := decimal.NewFromFloat(loc.Quantity)
		if !remaining.IsPositive() || !have.IsPositive() {
			out.kept = append(out.kept, loc)
			continue
		}
		take := decimal.Min(have, remaining)
		remaining = remaining.Sub(take)
		left := have.Sub(take)
		if !left.IsPositive() {
			out.removed = append(out.removed, loc.ID)
			continue
		}
		loc.PreviousQuantity = loc.Quantity
		loc.Quantity = left.InexactFloat64()
		out.kept = append(out.kept, loc)
	}
	if remaining.IsPositive() {
		out.shortfall = remaining.InexactFloat64()
	}
	return out
}
