package payroll

import "github.com/shopspring/decimal"

// SumAdjustments folds a month's ledger entries into one signed amount.
// Bonuses and reimbursements add, every other type deducts. Order of entries
// does not matter.
func SumAdjustments(adjustments []Adjustment) float64 {
	total := decimal.Zero
	for _, adj := range adjustments {
		amount := decimal.NewFromFloat(adj.Amount)
		switch adj.Type {
		case AdjustmentBonus, AdjustmentReimbursement:
			total = total.Add(amount)
		default:
			total = total.Sub(amount)
		}
	}
	result, _ := total.Float64()
	return result
}

// ComputeTotal derives the payable amount for one salary record. The result
// may be negative unless clampNegative is set.
func ComputeTotal(baseSalary, adjustments float64, clampNegative bool) float64 {
	total := decimal.NewFromFloat(baseSalary).Add(decimal.NewFromFloat(adjustments))
	if clampNegative && total.IsNegative() {
		return 0
	}
	result, _ := total.Float64()
	return result
}
