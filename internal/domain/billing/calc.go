package billing

import "github.com/shopspring/decimal"

// ComputeDue applies a discount to the monthly fee. Tuition always floors at
// zero; a discount can waive a fee, never produce credit.
func ComputeDue(monthlyFee, discount float64) float64 {
	due := decimal.NewFromFloat(monthlyFee).Sub(decimal.NewFromFloat(discount))
	if due.IsNegative() {
		return 0
	}
	result, _ := due.Float64()
	return result
}

// SettleStatus derives the invoice status from amounts.
func SettleStatus(amount, paid float64) string {
	due := decimal.NewFromFloat(amount)
	settled := decimal.NewFromFloat(paid)
	switch {
	case settled.GreaterThanOrEqual(due):
		return InvoiceStatusPaid
	case settled.IsPositive():
		return InvoiceStatusPartial
	default:
		return InvoiceStatusUnpaid
	}
}
