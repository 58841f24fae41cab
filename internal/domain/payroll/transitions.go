package payroll

import "time"

// The salary lifecycle is draft -> approved -> paid. No edge skips a state and
// paid is terminal; regeneration may only rewrite records still in draft.
var nextStatus = map[string]string{
	SalaryStatusDraft:    SalaryStatusApproved,
	SalaryStatusApproved: SalaryStatusPaid,
}

// CanTransition reports whether a salary record may move between two states.
func CanTransition(from, to string) bool {
	return nextStatus[from] == to
}

// ValidMonth reports whether value is a real YYYY-MM month.
func ValidMonth(value string) bool {
	_, err := time.Parse("2006-01", value)
	return err == nil
}
