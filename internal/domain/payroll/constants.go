package payroll

const (
	SalaryStatusDraft    = "draft"
	SalaryStatusApproved = "approved"
	SalaryStatusPaid     = "paid"

	ContractStatusActive   = "active"
	ContractStatusInactive = "inactive"

	ContractTypeFullTime = "full-time"
	ContractTypePartTime = "part-time"

	AdjustmentBonus         = "bonus"
	AdjustmentReimbursement = "reimbursement"
	AdjustmentDeduction     = "deduction"
)
