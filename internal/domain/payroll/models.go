package payroll

import "time"

type Contract struct {
	ID         string    `json:"id"`
	StaffID    string    `json:"staffId"`
	BaseSalary float64   `json:"baseSalary"`
	Currency   string    `json:"currency"`
	Type       string    `json:"type"`
	StartDate  time.Time `json:"startDate"`
	Status     string    `json:"status"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type ContractRow struct {
	Contract
	StaffName string `json:"staffName"`
}

type Adjustment struct {
	ID          string    `json:"id"`
	StaffID     string    `json:"staffId"`
	Month       string    `json:"month"`
	Type        string    `json:"type"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

type SalaryRecord struct {
	ID          string     `json:"id"`
	StaffID     string     `json:"staffId"`
	Month       string     `json:"month"`
	BaseAmount  float64    `json:"baseAmount"`
	Adjustments float64    `json:"adjustments"`
	TotalAmount float64    `json:"totalAmount"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	GeneratedAt time.Time  `json:"generatedAt"`
	PaymentDate *time.Time `json:"paymentDate,omitempty"`
}

type SalaryRow struct {
	SalaryRecord
	StaffName string `json:"staffName"`
	StaffRole string `json:"staffRole"`
}

// GenerationResult reports one generateMonthlyPayroll run. Processed counts
// every Active contract seen, whether or not its record changed.
type GenerationResult struct {
	Month     string `json:"month"`
	Processed int    `json:"processed"`
	Generated int    `json:"generated"`
	Skipped   int    `json:"skipped"`
}

type SlipData struct {
	StaffName   string
	StaffEmail  string
	Month       string
	BaseAmount  float64
	Adjustments float64
	TotalAmount float64
	Currency    string
	Status      string
	PaymentDate *time.Time
}
