package billing

import "time"

type FeeSchedule struct {
	ID            string    `json:"id"`
	HalaqaID      string    `json:"halaqaId"`
	MonthlyAmount float64   `json:"monthlyAmount"`
	Currency      string    `json:"currency"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Invoice struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"studentId"`
	HalaqaID    string    `json:"halaqaId"`
	Month       string    `json:"month"`
	Amount      float64   `json:"amount"`
	PaidAmount  float64   `json:"paidAmount"`
	Status      string    `json:"status"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type InvoiceRow struct {
	Invoice
	StudentName string `json:"studentName"`
	GuardianTel string `json:"guardianPhone"`
}

type Payment struct {
	ID        string    `json:"id"`
	InvoiceID string    `json:"invoiceId"`
	Amount    float64   `json:"amount"`
	Method    string    `json:"method"`
	PaidAt    time.Time `json:"paidAt"`
}

type GenerationResult struct {
	Month     string `json:"month"`
	Processed int    `json:"processed"`
	Generated int    `json:"generated"`
	Skipped   int    `json:"skipped"`
}

const (
	InvoiceStatusUnpaid  = "unpaid"
	InvoiceStatusPartial = "partial"
	InvoiceStatusPaid    = "paid"
)
