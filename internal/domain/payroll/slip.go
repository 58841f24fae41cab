package payroll

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// RenderSlip produces the downloadable salary-slip PDF for one record.
func RenderSlip(schoolName string, data SlipData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, schoolName+" - Salary Slip")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Staff: %s", data.StaffName))
	pdf.Ln(7)
	if data.StaffEmail != "" {
		pdf.Cell(0, 8, fmt.Sprintf("Email: %s", data.StaffEmail))
		pdf.Ln(7)
	}
	pdf.Cell(0, 8, fmt.Sprintf("Month: %s", data.Month))
	pdf.Ln(10)
	pdf.Cell(0, 8, fmt.Sprintf("Base: %.2f %s", data.BaseAmount, data.Currency))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Adjustments: %+.2f %s", data.Adjustments, data.Currency))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Total: %.2f %s", data.TotalAmount, data.Currency))
	pdf.Ln(10)
	pdf.Cell(0, 8, fmt.Sprintf("Status: %s", data.Status))
	if data.PaymentDate != nil {
		pdf.Ln(7)
		pdf.Cell(0, 8, fmt.Sprintf("Paid on: %s", data.PaymentDate.Format("2006-01-02")))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
