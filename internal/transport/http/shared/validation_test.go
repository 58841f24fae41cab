package shared

import "testing"

func TestValidatorCollectsAndSortsIssues(t *testing.T) {
	v := NewValidator()
	v.Required("name", "", "is required")
	v.Positive("baseSalary", -10, "must be positive")
	v.Month("month", "2026-13")

	if !v.HasIssues() {
		t.Fatal("expected issues")
	}
	issues := v.Issues()
	if len(issues) != 3 {
		t.Fatalf("expected 3 issues, got %d", len(issues))
	}
	for i := 1; i < len(issues); i++ {
		if issues[i-1].Field > issues[i].Field {
			t.Fatal("expected issues sorted by field")
		}
	}
}

func TestValidatorAcceptsValidInput(t *testing.T) {
	v := NewValidator()
	v.Required("name", "Ahmad", "is required")
	v.Positive("baseSalary", 1200, "must be positive")
	v.NonNegative("amount", 0, "must not be negative")
	v.Month("month", "2026-02")
	v.Enum("type", "bonus", []string{"bonus", "deduction", "reimbursement"}, "unknown type")

	if v.HasIssues() {
		t.Fatalf("expected no issues, got %+v", v.Issues())
	}
}

func TestParseDateFormats(t *testing.T) {
	if _, err := ParseDate("2026-02-28"); err != nil {
		t.Fatalf("expected YYYY-MM-DD accepted: %v", err)
	}
	if _, err := ParseDate("2026-02-28T10:00:00Z"); err != nil {
		t.Fatalf("expected RFC3339 accepted: %v", err)
	}
	if _, err := ParseDate("28/02/2026"); err == nil {
		t.Fatal("expected unknown format rejected")
	}
}
