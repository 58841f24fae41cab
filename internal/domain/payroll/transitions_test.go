package payroll

import "testing"

func TestSalaryTransitions(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{SalaryStatusDraft, SalaryStatusApproved, true},
		{SalaryStatusApproved, SalaryStatusPaid, true},
		{SalaryStatusDraft, SalaryStatusPaid, false},
		{SalaryStatusApproved, SalaryStatusDraft, false},
		{SalaryStatusPaid, SalaryStatusDraft, false},
		{SalaryStatusPaid, SalaryStatusApproved, false},
		{SalaryStatusPaid, SalaryStatusPaid, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Fatalf("transition %s -> %s: expected %v, got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestPaidIsTerminal(t *testing.T) {
	for _, to := range []string{SalaryStatusDraft, SalaryStatusApproved, SalaryStatusPaid} {
		if CanTransition(SalaryStatusPaid, to) {
			t.Fatalf("paid must be terminal, transition to %s allowed", to)
		}
	}
}

func TestValidMonth(t *testing.T) {
	valid := []string{"2026-01", "2026-12", "1999-06"}
	invalid := []string{"", "2026", "2026-13", "2026-00", "2026-1", "26-01", "2026-01-15"}
	for _, value := range valid {
		if !ValidMonth(value) {
			t.Fatalf("expected %q to be valid", value)
		}
	}
	for _, value := range invalid {
		if ValidMonth(value) {
			t.Fatalf("expected %q to be invalid", value)
		}
	}
}
