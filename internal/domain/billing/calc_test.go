package billing

import "testing"

func TestComputeDueClampsAtZero(t *testing.T) {
	if got := ComputeDue(100, 30); got != 70 {
		t.Fatalf("expected 70, got %v", got)
	}
	if got := ComputeDue(100, 150); got != 0 {
		t.Fatalf("expected clamp to 0, got %v", got)
	}
	if got := ComputeDue(100, 100); got != 0 {
		t.Fatalf("expected full waiver to be 0, got %v", got)
	}
}

func TestSettleStatus(t *testing.T) {
	cases := []struct {
		amount, paid float64
		want         string
	}{
		{100, 0, InvoiceStatusUnpaid},
		{100, 40, InvoiceStatusPartial},
		{100, 100, InvoiceStatusPaid},
		{100, 120, InvoiceStatusPaid},
		{0, 0, InvoiceStatusPaid},
	}
	for _, tc := range cases {
		if got := SettleStatus(tc.amount, tc.paid); got != tc.want {
			t.Fatalf("SettleStatus(%v, %v): expected %s, got %s", tc.amount, tc.paid, tc.want, got)
		}
	}
}
