package payroll

import "testing"

func TestSumAdjustmentsSignSemantics(t *testing.T) {
	adjustments := []Adjustment{
		{Type: AdjustmentBonus, Amount: 200},
		{Type: AdjustmentDeduction, Amount: 50},
	}
	if got := SumAdjustments(adjustments); got != 150 {
		t.Fatalf("expected 150, got %v", got)
	}
	if got := ComputeTotal(1000, 150, false); got != 1150 {
		t.Fatalf("expected total 1150, got %v", got)
	}
}

func TestSumAdjustmentsUnknownTypesDeduct(t *testing.T) {
	adjustments := []Adjustment{
		{Type: AdjustmentReimbursement, Amount: 75},
		{Type: "penalty", Amount: 25},
	}
	if got := SumAdjustments(adjustments); got != 50 {
		t.Fatalf("expected 50, got %v", got)
	}
}

func TestSumAdjustmentsOrderIndependent(t *testing.T) {
	forward := []Adjustment{
		{Type: AdjustmentBonus, Amount: 100},
		{Type: AdjustmentDeduction, Amount: 30},
		{Type: AdjustmentReimbursement, Amount: 12.5},
	}
	reversed := []Adjustment{forward[2], forward[1], forward[0]}
	if SumAdjustments(forward) != SumAdjustments(reversed) {
		t.Fatal("expected sum to be order independent")
	}
}

func TestSumAdjustmentsAvoidsFloatDrift(t *testing.T) {
	adjustments := []Adjustment{
		{Type: AdjustmentBonus, Amount: 0.1},
		{Type: AdjustmentBonus, Amount: 0.2},
	}
	if got := SumAdjustments(adjustments); got != 0.3 {
		t.Fatalf("expected 0.3, got %v", got)
	}
}

func TestComputeTotalClampPolicy(t *testing.T) {
	if got := ComputeTotal(100, -250, false); got != -150 {
		t.Fatalf("expected -150 without clamp, got %v", got)
	}
	if got := ComputeTotal(100, -250, true); got != 0 {
		t.Fatalf("expected 0 with clamp, got %v", got)
	}
	if got := ComputeTotal(100, -50, true); got != 50 {
		t.Fatalf("clamp must not touch positive totals, got %v", got)
	}
}
