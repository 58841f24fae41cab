package payroll_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"madrasa/internal/domain/payroll"
	"madrasa/internal/platform/db"
)

func newTestStore(t *testing.T) (*payroll.Store, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := db.Migrate(ctx, pool, "../../../migrations"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, table := range []string{
		"attendance", "progress_entries", "invoice_payments", "invoices", "fee_schedules",
		"enrollments", "halaqas", "salary_records", "payroll_adjustments", "staff_contracts", "staff",
	} {
		if _, err := pool.Exec(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("clean %s: %v", table, err)
		}
	}

	return payroll.NewStore(pool), pool
}

func createStaff(t *testing.T, pool *pgxpool.Pool, name string) string {
	t.Helper()
	var id string
	err := pool.QueryRow(context.Background(), `
    INSERT INTO staff (full_name, position, status) VALUES ($1, 'teacher', 'active') RETURNING id
  `, name).Scan(&id)
	if err != nil {
		t.Fatalf("create staff: %v", err)
	}
	return id
}

func TestPayrollLifecycle(t *testing.T) {
	store, pool := newTestStore(t)
	ctx := context.Background()
	month := "2026-02"

	staffID := createStaff(t, pool, "Ahmad al-Qari")
	if _, err := store.UpsertContract(ctx, staffID, 1200, "USD", payroll.ContractTypeFullTime,
		time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("upsert contract: %v", err)
	}

	if _, err := store.AddAdjustment(ctx, payroll.Adjustment{
		StaffID:     staffID,
		Month:       month,
		Type:        payroll.AdjustmentBonus,
		Amount:      100,
		Description: "Ramadan bonus",
	}); err != nil {
		t.Fatalf("add adjustment: %v", err)
	}

	result, err := store.GenerateMonth(ctx, month, false)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Processed != 1 || result.Generated != 1 || result.Skipped != 0 {
		t.Fatalf("unexpected generation result: %+v", result)
	}

	salaries, err := store.Salaries(ctx, month, "")
	if err != nil {
		t.Fatalf("salaries: %v", err)
	}
	if len(salaries) != 1 {
		t.Fatalf("expected 1 salary record, got %d", len(salaries))
	}
	record := salaries[0]
	if record.Status != payroll.SalaryStatusDraft {
		t.Fatalf("expected draft, got %s", record.Status)
	}
	if record.TotalAmount != 1300 {
		t.Fatalf("expected total 1300, got %v", record.TotalAmount)
	}

	if err := store.Approve(ctx, record.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	paymentDate := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	if err := store.MarkPaid(ctx, record.ID, paymentDate); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	// A later regeneration must not rewrite the paid record.
	again, err := store.GenerateMonth(ctx, month, false)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if again.Processed != 1 || again.Generated != 0 || again.Skipped != 1 {
		t.Fatalf("unexpected regeneration result: %+v", again)
	}

	salaries, err = store.Salaries(ctx, month, "")
	if err != nil {
		t.Fatalf("salaries after regenerate: %v", err)
	}
	if len(salaries) != 1 {
		t.Fatalf("expected 1 salary record after regenerate, got %d", len(salaries))
	}
	final := salaries[0]
	if final.Status != payroll.SalaryStatusPaid {
		t.Fatalf("expected paid, got %s", final.Status)
	}
	if final.TotalAmount != 1300 {
		t.Fatalf("paid total changed to %v", final.TotalAmount)
	}
	if final.PaymentDate == nil || !final.PaymentDate.Equal(paymentDate) {
		t.Fatalf("unexpected payment date: %v", final.PaymentDate)
	}
}

func TestGenerateMonthIsIdempotentForDrafts(t *testing.T) {
	store, pool := newTestStore(t)
	ctx := context.Background()
	month := "2026-03"

	staffID := createStaff(t, pool, "Maryam al-Hafiza")
	if _, err := store.UpsertContract(ctx, staffID, 900, "USD", payroll.ContractTypePartTime,
		time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("upsert contract: %v", err)
	}

	if _, err := store.GenerateMonth(ctx, month, false); err != nil {
		t.Fatalf("first generate: %v", err)
	}

	// New adjustment lands, then the draft is regenerated with the new total.
	if _, err := store.AddAdjustment(ctx, payroll.Adjustment{
		StaffID: staffID,
		Month:   month,
		Type:    payroll.AdjustmentDeduction,
		Amount:  50,
	}); err != nil {
		t.Fatalf("add adjustment: %v", err)
	}

	result, err := store.GenerateMonth(ctx, month, false)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if result.Generated != 1 {
		t.Fatalf("draft should regenerate: %+v", result)
	}

	var count int
	if err := pool.QueryRow(ctx, `
    SELECT COUNT(1) FROM salary_records WHERE staff_id = $1 AND month = $2
  `, staffID, month).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one record per staff and month, got %d", count)
	}

	salaries, err := store.Salaries(ctx, month, payroll.SalaryStatusDraft)
	if err != nil {
		t.Fatalf("salaries: %v", err)
	}
	if len(salaries) != 1 || salaries[0].TotalAmount != 850 {
		t.Fatalf("expected regenerated total 850, got %+v", salaries)
	}
}

func TestTransitionGuards(t *testing.T) {
	store, pool := newTestStore(t)
	ctx := context.Background()
	month := "2026-04"

	staffID := createStaff(t, pool, "Yusuf al-Muqri")
	if _, err := store.UpsertContract(ctx, staffID, 1000, "USD", payroll.ContractTypeFullTime,
		time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("upsert contract: %v", err)
	}
	if _, err := store.GenerateMonth(ctx, month, false); err != nil {
		t.Fatalf("generate: %v", err)
	}
	salaries, err := store.Salaries(ctx, month, "")
	if err != nil || len(salaries) != 1 {
		t.Fatalf("salaries: %v (%d rows)", err, len(salaries))
	}
	id := salaries[0].ID

	if err := store.MarkPaid(ctx, id, time.Now()); err != payroll.ErrInvalidTransition {
		t.Fatalf("draft -> paid should be rejected, got %v", err)
	}
	if err := store.Approve(ctx, id); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := store.Approve(ctx, id); err != payroll.ErrInvalidTransition {
		t.Fatalf("double approve should be rejected, got %v", err)
	}
	if err := store.MarkPaid(ctx, id, time.Now()); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if err := store.Approve(ctx, id); err != payroll.ErrInvalidTransition {
		t.Fatalf("paid is terminal, got %v", err)
	}
	if err := store.Approve(ctx, "00000000-0000-0000-0000-000000000000"); err != payroll.ErrNotFound {
		t.Fatalf("missing record should be not found, got %v", err)
	}
}
