package jobs_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"madrasa/internal/domain/billing"
	"madrasa/internal/platform/config"
	"madrasa/internal/platform/db"
	"madrasa/internal/platform/jobs"
)

type recordingSender struct {
	recipients []string
}

func (r *recordingSender) Send(ctx context.Context, to, body string) error {
	r.recipients = append(r.recipients, to)
	return nil
}

func newTestPool(t *testing.T) *pgxpool.Pool {
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
		"job_runs", "invoice_payments", "invoices", "fee_schedules",
		"attendance", "progress_entries", "enrollments", "halaqas", "students",
		"salary_records", "payroll_adjustments", "staff_contracts", "staff",
	} {
		if _, err := pool.Exec(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("clean %s: %v", table, err)
		}
	}
	return pool
}

func TestFeeRemindersSkipStudentsWithoutGuardianPhone(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	month := "2026-05"

	var staffID string
	if err := pool.QueryRow(ctx, `
    INSERT INTO staff (full_name, position, status) VALUES ('Reminder Teacher', 'teacher', 'active') RETURNING id
  `).Scan(&staffID); err != nil {
		t.Fatalf("create staff: %v", err)
	}

	var halaqaID string
	if err := pool.QueryRow(ctx, `
    INSERT INTO halaqas (name, track, teacher_id) VALUES ('Reminder Circle', 'memorization', $1) RETURNING id
  `, staffID).Scan(&halaqaID); err != nil {
		t.Fatalf("create halaqa: %v", err)
	}

	var withPhone, withoutPhone string
	if err := pool.QueryRow(ctx, `
    INSERT INTO students (full_name, guardian_name, guardian_phone) VALUES ('Reachable Student', 'Guardian A', '+96650000002') RETURNING id
  `).Scan(&withPhone); err != nil {
		t.Fatalf("create student: %v", err)
	}
	if err := pool.QueryRow(ctx, `
    INSERT INTO students (full_name, guardian_name) VALUES ('Unreachable Student', 'Guardian B') RETURNING id
  `).Scan(&withoutPhone); err != nil {
		t.Fatalf("create student: %v", err)
	}
	for _, studentID := range []string{withPhone, withoutPhone} {
		if _, err := pool.Exec(ctx, `
      INSERT INTO enrollments (halaqa_id, student_id) VALUES ($1, $2)
    `, halaqaID, studentID); err != nil {
			t.Fatalf("enroll: %v", err)
		}
	}

	billingStore := billing.NewStore(pool)
	if _, err := billingStore.UpsertFeeSchedule(ctx, halaqaID, 300, "USD"); err != nil {
		t.Fatalf("fee schedule: %v", err)
	}
	if _, err := billingStore.GenerateMonth(ctx, month); err != nil {
		t.Fatalf("generate invoices: %v", err)
	}

	sender := &recordingSender{}
	svc := jobs.New(pool, config.Config{SchoolName: "Test Madrasa"}, billingStore, sender)

	details, err := svc.RunNow(ctx, jobs.JobFeeReminders, func(ctx context.Context) (any, error) {
		return svc.SendFeeReminders(ctx, month)
	})
	if err != nil {
		t.Fatalf("run reminders: %v", err)
	}

	counts, ok := details.(map[string]any)
	if !ok {
		t.Fatalf("unexpected details shape: %T", details)
	}
	if counts["sent"] != 1 || counts["skipped"] != 1 || counts["failed"] != 0 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	if len(sender.recipients) != 1 || sender.recipients[0] != "+96650000002" {
		t.Fatalf("unexpected recipients: %v", sender.recipients)
	}

	var status string
	if err := pool.QueryRow(ctx, `
    SELECT status FROM job_runs WHERE job_type = $1 ORDER BY started_at DESC LIMIT 1
  `, jobs.JobFeeReminders).Scan(&status); err != nil {
		t.Fatalf("job run row: %v", err)
	}
	if status != "completed" {
		t.Fatalf("expected completed job run, got %s", status)
	}
}
