package billing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("invoice not found")

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) UpsertFeeSchedule(ctx context.Context, halaqaID string, monthlyAmount float64, currency string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO fee_schedules (halaqa_id, monthly_amount, currency)
    VALUES ($1,$2,$3)
    ON CONFLICT (halaqa_id)
    DO UPDATE SET monthly_amount = EXCLUDED.monthly_amount,
                  currency = EXCLUDED.currency,
                  updated_at = now()
    RETURNING id
  `, halaqaID, monthlyAmount, currency).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

type enrolledStudent struct {
	studentID string
	halaqaID  string
	fee       float64
	discount  float64
}

// GenerateMonth creates one invoice per enrolled student for halaqas with a
// fee schedule. Like payroll generation it runs in one transaction and never
// rewrites an invoice a payment has touched.
func (s *Store) GenerateMonth(ctx context.Context, month string) (GenerationResult, error) {
	result := GenerationResult{Month: month}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return result, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
    SELECT e.student_id, e.halaqa_id, fs.monthly_amount, COALESCE(e.monthly_discount, 0)
    FROM enrollments e
    JOIN fee_schedules fs ON fs.halaqa_id = e.halaqa_id
    WHERE e.removed_at IS NULL
  `)
	if err != nil {
		return result, err
	}
	var students []enrolledStudent
	for rows.Next() {
		var st enrolledStudent
		if err := rows.Scan(&st.studentID, &st.halaqaID, &st.fee, &st.discount); err != nil {
			rows.Close()
			return result, err
		}
		students = append(students, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return result, err
	}

	for _, st := range students {
		result.Processed++
		due := ComputeDue(st.fee, st.discount)

		tag, err := tx.Exec(ctx, `
      INSERT INTO invoices (student_id, halaqa_id, month, amount, paid_amount, status, generated_at)
      VALUES ($1,$2,$3,$4,0,$5,now())
      ON CONFLICT (student_id, month)
      DO UPDATE SET amount = EXCLUDED.amount, halaqa_id = EXCLUDED.halaqa_id, generated_at = now()
      WHERE invoices.status = $5 AND invoices.paid_amount = 0
    `, st.studentID, st.halaqaID, month, due, InvoiceStatusUnpaid)
		if err != nil {
			return result, err
		}
		if tag.RowsAffected() == 0 {
			result.Skipped++
		} else {
			result.Generated++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Store) RecordPayment(ctx context.Context, invoiceID string, amount float64, method string, paidAt time.Time) (string, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var invoiceAmount, paidAmount float64
	err = tx.QueryRow(ctx, "SELECT amount, paid_amount FROM invoices WHERE id = $1 FOR UPDATE", invoiceID).Scan(&invoiceAmount, &paidAmount)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	var paymentID string
	if err := tx.QueryRow(ctx, `
    INSERT INTO invoice_payments (invoice_id, amount, method, paid_at)
    VALUES ($1,$2,$3,$4)
    RETURNING id
  `, invoiceID, amount, method, paidAt).Scan(&paymentID); err != nil {
		return "", err
	}

	newPaid := paidAmount + amount
	status := SettleStatus(invoiceAmount, newPaid)
	if _, err := tx.Exec(ctx, "UPDATE invoices SET paid_amount = $1, status = $2 WHERE id = $3", newPaid, status, invoiceID); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return paymentID, nil
}

func (s *Store) Invoices(ctx context.Context, month, status string) ([]InvoiceRow, error) {
	query := `
    SELECT i.id, i.student_id, i.halaqa_id, i.month, i.amount, i.paid_amount, i.status, i.generated_at,
           st.full_name, COALESCE(st.guardian_phone, '')
    FROM invoices i
    JOIN students st ON i.student_id = st.id
    WHERE i.month = $1`
	args := []any{month}
	if status != "" {
		query += " AND i.status = $2"
		args = append(args, status)
	}
	query += " ORDER BY st.full_name"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InvoiceRow
	for rows.Next() {
		var row InvoiceRow
		if err := rows.Scan(&row.ID, &row.StudentID, &row.HalaqaID, &row.Month, &row.Amount, &row.PaidAmount,
			&row.Status, &row.GeneratedAt, &row.StudentName, &row.GuardianTel); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// UnpaidForMonth feeds the reminder job. Rows without a guardian phone are
// included so the job can report them as skipped.
func (s *Store) UnpaidForMonth(ctx context.Context, month string) ([]InvoiceRow, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT i.id, i.student_id, i.halaqa_id, i.month, i.amount, i.paid_amount, i.status, i.generated_at,
           st.full_name, COALESCE(st.guardian_phone, '')
    FROM invoices i
    JOIN students st ON i.student_id = st.id
    WHERE i.month = $1 AND i.status <> $2
  `, month, InvoiceStatusPaid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InvoiceRow
	for rows.Next() {
		var row InvoiceRow
		if err := rows.Scan(&row.ID, &row.StudentID, &row.HalaqaID, &row.Month, &row.Amount, &row.PaidAmount,
			&row.Status, &row.GeneratedAt, &row.StudentName, &row.GuardianTel); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
