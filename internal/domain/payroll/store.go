package payroll

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

// UpsertContract keeps exactly one current contract per staff member. An
// existing row is overwritten in place and forced back to active; prior values
// are not versioned.
func (s *Store) UpsertContract(ctx context.Context, staffID string, baseSalary float64, currency, contractType string, startDate time.Time) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO staff_contracts (staff_id, base_salary, currency, type, start_date, status)
    VALUES ($1,$2,$3,$4,$5,$6)
    ON CONFLICT (staff_id)
    DO UPDATE SET base_salary = EXCLUDED.base_salary,
                  currency = EXCLUDED.currency,
                  type = EXCLUDED.type,
                  start_date = EXCLUDED.start_date,
                  status = EXCLUDED.status,
                  updated_at = now()
    RETURNING id
  `, staffID, baseSalary, currency, contractType, startDate, ContractStatusActive).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) SetContractStatus(ctx context.Context, staffID, status string) error {
	tag, err := s.DB.Exec(ctx, "UPDATE staff_contracts SET status = $1, updated_at = now() WHERE staff_id = $2", status, staffID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListContracts(ctx context.Context) ([]ContractRow, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT c.id, c.staff_id, c.base_salary, c.currency, c.type, c.start_date, c.status, c.updated_at,
           st.full_name
    FROM staff_contracts c
    JOIN staff st ON c.staff_id = st.id
    ORDER BY st.full_name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ContractRow
	for rows.Next() {
		var row ContractRow
		if err := rows.Scan(&row.ID, &row.StaffID, &row.BaseSalary, &row.Currency, &row.Type, &row.StartDate, &row.Status, &row.UpdatedAt, &row.StaffName); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// AddAdjustment appends one immutable ledger entry. Duplicates for the same
// staff/month/type are allowed and all counted.
func (s *Store) AddAdjustment(ctx context.Context, adj Adjustment) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO payroll_adjustments (staff_id, month, type, amount, description)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id
  `, adj.StaffID, adj.Month, adj.Type, adj.Amount, adj.Description).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) ListAdjustments(ctx context.Context, staffID, month string) ([]Adjustment, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, staff_id, month, type, amount, description, created_at
    FROM payroll_adjustments
    WHERE staff_id = $1 AND month = $2
  `, staffID, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAdjustments(rows)
}

func (s *Store) ListMonthAdjustments(ctx context.Context, month string) ([]Adjustment, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, staff_id, month, type, amount, description, created_at
    FROM payroll_adjustments
    WHERE month = $1
    ORDER BY created_at DESC
  `, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAdjustments(rows)
}

func scanAdjustments(rows pgx.Rows) ([]Adjustment, error) {
	var out []Adjustment
	for rows.Next() {
		var adj Adjustment
		if err := rows.Scan(&adj.ID, &adj.StaffID, &adj.Month, &adj.Type, &adj.Amount, &adj.Description, &adj.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, adj)
	}
	return out, rows.Err()
}

type activeContract struct {
	staffID    string
	baseSalary float64
	currency   string
}

// GenerateMonth derives one salary record per active contract inside a single
// transaction: a failure partway rolls the whole month back. Records already
// approved or paid are never rewritten; the conditional update races cleanly
// with a concurrent approval.
func (s *Store) GenerateMonth(ctx context.Context, month string, clampNegative bool) (GenerationResult, error) {
	result := GenerationResult{Month: month}
	if !ValidMonth(month) {
		return result, ErrInvalidMonth
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return result, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
    SELECT staff_id, base_salary, currency
    FROM staff_contracts
    WHERE status = $1
  `, ContractStatusActive)
	if err != nil {
		return result, err
	}
	var contracts []activeContract
	for rows.Next() {
		var c activeContract
		if err := rows.Scan(&c.staffID, &c.baseSalary, &c.currency); err != nil {
			rows.Close()
			return result, err
		}
		contracts = append(contracts, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return result, err
	}

	for _, contract := range contracts {
		result.Processed++

		adjRows, err := tx.Query(ctx, `
      SELECT id, staff_id, month, type, amount, description, created_at
      FROM payroll_adjustments
      WHERE staff_id = $1 AND month = $2
    `, contract.staffID, month)
		if err != nil {
			return result, err
		}
		adjustments, err := scanAdjustments(adjRows)
		adjRows.Close()
		if err != nil {
			return result, err
		}

		adjustmentTotal := SumAdjustments(adjustments)
		total := ComputeTotal(contract.baseSalary, adjustmentTotal, clampNegative)

		// Insert, or rewrite the existing row only while it is still draft.
		tag, err := tx.Exec(ctx, `
      INSERT INTO salary_records (staff_id, month, base_amount, adjustments, total_amount, currency, status, generated_at)
      VALUES ($1,$2,$3,$4,$5,$6,$7,now())
      ON CONFLICT (staff_id, month)
      DO UPDATE SET base_amount = EXCLUDED.base_amount,
                    adjustments = EXCLUDED.adjustments,
                    total_amount = EXCLUDED.total_amount,
                    currency = EXCLUDED.currency,
                    generated_at = now()
      WHERE salary_records.status = $7
    `, contract.staffID, month, contract.baseSalary, adjustmentTotal, total, contract.currency, SalaryStatusDraft)
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

func (s *Store) Salaries(ctx context.Context, month, status string) ([]SalaryRow, error) {
	query := `
    SELECT sr.id, sr.staff_id, sr.month, sr.base_amount, sr.adjustments, sr.total_amount,
           sr.currency, sr.status, sr.generated_at, sr.payment_date,
           st.full_name, st.position
    FROM salary_records sr
    JOIN staff st ON sr.staff_id = st.id
    WHERE sr.month = $1`
	args := []any{month}
	if status != "" {
		query += " AND sr.status = $2"
		args = append(args, status)
	}
	query += " ORDER BY st.full_name"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SalaryRow
	for rows.Next() {
		var row SalaryRow
		if err := rows.Scan(&row.ID, &row.StaffID, &row.Month, &row.BaseAmount, &row.Adjustments, &row.TotalAmount,
			&row.Currency, &row.Status, &row.GeneratedAt, &row.PaymentDate, &row.StaffName, &row.StaffRole); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) StaffSalaries(ctx context.Context, staffID string) ([]SalaryRecord, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, staff_id, month, base_amount, adjustments, total_amount, currency, status, generated_at, payment_date
    FROM salary_records
    WHERE staff_id = $1
    ORDER BY month DESC
  `, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SalaryRecord
	for rows.Next() {
		var record SalaryRecord
		if err := rows.Scan(&record.ID, &record.StaffID, &record.Month, &record.BaseAmount, &record.Adjustments,
			&record.TotalAmount, &record.Currency, &record.Status, &record.GeneratedAt, &record.PaymentDate); err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// Approve moves a draft record to approved with a single conditional update,
// so a concurrent regeneration or double approve cannot slip through.
func (s *Store) Approve(ctx context.Context, salaryID string) error {
	return s.transition(ctx, salaryID, SalaryStatusDraft, SalaryStatusApproved, nil)
}

// MarkPaid requires a prior approval and stamps the payment date. Paid is
// terminal.
func (s *Store) MarkPaid(ctx context.Context, salaryID string, paymentDate time.Time) error {
	return s.transition(ctx, salaryID, SalaryStatusApproved, SalaryStatusPaid, &paymentDate)
}

func (s *Store) transition(ctx context.Context, salaryID, from, to string, paymentDate *time.Time) error {
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}

	var tag int64
	if paymentDate != nil {
		result, err := s.DB.Exec(ctx, `
      UPDATE salary_records SET status = $1, payment_date = $2 WHERE id = $3 AND status = $4
    `, to, *paymentDate, salaryID, from)
		if err != nil {
			return err
		}
		tag = result.RowsAffected()
	} else {
		result, err := s.DB.Exec(ctx, `
      UPDATE salary_records SET status = $1 WHERE id = $2 AND status = $3
    `, to, salaryID, from)
		if err != nil {
			return err
		}
		tag = result.RowsAffected()
	}
	if tag > 0 {
		return nil
	}

	var current string
	err := s.DB.QueryRow(ctx, "SELECT status FROM salary_records WHERE id = $1", salaryID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrInvalidTransition
}

func (s *Store) SlipData(ctx context.Context, salaryID string) (SlipData, error) {
	var data SlipData
	err := s.DB.QueryRow(ctx, `
    SELECT st.full_name, COALESCE(st.email, ''), sr.month, sr.base_amount, sr.adjustments,
           sr.total_amount, sr.currency, sr.status, sr.payment_date
    FROM salary_records sr
    JOIN staff st ON sr.staff_id = st.id
    WHERE sr.id = $1
  `, salaryID).Scan(&data.StaffName, &data.StaffEmail, &data.Month, &data.BaseAmount, &data.Adjustments,
		&data.TotalAmount, &data.Currency, &data.Status, &data.PaymentDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return data, ErrNotFound
	}
	return data, err
}
