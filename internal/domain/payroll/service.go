package payroll

import (
	"context"
	"time"
)

// Service carries the payroll policy that the store alone does not: the
// configured clamp behavior and the school name stamped on slips.
type Service struct {
	store         *Store
	schoolName    string
	clampNegative bool
}

func NewService(store *Store, schoolName string, clampNegative bool) *Service {
	return &Service{store: store, schoolName: schoolName, clampNegative: clampNegative}
}

func (s *Service) Store() *Store {
	return s.store
}

func (s *Service) GenerateMonthlyPayroll(ctx context.Context, month string) (GenerationResult, error) {
	return s.store.GenerateMonth(ctx, month, s.clampNegative)
}

func (s *Service) ApproveSalary(ctx context.Context, salaryID string) error {
	return s.store.Approve(ctx, salaryID)
}

func (s *Service) MarkAsPaid(ctx context.Context, salaryID string, paymentDate time.Time) error {
	return s.store.MarkPaid(ctx, salaryID, paymentDate)
}

func (s *Service) SalarySlipPDF(ctx context.Context, salaryID string) ([]byte, error) {
	data, err := s.store.SlipData(ctx, salaryID)
	if err != nil {
		return nil, err
	}
	return RenderSlip(s.schoolName, data)
}
