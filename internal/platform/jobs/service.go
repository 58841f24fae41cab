package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"madrasa/internal/domain/billing"
	"madrasa/internal/platform/config"
	"madrasa/internal/platform/sms"
)

const JobFeeReminders = "fee_reminders"

type Service struct {
	DB      *pgxpool.Pool
	Cfg     config.Config
	Billing *billing.Store
	SMS     sms.Sender
	queue   chan job
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(db *pgxpool.Pool, cfg config.Config, billingStore *billing.Store, sender sms.Sender) *Service {
	return &Service{
		DB:      db,
		Cfg:     cfg,
		Billing: billingStore,
		SMS:     sender,
		queue:   make(chan job, 128),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Cfg.FeeReminderInterval > 0 {
		go s.scheduleFeeReminders(ctx, s.Cfg.FeeReminderInterval)
	}
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1,$2)
    RETURNING id
  `, j.Type, "running").Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "err", err)
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}

func (s *Service) scheduleFeeReminders(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			month := time.Now().Format("2006-01")
			s.Enqueue(JobFeeReminders, func(ctx context.Context) (any, error) {
				return s.SendFeeReminders(ctx, month)
			})
		}
	}
}

// SendFeeReminders texts every guardian with an open invoice for the month.
// Per-invoice failures are counted, not fatal.
func (s *Service) SendFeeReminders(ctx context.Context, month string) (any, error) {
	invoices, err := s.Billing.UnpaidForMonth(ctx, month)
	if err != nil {
		return nil, err
	}

	sent, failed, skipped := 0, 0, 0
	for _, inv := range invoices {
		if inv.GuardianTel == "" {
			skipped++
			continue
		}
		body := fmt.Sprintf("%s: tuition for %s (%s) is outstanding, %.2f remaining.",
			s.Cfg.SchoolName, inv.StudentName, inv.Month, inv.Amount-inv.PaidAmount)
		if err := s.SMS.Send(ctx, inv.GuardianTel, body); err != nil {
			slog.Warn("fee reminder send failed", "invoice", inv.ID, "err", err)
			failed++
			continue
		}
		sent++
	}
	return map[string]any{"month": month, "sent": sent, "failed": failed, "skipped": skipped}, nil
}
