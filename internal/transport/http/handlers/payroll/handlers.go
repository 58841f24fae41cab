package payrollhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"madrasa/internal/domain/audit"
	"madrasa/internal/domain/auth"
	"madrasa/internal/domain/payroll"
	"madrasa/internal/transport/http/api"
	"madrasa/internal/transport/http/middleware"
	"madrasa/internal/transport/http/shared"
)

type Handler struct {
	Service *payroll.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
}

func NewHandler(service *payroll.Service, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc}
}

type contractPayload struct {
	StaffID    string  `json:"staffId"`
	BaseSalary float64 `json:"baseSalary"`
	Currency   string  `json:"currency"`
	Type       string  `json:"type"`
	StartDate  string  `json:"startDate"`
}

type adjustmentPayload struct {
	StaffID     string  `json:"staffId"`
	Month       string  `json:"month"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

type runPayload struct {
	Month string `json:"month"`
}

type payPayload struct {
	PaymentDate string `json:"paymentDate"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payroll", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/contracts", h.handleListContracts)
		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Post("/contracts", h.handleUpsertContract)
		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Post("/contracts/{staffID}/deactivate", h.handleDeactivateContract)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/adjustments", h.handleListAdjustments)
		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Post("/adjustments", h.handleAddAdjustment)
		r.With(middleware.RequirePermission(auth.PermPayrollRun, h.Perms)).Post("/run", h.handleRun)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/salaries", h.handleListSalaries)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/staff/{staffID}/salaries", h.handleStaffSalaries)
		r.With(middleware.RequirePermission(auth.PermPayrollApprove, h.Perms)).Post("/salaries/{salaryID}/approve", h.handleApprove)
		r.With(middleware.RequirePermission(auth.PermPayrollPay, h.Perms)).Post("/salaries/{salaryID}/pay", h.handleMarkPaid)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/salaries/{salaryID}/slip", h.handleDownloadSlip)
	})
}

func (h *Handler) handleListContracts(w http.ResponseWriter, r *http.Request) {
	contracts, err := h.Service.Store().ListContracts(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "contracts_list_failed", "failed to list contracts", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, contracts, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpsertContract(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload contractPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("staffId", payload.StaffID, "is required")
	v.Positive("baseSalary", payload.BaseSalary, "must be positive")
	v.Required("currency", payload.Currency, "is required")
	v.Enum("type", payload.Type, []string{payroll.ContractTypeFullTime, payroll.ContractTypePartTime}, "unknown contract type")
	startDate, _ := v.Date("startDate", payload.StartDate)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	contractType := strings.ToLower(payload.Type)
	if contractType == "" {
		contractType = payroll.ContractTypeFullTime
	}

	id, err := h.Service.Store().UpsertContract(r.Context(), payload.StaffID, payload.BaseSalary, strings.ToUpper(payload.Currency), contractType, startDate)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "contract_upsert_failed", "failed to save contract", middleware.GetRequestID(r.Context()))
		return
	}

	h.record(r, user.UserID, "payroll.contract.upsert", "staff_contract", id, payload)
	api.Success(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeactivateContract(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	staffID := chi.URLParam(r, "staffID")

	if err := h.Service.Store().SetContractStatus(r.Context(), staffID, payroll.ContractStatusInactive); err != nil {
		if errors.Is(err, payroll.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "contract not found", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "contract_update_failed", "failed to update contract", middleware.GetRequestID(r.Context()))
		return
	}

	h.record(r, user.UserID, "payroll.contract.deactivate", "staff_contract", staffID, nil)
	api.Success(w, map[string]string{"status": payroll.ContractStatusInactive}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListAdjustments(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	staffID := r.URL.Query().Get("staffId")
	if !payroll.ValidMonth(month) {
		api.Fail(w, http.StatusBadRequest, "invalid_month", "month must be in YYYY-MM format", middleware.GetRequestID(r.Context()))
		return
	}

	var (
		adjustments []payroll.Adjustment
		err         error
	)
	if staffID != "" {
		adjustments, err = h.Service.Store().ListAdjustments(r.Context(), staffID, month)
	} else {
		adjustments, err = h.Service.Store().ListMonthAdjustments(r.Context(), month)
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "adjustments_list_failed", "failed to list adjustments", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, adjustments, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAddAdjustment(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload adjustmentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("staffId", payload.StaffID, "is required")
	v.Month("month", payload.Month)
	v.Required("type", payload.Type, "is required")
	v.NonNegative("amount", payload.Amount, "must not be negative")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	id, err := h.Service.Store().AddAdjustment(r.Context(), payroll.Adjustment{
		StaffID:     payload.StaffID,
		Month:       payload.Month,
		Type:        strings.ToLower(payload.Type),
		Amount:      payload.Amount,
		Description: payload.Description,
	})
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "adjustment_create_failed", "failed to record adjustment", middleware.GetRequestID(r.Context()))
		return
	}

	h.record(r, user.UserID, "payroll.adjustment.create", "payroll_adjustment", id, payload)
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload runPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	result, err := h.Service.GenerateMonthlyPayroll(r.Context(), payload.Month)
	if err != nil {
		if errors.Is(err, payroll.ErrInvalidMonth) {
			api.Fail(w, http.StatusBadRequest, "invalid_month", "month must be in YYYY-MM format", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "payroll_run_failed", "failed to generate payroll", middleware.GetRequestID(r.Context()))
		return
	}

	h.record(r, user.UserID, "payroll.run", "payroll_month", payload.Month, result)
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListSalaries(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	status := r.URL.Query().Get("status")
	if !payroll.ValidMonth(month) {
		api.Fail(w, http.StatusBadRequest, "invalid_month", "month must be in YYYY-MM format", middleware.GetRequestID(r.Context()))
		return
	}

	salaries, err := h.Service.Store().Salaries(r.Context(), month, status)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "salaries_list_failed", "failed to list salaries", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, salaries, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleStaffSalaries(w http.ResponseWriter, r *http.Request) {
	staffID := chi.URLParam(r, "staffID")
	records, err := h.Service.Store().StaffSalaries(r.Context(), staffID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "salaries_list_failed", "failed to list salaries", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, records, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	salaryID := chi.URLParam(r, "salaryID")

	if err := h.Service.ApproveSalary(r.Context(), salaryID); err != nil {
		h.failTransition(w, r, err, "approve")
		return
	}

	h.record(r, user.UserID, "payroll.salary.approve", "salary_record", salaryID, nil)
	api.Success(w, map[string]string{"status": payroll.SalaryStatusApproved}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	salaryID := chi.URLParam(r, "salaryID")

	var payload payPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	paymentDate, _ := v.Date("paymentDate", payload.PaymentDate)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	if err := h.Service.MarkAsPaid(r.Context(), salaryID, paymentDate); err != nil {
		h.failTransition(w, r, err, "pay")
		return
	}

	h.record(r, user.UserID, "payroll.salary.pay", "salary_record", salaryID, payload)
	api.Success(w, map[string]string{"status": payroll.SalaryStatusPaid}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDownloadSlip(w http.ResponseWriter, r *http.Request) {
	salaryID := chi.URLParam(r, "salaryID")

	pdf, err := h.Service.SalarySlipPDF(r.Context(), salaryID)
	if err != nil {
		if errors.Is(err, payroll.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "salary record not found", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "slip_render_failed", "failed to render salary slip", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=salary-slip-"+salaryID+".pdf")
	_, _ = w.Write(pdf)
}

func (h *Handler) failTransition(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, payroll.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "salary record not found", middleware.GetRequestID(r.Context()))
	case errors.Is(err, payroll.ErrInvalidTransition):
		api.Fail(w, http.StatusConflict, "invalid_transition", "salary record is not in a state that allows "+action, middleware.GetRequestID(r.Context()))
	default:
		api.Fail(w, http.StatusInternalServerError, "salary_update_failed", "failed to update salary record", middleware.GetRequestID(r.Context()))
	}
}

func (h *Handler) record(r *http.Request, actorID, action, entityType, entityID string, after any) {
	if err := h.Audit.Record(r.Context(), actorID, action, entityType, entityID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, after); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
