package billinghandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"madrasa/internal/domain/audit"
	"madrasa/internal/domain/auth"
	"madrasa/internal/domain/billing"
	"madrasa/internal/transport/http/api"
	"madrasa/internal/transport/http/middleware"
	"madrasa/internal/transport/http/shared"
)

var paymentMethods = []string{"cash", "transfer", "card"}

type Handler struct {
	Store           *billing.Store
	DefaultCurrency string
	Perms           middleware.PermissionStore
	Audit           *audit.Service
}

func NewHandler(store *billing.Store, defaultCurrency string, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{Store: store, DefaultCurrency: defaultCurrency, Perms: perms, Audit: auditSvc}
}

type feeSchedulePayload struct {
	HalaqaID      string  `json:"halaqaId"`
	MonthlyAmount float64 `json:"monthlyAmount"`
	Currency      string  `json:"currency"`
}

type generatePayload struct {
	Month string `json:"month"`
}

type paymentPayload struct {
	Amount float64 `json:"amount"`
	Method string  `json:"method"`
	PaidAt string  `json:"paidAt"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/billing", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermBillingWrite, h.Perms)).Post("/fee-schedules", h.handleUpsertFeeSchedule)
		r.With(middleware.RequirePermission(auth.PermBillingRun, h.Perms)).Post("/run", h.handleGenerate)
		r.With(middleware.RequirePermission(auth.PermBillingRead, h.Perms)).Get("/invoices", h.handleInvoices)
		r.With(middleware.RequirePermission(auth.PermBillingWrite, h.Perms)).Post("/invoices/{invoiceID}/payments", h.handleRecordPayment)
	})
}

func (h *Handler) handleUpsertFeeSchedule(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload feeSchedulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("halaqaId", payload.HalaqaID, "is required")
	v.Positive("monthlyAmount", payload.MonthlyAmount, "must be greater than zero")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	currency := strings.ToUpper(strings.TrimSpace(payload.Currency))
	if currency == "" {
		currency = h.DefaultCurrency
	}

	id, err := h.Store.UpsertFeeSchedule(r.Context(), payload.HalaqaID, payload.MonthlyAmount, currency)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "fee_schedule_failed", "failed to save fee schedule", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "billing.fee_schedule", "halaqa", payload.HalaqaID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		slog.Warn("audit record failed", "action", "billing.fee_schedule", "err", err)
	}
	api.Success(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload generatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Month("month", payload.Month)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	result, err := h.Store.GenerateMonth(r.Context(), payload.Month)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "billing_run_failed", "failed to generate invoices", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "billing.run", "billing_month", payload.Month, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, result); err != nil {
		slog.Warn("audit record failed", "action", "billing.run", "err", err)
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleInvoices(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	status := r.URL.Query().Get("status")

	v := shared.NewValidator()
	v.Month("month", month)
	if status != "" {
		v.Enum("status", status, []string{billing.InvoiceStatusUnpaid, billing.InvoiceStatusPartial, billing.InvoiceStatusPaid}, "must be one of unpaid, partial, paid")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	invoices, err := h.Store.Invoices(r.Context(), month, status)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "invoices_failed", "failed to list invoices", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, invoices, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	invoiceID := chi.URLParam(r, "invoiceID")

	var payload paymentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Positive("amount", payload.Amount, "must be greater than zero")
	v.Enum("method", payload.Method, paymentMethods, "must be one of cash, transfer, card")
	paidAt := time.Now()
	if payload.PaidAt != "" {
		parsed, ok := v.Date("paidAt", payload.PaidAt)
		if ok {
			paidAt = parsed
		}
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	paymentID, err := h.Store.RecordPayment(r.Context(), invoiceID, payload.Amount, payload.Method, paidAt)
	if errors.Is(err, billing.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "invoice not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "payment_failed", "failed to record payment", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "billing.payment", "invoice", invoiceID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		slog.Warn("audit record failed", "action", "billing.payment", "err", err)
	}
	api.Created(w, map[string]string{"paymentId": paymentID}, middleware.GetRequestID(r.Context()))
}
