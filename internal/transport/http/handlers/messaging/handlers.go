package messaginghandler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"madrasa/internal/domain/audit"
	"madrasa/internal/domain/auth"
	"madrasa/internal/platform/jobs"
	"madrasa/internal/platform/sms"
	"madrasa/internal/transport/http/api"
	"madrasa/internal/transport/http/middleware"
	"madrasa/internal/transport/http/shared"
)

type Handler struct {
	SMS   sms.Sender
	Jobs  *jobs.Service
	Perms middleware.PermissionStore
	Audit *audit.Service
}

func NewHandler(sender sms.Sender, jobSvc *jobs.Service, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{SMS: sender, Jobs: jobSvc, Perms: perms, Audit: auditSvc}
}

type sendPayload struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type reminderPayload struct {
	Month string `json:"month"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/messaging", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermMessagingSend, h.Perms)).Post("/send", h.handleSend)
		r.With(middleware.RequirePermission(auth.PermMessagingSend, h.Perms)).Post("/fee-reminders", h.handleFeeReminders)
	})
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload sendPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("to", payload.To, "is required")
	v.Required("body", payload.Body, "is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	if err := h.SMS.Send(r.Context(), payload.To, payload.Body); err != nil {
		api.Fail(w, http.StatusBadGateway, "sms_send_failed", "failed to send message", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "messaging.send", "sms", payload.To, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, map[string]string{"to": payload.To}); err != nil {
		slog.Warn("audit record failed", "action", "messaging.send", "err", err)
	}
	api.Success(w, map[string]string{"to": payload.To, "status": "sent"}, middleware.GetRequestID(r.Context()))
}

// handleFeeReminders runs the reminder batch synchronously through the job
// runner, so manual runs land in job_runs alongside scheduled ones.
func (h *Handler) handleFeeReminders(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload reminderPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Month("month", payload.Month)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	result, err := h.Jobs.RunNow(r.Context(), jobs.JobFeeReminders, func(ctx context.Context) (any, error) {
		return h.Jobs.SendFeeReminders(ctx, payload.Month)
	})
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "reminders_failed", "failed to send fee reminders", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "messaging.fee_reminders", "billing_month", payload.Month, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, result); err != nil {
		slog.Warn("audit record failed", "action", "messaging.fee_reminders", "err", err)
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}
