package staffhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"madrasa/internal/domain/audit"
	"madrasa/internal/domain/auth"
	"madrasa/internal/transport/http/api"
	"madrasa/internal/transport/http/middleware"
	"madrasa/internal/transport/http/shared"
)

type Handler struct {
	DB    *pgxpool.Pool
	Perms middleware.PermissionStore
	Audit *audit.Service
}

func NewHandler(db *pgxpool.Pool, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{DB: db, Perms: perms, Audit: auditSvc}
}

type StaffMember struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Position string `json:"position"`
	Status   string `json:"status"`
}

type staffPayload struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Position string `json:"position"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/staff", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermStaffRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermStaffWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermStaffRead, h.Perms)).Get("/{staffID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermStaffWrite, h.Perms)).Put("/{staffID}", h.handleUpdate)
		r.With(middleware.RequirePermission(auth.PermStaffWrite, h.Perms)).Post("/{staffID}/deactivate", h.handleDeactivate)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 50, 200)
	rows, err := h.DB.Query(r.Context(), `
    SELECT id, full_name, COALESCE(email, ''), COALESCE(phone, ''), position, status
    FROM staff
    ORDER BY full_name
    LIMIT $1 OFFSET $2
  `, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "staff_list_failed", "failed to list staff", middleware.GetRequestID(r.Context()))
		return
	}
	defer rows.Close()

	var out []StaffMember
	for rows.Next() {
		var member StaffMember
		if err := rows.Scan(&member.ID, &member.FullName, &member.Email, &member.Phone, &member.Position, &member.Status); err != nil {
			api.Fail(w, http.StatusInternalServerError, "staff_list_failed", "failed to list staff", middleware.GetRequestID(r.Context()))
			return
		}
		out = append(out, member)
	}
	api.Success(w, out, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload staffPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("fullName", payload.FullName, "is required")
	v.Required("position", payload.Position, "is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	var id string
	err := h.DB.QueryRow(r.Context(), `
    INSERT INTO staff (full_name, email, phone, position, status)
    VALUES ($1,$2,$3,$4,'active')
    RETURNING id
  `, strings.TrimSpace(payload.FullName), payload.Email, payload.Phone, payload.Position).Scan(&id)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "staff_create_failed", "failed to create staff member", middleware.GetRequestID(r.Context()))
		return
	}

	h.record(r, user.UserID, "staff.create", id, payload)
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	staffID := chi.URLParam(r, "staffID")
	var member StaffMember
	err := h.DB.QueryRow(r.Context(), `
    SELECT id, full_name, COALESCE(email, ''), COALESCE(phone, ''), position, status
    FROM staff
    WHERE id = $1
  `, staffID).Scan(&member.ID, &member.FullName, &member.Email, &member.Phone, &member.Position, &member.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		api.Fail(w, http.StatusNotFound, "not_found", "staff member not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "staff_get_failed", "failed to load staff member", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, member, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	staffID := chi.URLParam(r, "staffID")

	var payload staffPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("fullName", payload.FullName, "is required")
	v.Required("position", payload.Position, "is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	tag, err := h.DB.Exec(r.Context(), `
    UPDATE staff SET full_name = $1, email = $2, phone = $3, position = $4
    WHERE id = $5
  `, strings.TrimSpace(payload.FullName), payload.Email, payload.Phone, payload.Position, staffID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "staff_update_failed", "failed to update staff member", middleware.GetRequestID(r.Context()))
		return
	}
	if tag.RowsAffected() == 0 {
		api.Fail(w, http.StatusNotFound, "not_found", "staff member not found", middleware.GetRequestID(r.Context()))
		return
	}

	h.record(r, user.UserID, "staff.update", staffID, payload)
	api.Success(w, map[string]string{"id": staffID}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	staffID := chi.URLParam(r, "staffID")

	tag, err := h.DB.Exec(r.Context(), "UPDATE staff SET status = 'inactive' WHERE id = $1", staffID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "staff_update_failed", "failed to deactivate staff member", middleware.GetRequestID(r.Context()))
		return
	}
	if tag.RowsAffected() == 0 {
		api.Fail(w, http.StatusNotFound, "not_found", "staff member not found", middleware.GetRequestID(r.Context()))
		return
	}

	h.record(r, user.UserID, "staff.deactivate", staffID, nil)
	api.Success(w, map[string]string{"status": "inactive"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) record(r *http.Request, actorID, action, entityID string, after any) {
	if err := h.Audit.Record(r.Context(), actorID, action, "staff", entityID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, after); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
