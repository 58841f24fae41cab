package studentshandler

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

type Student struct {
	ID            string `json:"id"`
	FullName      string `json:"fullName"`
	GuardianName  string `json:"guardianName"`
	GuardianPhone string `json:"guardianPhone"`
	Status        string `json:"status"`
}

type studentPayload struct {
	FullName      string `json:"fullName"`
	GuardianName  string `json:"guardianName"`
	GuardianPhone string `json:"guardianPhone"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/students", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermHalaqaRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermHalaqaWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermHalaqaRead, h.Perms)).Get("/{studentID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermHalaqaWrite, h.Perms)).Put("/{studentID}", h.handleUpdate)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 50, 200)
	rows, err := h.DB.Query(r.Context(), `
    SELECT id, full_name, COALESCE(guardian_name, ''), COALESCE(guardian_phone, ''), status
    FROM students
    ORDER BY full_name
    LIMIT $1 OFFSET $2
  `, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "students_list_failed", "failed to list students", middleware.GetRequestID(r.Context()))
		return
	}
	defer rows.Close()

	var out []Student
	for rows.Next() {
		var student Student
		if err := rows.Scan(&student.ID, &student.FullName, &student.GuardianName, &student.GuardianPhone, &student.Status); err != nil {
			api.Fail(w, http.StatusInternalServerError, "students_list_failed", "failed to list students", middleware.GetRequestID(r.Context()))
			return
		}
		out = append(out, student)
	}
	api.Success(w, out, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload studentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("fullName", payload.FullName, "is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	var id string
	err := h.DB.QueryRow(r.Context(), `
    INSERT INTO students (full_name, guardian_name, guardian_phone, status)
    VALUES ($1,$2,$3,'active')
    RETURNING id
  `, strings.TrimSpace(payload.FullName), payload.GuardianName, payload.GuardianPhone).Scan(&id)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "student_create_failed", "failed to create student", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "student.create", "student", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		slog.Warn("audit record failed", "action", "student.create", "err", err)
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	var student Student
	err := h.DB.QueryRow(r.Context(), `
    SELECT id, full_name, COALESCE(guardian_name, ''), COALESCE(guardian_phone, ''), status
    FROM students
    WHERE id = $1
  `, studentID).Scan(&student.ID, &student.FullName, &student.GuardianName, &student.GuardianPhone, &student.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		api.Fail(w, http.StatusNotFound, "not_found", "student not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "student_get_failed", "failed to load student", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, student, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	studentID := chi.URLParam(r, "studentID")

	var payload studentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("fullName", payload.FullName, "is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	tag, err := h.DB.Exec(r.Context(), `
    UPDATE students SET full_name = $1, guardian_name = $2, guardian_phone = $3
    WHERE id = $4
  `, strings.TrimSpace(payload.FullName), payload.GuardianName, payload.GuardianPhone, studentID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "student_update_failed", "failed to update student", middleware.GetRequestID(r.Context()))
		return
	}
	if tag.RowsAffected() == 0 {
		api.Fail(w, http.StatusNotFound, "not_found", "student not found", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "student.update", "student", studentID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		slog.Warn("audit record failed", "action", "student.update", "err", err)
	}
	api.Success(w, map[string]string{"id": studentID}, middleware.GetRequestID(r.Context()))
}
