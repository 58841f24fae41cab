package halaqahandler

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
	"madrasa/internal/platform/video"
	"madrasa/internal/transport/http/api"
	"madrasa/internal/transport/http/middleware"
	"madrasa/internal/transport/http/shared"
)

var tracks = []string{"memorization", "tajweed", "recitation", "ijazah"}

type Handler struct {
	DB    *pgxpool.Pool
	Video *video.TokenService
	Perms middleware.PermissionStore
	Audit *audit.Service
}

func NewHandler(db *pgxpool.Pool, videoSvc *video.TokenService, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{DB: db, Video: videoSvc, Perms: perms, Audit: auditSvc}
}

type Halaqa struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Track        string `json:"track"`
	TeacherID    string `json:"teacherId"`
	TeacherName  string `json:"teacherName"`
	ScheduleNote string `json:"scheduleNote"`
	Status       string `json:"status"`
	Enrolled     int    `json:"enrolled"`
}

type halaqaPayload struct {
	Name         string `json:"name"`
	Track        string `json:"track"`
	TeacherID    string `json:"teacherId"`
	ScheduleNote string `json:"scheduleNote"`
}

type enrollPayload struct {
	StudentID       string  `json:"studentId"`
	MonthlyDiscount float64 `json:"monthlyDiscount"`
}

type RosterEntry struct {
	StudentID       string  `json:"studentId"`
	StudentName     string  `json:"studentName"`
	MonthlyDiscount float64 `json:"monthlyDiscount"`
	EnrolledAt      string  `json:"enrolledAt"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/halaqas", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermHalaqaRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermHalaqaWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermHalaqaWrite, h.Perms)).Put("/{halaqaID}", h.handleUpdate)
		r.With(middleware.RequirePermission(auth.PermHalaqaRead, h.Perms)).Get("/{halaqaID}/roster", h.handleRoster)
		r.With(middleware.RequirePermission(auth.PermHalaqaWrite, h.Perms)).Post("/{halaqaID}/enroll", h.handleEnroll)
		r.With(middleware.RequirePermission(auth.PermHalaqaWrite, h.Perms)).Post("/{halaqaID}/unenroll", h.handleUnenroll)
		r.With(middleware.RequirePermission(auth.PermHalaqaRead, h.Perms)).Post("/{halaqaID}/live-token", h.handleLiveToken)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query(r.Context(), `
    SELECT h.id, h.name, h.track, h.teacher_id, st.full_name, COALESCE(h.schedule_note, ''), h.status,
           (SELECT COUNT(*) FROM enrollments e WHERE e.halaqa_id = h.id AND e.removed_at IS NULL)
    FROM halaqas h
    JOIN staff st ON st.id = h.teacher_id
    ORDER BY h.name
  `)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "halaqa_list_failed", "failed to list halaqas", middleware.GetRequestID(r.Context()))
		return
	}
	defer rows.Close()

	var out []Halaqa
	for rows.Next() {
		var hq Halaqa
		if err := rows.Scan(&hq.ID, &hq.Name, &hq.Track, &hq.TeacherID, &hq.TeacherName, &hq.ScheduleNote, &hq.Status, &hq.Enrolled); err != nil {
			api.Fail(w, http.StatusInternalServerError, "halaqa_list_failed", "failed to list halaqas", middleware.GetRequestID(r.Context()))
			return
		}
		out = append(out, hq)
	}
	api.Success(w, out, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload halaqaPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("name", payload.Name, "is required")
	v.Required("teacherId", payload.TeacherID, "is required")
	v.Enum("track", payload.Track, tracks, "must be one of memorization, tajweed, recitation, ijazah")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	var id string
	err := h.DB.QueryRow(r.Context(), `
    INSERT INTO halaqas (name, track, teacher_id, schedule_note, status)
    VALUES ($1,$2,$3,$4,'active')
    RETURNING id
  `, strings.TrimSpace(payload.Name), payload.Track, payload.TeacherID, payload.ScheduleNote).Scan(&id)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "halaqa_create_failed", "failed to create halaqa", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "halaqa.create", "halaqa", id, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		slog.Warn("audit record failed", "action", "halaqa.create", "err", err)
	}
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	halaqaID := chi.URLParam(r, "halaqaID")

	var payload halaqaPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("name", payload.Name, "is required")
	v.Required("teacherId", payload.TeacherID, "is required")
	v.Enum("track", payload.Track, tracks, "must be one of memorization, tajweed, recitation, ijazah")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	tag, err := h.DB.Exec(r.Context(), `
    UPDATE halaqas SET name = $1, track = $2, teacher_id = $3, schedule_note = $4
    WHERE id = $5
  `, strings.TrimSpace(payload.Name), payload.Track, payload.TeacherID, payload.ScheduleNote, halaqaID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "halaqa_update_failed", "failed to update halaqa", middleware.GetRequestID(r.Context()))
		return
	}
	if tag.RowsAffected() == 0 {
		api.Fail(w, http.StatusNotFound, "not_found", "halaqa not found", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "halaqa.update", "halaqa", halaqaID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		slog.Warn("audit record failed", "action", "halaqa.update", "err", err)
	}
	api.Success(w, map[string]string{"id": halaqaID}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRoster(w http.ResponseWriter, r *http.Request) {
	halaqaID := chi.URLParam(r, "halaqaID")
	rows, err := h.DB.Query(r.Context(), `
    SELECT e.student_id, s.full_name, e.monthly_discount, e.enrolled_at::text
    FROM enrollments e
    JOIN students s ON s.id = e.student_id
    WHERE e.halaqa_id = $1 AND e.removed_at IS NULL
    ORDER BY s.full_name
  `, halaqaID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "roster_failed", "failed to load roster", middleware.GetRequestID(r.Context()))
		return
	}
	defer rows.Close()

	var out []RosterEntry
	for rows.Next() {
		var entry RosterEntry
		if err := rows.Scan(&entry.StudentID, &entry.StudentName, &entry.MonthlyDiscount, &entry.EnrolledAt); err != nil {
			api.Fail(w, http.StatusInternalServerError, "roster_failed", "failed to load roster", middleware.GetRequestID(r.Context()))
			return
		}
		out = append(out, entry)
	}
	api.Success(w, out, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	halaqaID := chi.URLParam(r, "halaqaID")

	var payload enrollPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("studentId", payload.StudentID, "is required")
	v.NonNegative("monthlyDiscount", payload.MonthlyDiscount, "must not be negative")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	// Re-enrolling a removed student revives the row instead of duplicating it.
	_, err := h.DB.Exec(r.Context(), `
    INSERT INTO enrollments (halaqa_id, student_id, monthly_discount, enrolled_at)
    VALUES ($1,$2,$3,NOW())
    ON CONFLICT (halaqa_id, student_id)
    DO UPDATE SET monthly_discount = EXCLUDED.monthly_discount, removed_at = NULL
  `, halaqaID, payload.StudentID, payload.MonthlyDiscount)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "enroll_failed", "failed to enroll student", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "halaqa.enroll", "halaqa", halaqaID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		slog.Warn("audit record failed", "action", "halaqa.enroll", "err", err)
	}
	api.Success(w, map[string]string{"halaqaId": halaqaID, "studentId": payload.StudentID}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUnenroll(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	halaqaID := chi.URLParam(r, "halaqaID")

	var payload enrollPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if payload.StudentID == "" {
		api.Fail(w, http.StatusBadRequest, "validation_error", "studentId is required", middleware.GetRequestID(r.Context()))
		return
	}

	tag, err := h.DB.Exec(r.Context(), `
    UPDATE enrollments SET removed_at = NOW()
    WHERE halaqa_id = $1 AND student_id = $2 AND removed_at IS NULL
  `, halaqaID, payload.StudentID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "unenroll_failed", "failed to unenroll student", middleware.GetRequestID(r.Context()))
		return
	}
	if tag.RowsAffected() == 0 {
		api.Fail(w, http.StatusNotFound, "not_found", "enrollment not found", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "halaqa.unenroll", "halaqa", halaqaID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		slog.Warn("audit record failed", "action", "halaqa.unenroll", "err", err)
	}
	api.Success(w, map[string]string{"halaqaId": halaqaID, "studentId": payload.StudentID}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleLiveToken(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	halaqaID := chi.URLParam(r, "halaqaID")

	var name, teacherUserID string
	err := h.DB.QueryRow(r.Context(), `
    SELECT h.name, COALESCE(st.user_id::text, '')
    FROM halaqas h
    JOIN staff st ON st.id = h.teacher_id
    WHERE h.id = $1
  `, halaqaID).Scan(&name, &teacherUserID)
	if errors.Is(err, pgx.ErrNoRows) {
		api.Fail(w, http.StatusNotFound, "not_found", "halaqa not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "live_token_failed", "failed to issue room token", middleware.GetRequestID(r.Context()))
		return
	}

	moderator := user.UserID == teacherUserID ||
		user.RoleName == auth.RoleAdmin || user.RoleName == auth.RoleManager

	token, err := h.Video.RoomToken("halaqa-"+halaqaID, user.UserID, name, moderator)
	if errors.Is(err, video.ErrNotConfigured) {
		api.Fail(w, http.StatusServiceUnavailable, "video_unavailable", "live sessions are not configured", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "live_token_failed", "failed to issue room token", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"token": token, "room": "halaqa-" + halaqaID, "moderator": moderator}, middleware.GetRequestID(r.Context()))
}
