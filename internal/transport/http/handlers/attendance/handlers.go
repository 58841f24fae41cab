package attendancehandler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"madrasa/internal/domain/audit"
	"madrasa/internal/domain/auth"
	"madrasa/internal/transport/http/api"
	"madrasa/internal/transport/http/middleware"
	"madrasa/internal/transport/http/shared"
)

var statuses = []string{"present", "absent", "late", "excused"}

type Handler struct {
	DB    *pgxpool.Pool
	Perms middleware.PermissionStore
	Audit *audit.Service
}

func NewHandler(db *pgxpool.Pool, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{DB: db, Perms: perms, Audit: auditSvc}
}

type markEntry struct {
	StudentID string `json:"studentId"`
	Status    string `json:"status"`
	Note      string `json:"note"`
}

type markPayload struct {
	HalaqaID string      `json:"halaqaId"`
	Date     string      `json:"date"`
	Entries  []markEntry `json:"entries"`
}

type Record struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	Status      string `json:"status"`
	Note        string `json:"note"`
}

type HistoryRecord struct {
	Day        string `json:"day"`
	HalaqaID   string `json:"halaqaId"`
	HalaqaName string `json:"halaqaName"`
	Status     string `json:"status"`
	Note       string `json:"note"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/attendance", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermAttendanceRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermAttendanceRead, h.Perms)).Get("/students/{studentID}", h.handleStudentHistory)
		r.With(middleware.RequirePermission(auth.PermAttendanceWrite, h.Perms)).Post("/", h.handleMark)
	})
}

// handleMark records attendance for one halaqa on one day. Marking the same
// student twice for the same day overwrites the earlier entry.
func (h *Handler) handleMark(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload markPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("halaqaId", payload.HalaqaID, "is required")
	day, _ := v.Date("date", payload.Date)
	if len(payload.Entries) == 0 {
		v.Add("entries", "must not be empty")
	}
	for _, entry := range payload.Entries {
		v.Required("entries.studentId", entry.StudentID, "is required")
		v.Enum("entries.status", entry.Status, statuses, "must be one of present, absent, late, excused")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	tx, err := h.DB.Begin(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "attendance_failed", "failed to record attendance", middleware.GetRequestID(r.Context()))
		return
	}
	defer tx.Rollback(r.Context())

	for _, entry := range payload.Entries {
		_, err := tx.Exec(r.Context(), `
      INSERT INTO attendance (halaqa_id, student_id, day, status, note, marked_by)
      VALUES ($1,$2,$3,$4,$5,$6)
      ON CONFLICT (halaqa_id, student_id, day)
      DO UPDATE SET status = EXCLUDED.status, note = EXCLUDED.note, marked_by = EXCLUDED.marked_by
    `, payload.HalaqaID, entry.StudentID, day, entry.Status, entry.Note, user.UserID)
		if err != nil {
			api.Fail(w, http.StatusInternalServerError, "attendance_failed", "failed to record attendance", middleware.GetRequestID(r.Context()))
			return
		}
	}
	if err := tx.Commit(r.Context()); err != nil {
		api.Fail(w, http.StatusInternalServerError, "attendance_failed", "failed to record attendance", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "attendance.mark", "halaqa", payload.HalaqaID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, map[string]any{"date": payload.Date, "entries": len(payload.Entries)}); err != nil {
		slog.Warn("audit record failed", "action", "attendance.mark", "err", err)
	}
	api.Success(w, map[string]any{"halaqaId": payload.HalaqaID, "date": payload.Date, "marked": len(payload.Entries)}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	halaqaID := r.URL.Query().Get("halaqaId")
	rawDate := r.URL.Query().Get("date")

	v := shared.NewValidator()
	v.Required("halaqaId", halaqaID, "is required")
	day, _ := v.Date("date", rawDate)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	rows, err := h.DB.Query(r.Context(), `
    SELECT a.student_id, s.full_name, a.status, COALESCE(a.note, '')
    FROM attendance a
    JOIN students s ON s.id = a.student_id
    WHERE a.halaqa_id = $1 AND a.day = $2
    ORDER BY s.full_name
  `, halaqaID, day)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "attendance_list_failed", "failed to list attendance", middleware.GetRequestID(r.Context()))
		return
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.StudentID, &rec.StudentName, &rec.Status, &rec.Note); err != nil {
			api.Fail(w, http.StatusInternalServerError, "attendance_list_failed", "failed to list attendance", middleware.GetRequestID(r.Context()))
			return
		}
		out = append(out, rec)
	}
	api.Success(w, out, middleware.GetRequestID(r.Context()))
}

// handleStudentHistory returns one student's attendance across halaqas,
// newest day first. Optional from/to bounds narrow the range.
func (h *Handler) handleStudentHistory(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")

	v := shared.NewValidator()
	var from, to time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, _ = v.Date("from", raw)
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, _ = v.Date("to", raw)
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	query := `
    SELECT a.day, a.halaqa_id, h.name, a.status, COALESCE(a.note, '')
    FROM attendance a
    JOIN halaqas h ON h.id = a.halaqa_id
    WHERE a.student_id = $1`
	args := []any{studentID}
	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(" AND a.day >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(" AND a.day <= $%d", len(args))
	}
	query += " ORDER BY a.day DESC"

	rows, err := h.DB.Query(r.Context(), query, args...)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "attendance_list_failed", "failed to list attendance", middleware.GetRequestID(r.Context()))
		return
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		var day time.Time
		if err := rows.Scan(&day, &rec.HalaqaID, &rec.HalaqaName, &rec.Status, &rec.Note); err != nil {
			api.Fail(w, http.StatusInternalServerError, "attendance_list_failed", "failed to list attendance", middleware.GetRequestID(r.Context()))
			return
		}
		rec.Day = day.Format("2006-01-02")
		out = append(out, rec)
	}
	api.Success(w, map[string]any{"studentId": studentID, "records": out}, middleware.GetRequestID(r.Context()))
}
