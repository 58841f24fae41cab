package progresshandler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"madrasa/internal/domain/audit"
	"madrasa/internal/domain/auth"
	"madrasa/internal/transport/http/api"
	"madrasa/internal/transport/http/middleware"
	"madrasa/internal/transport/http/shared"
)

var entryKinds = []string{"memorization", "revision", "tajweed"}

var grades = []string{"excellent", "good", "fair", "repeat"}

// Points awarded per graded entry. Repeat earns nothing.
var gradePoints = map[string]int{
	"excellent": 10,
	"good":      7,
	"fair":      4,
	"repeat":    0,
}

type Handler struct {
	DB    *pgxpool.Pool
	Perms middleware.PermissionStore
	Audit *audit.Service
}

func NewHandler(db *pgxpool.Pool, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{DB: db, Perms: perms, Audit: auditSvc}
}

type entryPayload struct {
	StudentID string `json:"studentId"`
	HalaqaID  string `json:"halaqaId"`
	Kind      string `json:"kind"`
	Surah     int    `json:"surah"`
	FromAyah  int    `json:"fromAyah"`
	ToAyah    int    `json:"toAyah"`
	Grade     string `json:"grade"`
	Note      string `json:"note"`
}

type Entry struct {
	ID          string `json:"id"`
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	Kind        string `json:"kind"`
	Surah       int    `json:"surah"`
	FromAyah    int    `json:"fromAyah"`
	ToAyah      int    `json:"toAyah"`
	Grade       string `json:"grade"`
	Points      int    `json:"points"`
	Note        string `json:"note"`
	RecordedAt  string `json:"recordedAt"`
}

type LeaderboardRow struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	Points      int    `json:"points"`
	Entries     int    `json:"entries"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/progress", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermProgressRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermProgressWrite, h.Perms)).Post("/", h.handleRecord)
		r.With(middleware.RequirePermission(auth.PermProgressRead, h.Perms)).Get("/leaderboard", h.handleLeaderboard)
	})
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload entryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("studentId", payload.StudentID, "is required")
	v.Required("halaqaId", payload.HalaqaID, "is required")
	v.Enum("kind", payload.Kind, entryKinds, "must be one of memorization, revision, tajweed")
	v.Enum("grade", payload.Grade, grades, "must be one of excellent, good, fair, repeat")
	if payload.Surah < 1 || payload.Surah > 114 {
		v.Add("surah", "must be between 1 and 114")
	}
	if payload.FromAyah < 1 {
		v.Add("fromAyah", "must be at least 1")
	}
	if payload.ToAyah < payload.FromAyah {
		v.Add("toAyah", "must not be before fromAyah")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	points := gradePoints[payload.Grade]
	var id string
	err := h.DB.QueryRow(r.Context(), `
    INSERT INTO progress_entries (student_id, halaqa_id, kind, surah, from_ayah, to_ayah, grade, points, note, recorded_by)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    RETURNING id
  `, payload.StudentID, payload.HalaqaID, payload.Kind, payload.Surah, payload.FromAyah, payload.ToAyah, payload.Grade, points, payload.Note, user.UserID).Scan(&id)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "progress_record_failed", "failed to record progress", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "progress.record", "student", payload.StudentID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		slog.Warn("audit record failed", "action", "progress.record", "err", err)
	}
	api.Created(w, map[string]any{"id": id, "points": points}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("studentId")
	halaqaID := r.URL.Query().Get("halaqaId")
	if studentID == "" && halaqaID == "" {
		api.Fail(w, http.StatusBadRequest, "validation_error", "studentId or halaqaId is required", middleware.GetRequestID(r.Context()))
		return
	}
	page := shared.ParsePagination(r, 50, 200)

	query := `
    SELECT p.id, p.student_id, s.full_name, p.kind, p.surah, p.from_ayah, p.to_ayah, p.grade, p.points, COALESCE(p.note, ''), p.recorded_at::text
    FROM progress_entries p
    JOIN students s ON s.id = p.student_id
    WHERE 1=1`
	args := []any{}
	if studentID != "" {
		args = append(args, studentID)
		query += ` AND p.student_id = $1`
	}
	if halaqaID != "" {
		args = append(args, halaqaID)
		if len(args) == 1 {
			query += ` AND p.halaqa_id = $1`
		} else {
			query += ` AND p.halaqa_id = $2`
		}
	}
	args = append(args, page.Limit, page.Offset)
	query += ` ORDER BY p.recorded_at DESC`
	if len(args) == 3 {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $3 OFFSET $4`
	}

	rows, err := h.DB.Query(r.Context(), query, args...)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "progress_list_failed", "failed to list progress", middleware.GetRequestID(r.Context()))
		return
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.StudentID, &entry.StudentName, &entry.Kind, &entry.Surah, &entry.FromAyah, &entry.ToAyah, &entry.Grade, &entry.Points, &entry.Note, &entry.RecordedAt); err != nil {
			api.Fail(w, http.StatusInternalServerError, "progress_list_failed", "failed to list progress", middleware.GetRequestID(r.Context()))
			return
		}
		out = append(out, entry)
	}
	api.Success(w, out, middleware.GetRequestID(r.Context()))
}

// handleLeaderboard ranks students of a halaqa by points earned in a month.
func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	halaqaID := r.URL.Query().Get("halaqaId")
	month := r.URL.Query().Get("month")

	v := shared.NewValidator()
	v.Required("halaqaId", halaqaID, "is required")
	v.Month("month", month)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	rows, err := h.DB.Query(r.Context(), `
    SELECT p.student_id, s.full_name, COALESCE(SUM(p.points), 0), COUNT(*)
    FROM progress_entries p
    JOIN students s ON s.id = p.student_id
    WHERE p.halaqa_id = $1 AND to_char(p.recorded_at, 'YYYY-MM') = $2
    GROUP BY p.student_id, s.full_name
    ORDER BY COALESCE(SUM(p.points), 0) DESC, s.full_name
    LIMIT 20
  `, halaqaID, month)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "leaderboard_failed", "failed to build leaderboard", middleware.GetRequestID(r.Context()))
		return
	}
	defer rows.Close()

	var out []LeaderboardRow
	for rows.Next() {
		var row LeaderboardRow
		if err := rows.Scan(&row.StudentID, &row.StudentName, &row.Points, &row.Entries); err != nil {
			api.Fail(w, http.StatusInternalServerError, "leaderboard_failed", "failed to build leaderboard", middleware.GetRequestID(r.Context()))
			return
		}
		out = append(out, row)
	}
	api.Success(w, out, middleware.GetRequestID(r.Context()))
}
