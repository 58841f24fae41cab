package authnhandler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pquerna/otp/totp"

	authcore "madrasa/internal/auth"
	"madrasa/internal/domain/audit"
	domainauth "madrasa/internal/domain/auth"
	"madrasa/internal/platform/crypto"
	"madrasa/internal/transport/http/api"
	"madrasa/internal/transport/http/middleware"
	"madrasa/internal/transport/http/shared"
)

const (
	sessionTTL  = 24 * time.Hour
	resetTTL    = time.Hour
	loginFailed = "invalid email or password"
)

type Handler struct {
	DB          *pgxpool.Pool
	Store       *domainauth.Store
	Crypto      *crypto.Service
	Audit       *audit.Service
	JWTSecret   string
	SchoolName  string
	Environment string
}

func NewHandler(db *pgxpool.Pool, store *domainauth.Store, cryptoSvc *crypto.Service, auditSvc *audit.Service, jwtSecret, schoolName, environment string) *Handler {
	return &Handler{
		DB:          db,
		Store:       store,
		Crypto:      cryptoSvc,
		Audit:       auditSvc,
		JWTSecret:   jwtSecret,
		SchoolName:  schoolName,
		Environment: environment,
	}
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TOTPCode string `json:"totpCode"`
}

type resetRequestPayload struct {
	Email string `json:"email"`
}

type resetConfirmPayload struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type mfaEnablePayload struct {
	Code string `json:"code"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)
		r.Post("/password-reset/request", h.handleResetRequest)
		r.Post("/password-reset/confirm", h.handleResetConfirm)
		r.Get("/me", h.handleMe)
		r.Post("/mfa/setup", h.handleMFASetup)
		r.Post("/mfa/enable", h.handleMFAEnable)
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("email", payload.Email, "is required")
	v.Required("password", payload.Password, "is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	user, err := h.Store.FindActiveUserByEmail(r.Context(), email)
	if errors.Is(err, pgx.ErrNoRows) {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", loginFailed, middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "login_failed", "login failed", middleware.GetRequestID(r.Context()))
		return
	}
	if err := authcore.CheckPassword(user.PasswordHash, payload.Password); err != nil {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", loginFailed, middleware.GetRequestID(r.Context()))
		return
	}

	if user.MFAEnabled {
		if payload.TOTPCode == "" {
			api.Fail(w, http.StatusUnauthorized, "mfa_required", "a one-time code is required", middleware.GetRequestID(r.Context()))
			return
		}
		secret, err := h.Crypto.DecryptString(user.MFASecretEnc)
		if err != nil || !totp.Validate(payload.TOTPCode, secret) {
			api.Fail(w, http.StatusUnauthorized, "invalid_mfa_code", "the one-time code is not valid", middleware.GetRequestID(r.Context()))
			return
		}
	}

	claims := authcore.Claims{
		UserID:    user.ID,
		RoleID:    user.RoleID,
		RoleName:  user.RoleName,
		SessionID: uuid.NewString(),
	}
	token, err := authcore.GenerateToken(h.JWTSecret, claims, sessionTTL)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "login_failed", "login failed", middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Store.CreateSession(r.Context(), user.ID, authcore.HashToken(token), time.Now().Add(sessionTTL)); err != nil {
		api.Fail(w, http.StatusInternalServerError, "login_failed", "login failed", middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Store.UpdateLastLogin(r.Context(), user.ID); err != nil {
		slog.Warn("last login update failed", "user", user.ID, "err", err)
	}
	if err := h.Audit.Record(r.Context(), user.ID, "auth.login", "user", user.ID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, nil); err != nil {
		slog.Warn("audit record failed", "action", "auth.login", "err", err)
	}

	api.Success(w, map[string]any{
		"token":     token,
		"expiresAt": time.Now().Add(sessionTTL).UTC().Format(time.RFC3339),
		"user": map[string]string{
			"id":   user.ID,
			"role": user.RoleName,
		},
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if err := h.Store.RevokeSession(r.Context(), user.UserID, authcore.HashToken(raw)); err != nil {
		api.Fail(w, http.StatusInternalServerError, "logout_failed", "logout failed", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]string{"status": "logged_out"}, middleware.GetRequestID(r.Context()))
}

// handleResetRequest always answers the same way so callers cannot probe
// which emails exist.
func (h *Handler) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var payload resetRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	response := map[string]string{"status": "ok"}
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	userID, err := h.Store.UserIDByEmail(r.Context(), email)
	if err == nil {
		token := randomToken()
		if err := h.Store.CreatePasswordReset(r.Context(), userID, authcore.HashToken(token), time.Now().Add(resetTTL)); err != nil {
			slog.Warn("password reset create failed", "err", err)
		} else if h.Environment != "production" {
			// No mail transport in non-production setups.
			response["resetToken"] = token
		}
	}
	api.Success(w, response, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var payload resetConfirmPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("token", payload.Token, "is required")
	if len(payload.NewPassword) < 8 {
		v.Add("newPassword", "must be at least 8 characters")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	tokenHash := authcore.HashToken(payload.Token)
	userID, err := h.Store.PasswordResetUserID(r.Context(), tokenHash)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "invalid_reset_token", "the reset token is not valid or has expired", middleware.GetRequestID(r.Context()))
		return
	}

	hash, err := authcore.HashPassword(payload.NewPassword)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "reset_failed", "password reset failed", middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Store.UpdateUserPassword(r.Context(), userID, hash); err != nil {
		api.Fail(w, http.StatusInternalServerError, "reset_failed", "password reset failed", middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Store.MarkPasswordResetUsed(r.Context(), tokenHash); err != nil {
		slog.Warn("password reset mark used failed", "err", err)
	}
	if err := h.Audit.Record(r.Context(), userID, "auth.password_reset", "user", userID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, nil); err != nil {
		slog.Warn("audit record failed", "action", "auth.password_reset", "err", err)
	}
	api.Success(w, map[string]string{"status": "password_updated"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	valid, err := h.Store.SessionValid(r.Context(), user.UserID, authcore.HashToken(raw))
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "me_failed", "failed to load profile", middleware.GetRequestID(r.Context()))
		return
	}
	if !valid {
		api.Fail(w, http.StatusUnauthorized, "session_revoked", "the session is no longer valid", middleware.GetRequestID(r.Context()))
		return
	}

	var email string
	var mfaEnabled bool
	err = h.DB.QueryRow(r.Context(), `SELECT email, mfa_enabled FROM users WHERE id = $1`, user.UserID).Scan(&email, &mfaEnabled)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "me_failed", "failed to load profile", middleware.GetRequestID(r.Context()))
		return
	}
	perms := domainauth.RolePermissions[user.RoleName]
	api.Success(w, map[string]any{
		"id":          user.UserID,
		"email":       email,
		"role":        user.RoleName,
		"mfaEnabled":  mfaEnabled,
		"permissions": perms,
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMFASetup(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var email string
	if err := h.DB.QueryRow(r.Context(), `SELECT email FROM users WHERE id = $1`, user.UserID).Scan(&email); err != nil {
		api.Fail(w, http.StatusInternalServerError, "mfa_setup_failed", "failed to start MFA setup", middleware.GetRequestID(r.Context()))
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{Issuer: h.SchoolName, AccountName: email})
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "mfa_setup_failed", "failed to start MFA setup", middleware.GetRequestID(r.Context()))
		return
	}
	secretEnc, err := h.Crypto.EncryptString(key.Secret())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "mfa_setup_failed", "failed to start MFA setup", middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Store.UpdateMFASecret(r.Context(), user.UserID, secretEnc); err != nil {
		api.Fail(w, http.StatusInternalServerError, "mfa_setup_failed", "failed to start MFA setup", middleware.GetRequestID(r.Context()))
		return
	}

	api.Success(w, map[string]string{
		"secret": key.Secret(),
		"url":    key.URL(),
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMFAEnable(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload mfaEnablePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if payload.Code == "" {
		api.Fail(w, http.StatusBadRequest, "validation_error", "code is required", middleware.GetRequestID(r.Context()))
		return
	}

	secretEnc, err := h.Store.MFASecret(r.Context(), user.UserID)
	if err != nil || len(secretEnc) == 0 {
		api.Fail(w, http.StatusConflict, "mfa_not_initialized", "run MFA setup first", middleware.GetRequestID(r.Context()))
		return
	}
	secret, err := h.Crypto.DecryptString(secretEnc)
	if err != nil || !totp.Validate(payload.Code, secret) {
		api.Fail(w, http.StatusUnauthorized, "invalid_mfa_code", "the one-time code is not valid", middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Store.SetMFAEnabled(r.Context(), user.UserID, true); err != nil {
		api.Fail(w, http.StatusInternalServerError, "mfa_enable_failed", "failed to enable MFA", middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Audit.Record(r.Context(), user.UserID, "auth.mfa_enabled", "user", user.UserID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, nil); err != nil {
		slog.Warn("audit record failed", "action", "auth.mfa_enabled", "err", err)
	}
	api.Success(w, map[string]string{"status": "mfa_enabled"}, middleware.GetRequestID(r.Context()))
}

func randomToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(buf)
}
