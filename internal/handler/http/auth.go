// Package http exposes the CRM backend over a chi router.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/scalemako/crm-backend/internal/service"
	"github.com/scalemako/crm-backend/internal/session"
	"github.com/scalemako/crm-backend/pkg/validator"
)

// AuthHandler handles HTTP requests for auth endpoints.
type AuthHandler struct {
	service *service.AuthService
	cookies *session.CookieManager
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, cookies *session.CookieManager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, cookies: cookies, logger: logger}
}

// --- Request DTOs ---

// RegisterRequest is the JSON request body for account registration.
type RegisterRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
	BusinessName string `json:"businessName" validate:"max=200"`
}

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe"`
}

// ResetPasswordRequest is the JSON request body for both phases of the
// password-reset flow: {email} requests a reset link, {token, newPassword}
// redeems it.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// --- Handlers ---

// Register handles POST /auth/signup
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	user, err := h.service.Register(r.Context(), service.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		BusinessName: req.BusinessName,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: user.Summary()})
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	user, token, err := h.service.Login(r.Context(), service.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		ClientKey:  clientKey(r),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	h.cookies.Attach(w, token, req.RememberMe)
	writeJSON(w, http.StatusOK, response{Data: user.Summary()})
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.Detach(w)
	writeJSON(w, http.StatusOK, response{Data: map[string]bool{"success": true}})
}

// Session handles GET /auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	token, err := session.TokenFromRequest(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "authentication required"},
		})
		return
	}

	summary, err := h.service.Session(r.Context(), token)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: summary})
}

// ResetPassword handles POST /auth/reset-password. The body shape selects
// the phase: an email starts the flow, a token plus new password finishes it.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	switch {
	case req.Token != "" && req.NewPassword != "":
		if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, response{Data: map[string]bool{"success": true}})

	case req.Email != "":
		if err := h.service.RequestPasswordReset(r.Context(), req.Email, clientKey(r)); err != nil {
			writeAppError(w, r, err)
			return
		}
		// Identical body whether or not the email is registered.
		writeJSON(w, http.StatusOK, response{
			Data: map[string]string{"message": "If that email is registered, a reset link has been sent."},
		})

	default:
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "either email or token is required"},
		})
	}
}
