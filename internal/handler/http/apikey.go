package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/scalemako/crm-backend/internal/service"
	"github.com/scalemako/crm-backend/pkg/validator"
)

// APIKeyHandler handles HTTP requests for the integration key vault.
type APIKeyHandler struct {
	service *service.APIKeyService
	logger  *slog.Logger
}

// NewAPIKeyHandler creates a new API key HTTP handler.
func NewAPIKeyHandler(svc *service.APIKeyService, logger *slog.Logger) *APIKeyHandler {
	return &APIKeyHandler{service: svc, logger: logger}
}

// SaveKeyRequest is the JSON request body for storing an integration key.
type SaveKeyRequest struct {
	Service string `json:"service" validate:"required"`
	Key     string `json:"key" validate:"required"`
}

// Save handles POST /api/keys
func (h *APIKeyHandler) Save(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req SaveKeyRequest
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

	claims := SessionClaims(r.Context())
	if err := h.service.Save(r.Context(), claims.UserID, req.Service, req.Key); err != nil {
		writeAppError(w, r, err)
		return
	}

	// The plaintext key is deliberately not echoed back.
	writeJSON(w, http.StatusOK, response{Data: map[string]bool{"success": true}})
}

// List handles GET /api/keys
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := SessionClaims(r.Context())

	keys, err := h.service.List(r.Context(), claims.UserID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: keys})
}

// Get handles GET /api/keys/{service}
func (h *APIKeyHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := SessionClaims(r.Context())
	serviceName := chi.URLParam(r, "service")

	key, err := h.service.Get(r.Context(), claims.UserID, serviceName)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: map[string]string{
		"service": serviceName,
		"key":     key,
	}})
}

// Delete handles DELETE /api/keys/{service}
func (h *APIKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := SessionClaims(r.Context())
	serviceName := chi.URLParam(r, "service")

	if err := h.service.Delete(r.Context(), claims.UserID, serviceName); err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: map[string]bool{"success": true}})
}
