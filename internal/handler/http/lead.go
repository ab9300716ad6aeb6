package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/scalemako/crm-backend/internal/service"
	"github.com/scalemako/crm-backend/pkg/validator"
)

// LeadHandler handles HTTP requests for the lead pipeline.
type LeadHandler struct {
	service *service.LeadService
	logger  *slog.Logger
}

// NewLeadHandler creates a new lead HTTP handler.
func NewLeadHandler(svc *service.LeadService, logger *slog.Logger) *LeadHandler {
	return &LeadHandler{service: svc, logger: logger}
}

// CreateLeadRequest is the JSON request body for creating a lead.
type CreateLeadRequest struct {
	Name   string `json:"name" validate:"required,min=1,max=200"`
	Phone  string `json:"phone" validate:"max=32"`
	Source string `json:"source" validate:"max=50"`
}

// UpdateLeadStatusRequest is the JSON request body for moving a lead through
// the pipeline.
type UpdateLeadStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// List handles GET /api/leads
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := SessionClaims(r.Context())

	leads, err := h.service.List(r.Context(), claims.UserID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: leads})
}

// Create handles POST /api/leads
func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req CreateLeadRequest
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
	lead, err := h.service.Create(r.Context(), claims.UserID, service.CreateLeadInput{
		Name:   req.Name,
		Phone:  req.Phone,
		Source: req.Source,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: lead})
}

// UpdateStatus handles PATCH /api/leads/{id}
func (h *LeadHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req UpdateLeadStatusRequest
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
	if err := h.service.UpdateStatus(r.Context(), claims.UserID, chi.URLParam(r, "id"), req.Status); err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: map[string]bool{"success": true}})
}

// ListCalls handles GET /api/calls
func (h *LeadHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	claims := SessionClaims(r.Context())

	calls, err := h.service.ListCalls(r.Context(), claims.UserID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: calls})
}
