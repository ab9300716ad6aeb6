package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/scalemako/crm-backend/internal/service"
)

// WebhookHandler ingests telephony provider callbacks. These routes sit
// outside the session gate; providers authenticate the tenant by the user
// reference carried in the payload or query string.
type WebhookHandler struct {
	service *service.LeadService
	logger  *slog.Logger
}

// NewWebhookHandler creates a new webhook HTTP handler.
func NewWebhookHandler(svc *service.LeadService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{service: svc, logger: logger}
}

// vapiPayload matches the parts of a Vapi end-of-call report we consume.
// Field placement varies across report versions, so most fields appear both
// at the top level and under message/call.
type vapiPayload struct {
	UserID   string `json:"userId"`
	Metadata struct {
		UserID string `json:"userId"`
	} `json:"metadata"`
	Message struct {
		Call struct {
			Customer struct {
				Number string `json:"number"`
				Name   string `json:"name"`
			} `json:"customer"`
			Metadata struct {
				UserID string `json:"userId"`
			} `json:"metadata"`
		} `json:"call"`
		Summary      string  `json:"summary"`
		RecordingURL string  `json:"recordingUrl"`
		DurationSecs float64 `json:"durationSeconds"`
		Analysis     struct {
			Summary   string `json:"summary"`
			Sentiment string `json:"sentiment"`
		} `json:"analysis"`
	} `json:"message"`
	Customer struct {
		Number string `json:"number"`
		Name   string `json:"name"`
	} `json:"customer"`
	Summary string `json:"summary"`
}

func (p *vapiPayload) userID() string {
	for _, id := range []string{p.Metadata.UserID, p.Message.Call.Metadata.UserID, p.UserID} {
		if id != "" {
			return id
		}
	}
	return ""
}

func (p *vapiPayload) toCallInput() service.CallInput {
	phone := p.Message.Call.Customer.Number
	if phone == "" {
		phone = p.Customer.Number
	}
	name := p.Message.Call.Customer.Name
	if name == "" {
		name = p.Customer.Name
	}
	summary := p.Message.Analysis.Summary
	if summary == "" {
		summary = p.Message.Summary
	}
	if summary == "" {
		summary = p.Summary
	}
	return service.CallInput{
		Phone:        phone,
		CallerName:   name,
		RecordingURL: p.Message.RecordingURL,
		Duration:     int(p.Message.DurationSecs),
		Sentiment:    p.Message.Analysis.Sentiment,
		Summary:      summary,
	}
}

// Vapi handles POST /webhooks/vapi
func (h *WebhookHandler) Vapi(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var payload vapiPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid webhook payload"},
		})
		return
	}

	userID := payload.userID()
	if userID == "" {
		userID = r.URL.Query().Get("user")
	}
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "missing user reference"},
		})
		return
	}

	log, err := h.service.IngestCall(r.Context(), userID, payload.toCallInput())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "vapi webhook ingestion failed",
			slog.String("error", err.Error()),
		)
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: map[string]string{"callId": log.ID}})
}

// Twilio handles POST /webhooks/twilio. Twilio posts form-encoded SMS
// events; the tenant is identified by the user query parameter configured on
// the Twilio number.
func (h *WebhookHandler) Twilio(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid webhook payload"},
		})
		return
	}

	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "missing user reference"},
		})
		return
	}

	input := service.CallInput{
		Phone:   r.PostFormValue("From"),
		Summary: r.PostFormValue("Body"),
	}

	log, err := h.service.IngestCall(r.Context(), userID, input)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "twilio webhook ingestion failed",
			slog.String("error", err.Error()),
		)
		writeAppError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "twilio message recorded",
		slog.String("call_id", log.ID),
	)

	// Twilio expects a TwiML document; an empty response suppresses any reply.
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Response></Response>`))
}
