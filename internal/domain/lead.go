package domain

import "time"

// Lead statuses mirror the pipeline stages shown in the dashboard.
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusQualified = "qualified"
	LeadStatusClosed    = "closed"
)

// Lead is a CRM prospect owned by a single user.
type Lead struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Status    string    `json:"status"`
	Source    string    `json:"source"`
	Summary   string    `json:"summary,omitempty"`
	AISummary string    `json:"ai_summary,omitempty"`
	Sentiment string    `json:"sentiment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CallLog is a voice interaction ingested from the Vapi webhook.
type CallLog struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	LeadID       string    `json:"lead_id,omitempty"`
	Phone        string    `json:"phone"`
	RecordingURL string    `json:"recording_url,omitempty"`
	Duration     int       `json:"duration,omitempty"`
	Sentiment    string    `json:"sentiment,omitempty"`
	Summary      string    `json:"summary,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
