package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scalemako/crm-backend/internal/domain"
	"github.com/scalemako/crm-backend/internal/repository"
	apperrors "github.com/scalemako/crm-backend/pkg/errors"
)

// interestMarkers are phrases in a call summary that suggest the caller is a
// prospect worth a lead record.
var interestMarkers = []string{
	"interested", "quote", "pricing", "appointment", "book", "schedule", "call back",
}

// LeadService manages the lead pipeline and webhook-driven call ingestion.
type LeadService struct {
	leads  repository.LeadRepository
	calls  repository.CallLogRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewLeadService creates a new lead service.
func NewLeadService(leads repository.LeadRepository, calls repository.CallLogRepository, logger *slog.Logger) *LeadService {
	return &LeadService{leads: leads, calls: calls, logger: logger, now: time.Now}
}

// CreateLeadInput holds the parameters for creating a lead by hand.
type CreateLeadInput struct {
	Name   string
	Phone  string
	Source string
}

// Create inserts a new lead in the "new" pipeline stage.
func (s *LeadService) Create(ctx context.Context, userID string, input CreateLeadInput) (*domain.Lead, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.InvalidInput("name is required")
	}

	now := s.now().UTC()
	lead := &domain.Lead{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      strings.TrimSpace(input.Name),
		Phone:     strings.TrimSpace(input.Phone),
		Status:    domain.LeadStatusNew,
		Source:    input.Source,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if lead.Source == "" {
		lead.Source = "manual"
	}

	if err := s.leads.Create(ctx, lead); err != nil {
		return nil, err
	}

	return lead, nil
}

// List returns the user's leads, newest first.
func (s *LeadService) List(ctx context.Context, userID string) ([]domain.Lead, error) {
	return s.leads.ListByUserID(ctx, userID)
}

// ListCalls returns the user's call logs, newest first.
func (s *LeadService) ListCalls(ctx context.Context, userID string) ([]domain.CallLog, error) {
	return s.calls.ListByUserID(ctx, userID)
}

// UpdateStatus moves a lead to a new pipeline stage.
func (s *LeadService) UpdateStatus(ctx context.Context, userID, id, status string) error {
	switch status {
	case domain.LeadStatusNew, domain.LeadStatusContacted, domain.LeadStatusQualified, domain.LeadStatusClosed:
	default:
		return apperrors.InvalidInput(fmt.Sprintf("invalid lead status %q", status))
	}
	return s.leads.UpdateStatus(ctx, userID, id, status)
}

// CallInput is a normalized inbound call event from a telephony webhook.
type CallInput struct {
	Phone        string
	CallerName   string
	RecordingURL string
	Duration     int
	Sentiment    string
	Summary      string
}

// IngestCall records an inbound call and, when the summary signals interest
// and no lead exists for the number yet, opens a lead automatically.
func (s *LeadService) IngestCall(ctx context.Context, userID string, input CallInput) (*domain.CallLog, error) {
	if input.Phone == "" {
		return nil, apperrors.InvalidInput("phone is required")
	}

	now := s.now().UTC()
	log := &domain.CallLog{
		ID:           uuid.New().String(),
		UserID:       userID,
		Phone:        input.Phone,
		RecordingURL: input.RecordingURL,
		Duration:     input.Duration,
		Sentiment:    input.Sentiment,
		Summary:      input.Summary,
		CreatedAt:    now,
	}

	if lead := s.matchOrCreateLead(ctx, userID, input, now); lead != nil {
		log.LeadID = lead.ID
	}

	if err := s.calls.Create(ctx, log); err != nil {
		return nil, err
	}

	return log, nil
}

// matchOrCreateLead links the call to an existing lead by phone number, or
// creates one when the summary looks like a prospect. Lead bookkeeping is
// best effort; a failure here must not drop the call record.
func (s *LeadService) matchOrCreateLead(ctx context.Context, userID string, input CallInput, now time.Time) *domain.Lead {
	existing, err := s.leads.GetByPhone(ctx, userID, input.Phone)
	if err == nil {
		return existing
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		s.logger.ErrorContext(ctx, "lead lookup by phone failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	if !showsInterest(input.Summary) {
		return nil
	}

	name := input.CallerName
	if name == "" {
		name = "Caller " + input.Phone
	}
	lead := &domain.Lead{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		Phone:     input.Phone,
		Status:    domain.LeadStatusNew,
		Source:    "vapi",
		AISummary: input.Summary,
		Sentiment: input.Sentiment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.leads.Create(ctx, lead); err != nil {
		s.logger.ErrorContext(ctx, "auto-create lead failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	s.logger.InfoContext(ctx, "lead auto-created from call",
		slog.String("user_id", userID),
		slog.String("lead_id", lead.ID),
	)

	return lead
}

func showsInterest(summary string) bool {
	s := strings.ToLower(summary)
	for _, marker := range interestMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
