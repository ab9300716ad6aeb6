package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/scalemako/crm-backend/internal/domain"
	apperrors "github.com/scalemako/crm-backend/pkg/errors"
)

// LeadRepository implements repository.LeadRepository using PostgreSQL.
type LeadRepository struct {
	db DB
}

// NewLeadRepository creates a new PostgreSQL-backed lead repository.
func NewLeadRepository(db DB) *LeadRepository {
	return &LeadRepository{db: db}
}

const leadColumns = "id, user_id, name, phone, status, source, summary, ai_summary, sentiment, created_at, updated_at"

// Create inserts a new lead into the database.
func (r *LeadRepository) Create(ctx context.Context, l *domain.Lead) error {
	query := `
		INSERT INTO leads (` + leadColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		l.ID,
		l.UserID,
		l.Name,
		l.Phone,
		l.Status,
		l.Source,
		l.Summary,
		l.AISummary,
		l.Sentiment,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}

	return nil
}

// GetByID retrieves a lead scoped to its owning user.
func (r *LeadRepository) GetByID(ctx context.Context, userID, id string) (*domain.Lead, error) {
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE user_id = $1 AND id = $2`

	return r.scanLead(ctx, query, userID, id)
}

// GetByPhone retrieves the most recent lead with the given phone number.
func (r *LeadRepository) GetByPhone(ctx context.Context, userID, phone string) (*domain.Lead, error) {
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE user_id = $1 AND phone = $2
		ORDER BY created_at DESC
		LIMIT 1`

	return r.scanLead(ctx, query, userID, phone)
}

// ListByUserID returns the user's leads, newest first.
func (r *LeadRepository) ListByUserID(ctx context.Context, userID string) ([]domain.Lead, error) {
	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	var leads []domain.Lead
	for rows.Next() {
		var l domain.Lead
		if err := scanLeadFields(rows, &l); err != nil {
			return nil, fmt.Errorf("scan lead row: %w", err)
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}

	return leads, nil
}

// UpdateStatus moves a lead to a new pipeline status.
func (r *LeadRepository) UpdateStatus(ctx context.Context, userID, id, status string) error {
	query := `
		UPDATE leads
		SET status = $1, updated_at = $2
		WHERE user_id = $3 AND id = $4`

	ct, err := r.db.Exec(ctx, query, status, time.Now().UTC(), userID, id)
	if err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("lead", id)
	}

	return nil
}

func (r *LeadRepository) scanLead(ctx context.Context, query string, args ...any) (*domain.Lead, error) {
	var l domain.Lead
	if err := scanLeadFields(r.db.QueryRow(ctx, query, args...), &l); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan lead: %w", err)
	}
	return &l, nil
}

func scanLeadFields(row pgx.Row, l *domain.Lead) error {
	return row.Scan(
		&l.ID,
		&l.UserID,
		&l.Name,
		&l.Phone,
		&l.Status,
		&l.Source,
		&l.Summary,
		&l.AISummary,
		&l.Sentiment,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
}

// CallLogRepository implements repository.CallLogRepository using PostgreSQL.
type CallLogRepository struct {
	db DB
}

// NewCallLogRepository creates a new PostgreSQL-backed call log repository.
func NewCallLogRepository(db DB) *CallLogRepository {
	return &CallLogRepository{db: db}
}

// Create inserts a new call log into the database.
func (r *CallLogRepository) Create(ctx context.Context, c *domain.CallLog) error {
	query := `
		INSERT INTO call_logs (id, user_id, lead_id, phone, recording_url, duration, sentiment, summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	var leadID *string
	if c.LeadID != "" {
		leadID = &c.LeadID
	}

	_, err := r.db.Exec(ctx, query,
		c.ID,
		c.UserID,
		leadID,
		c.Phone,
		c.RecordingURL,
		c.Duration,
		c.Sentiment,
		c.Summary,
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert call log: %w", err)
	}

	return nil
}

// ListByUserID returns the user's call logs, newest first.
func (r *CallLogRepository) ListByUserID(ctx context.Context, userID string) ([]domain.CallLog, error) {
	query := `
		SELECT id, user_id, COALESCE(lead_id, ''), phone, recording_url, duration, sentiment, summary, created_at
		FROM call_logs
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query call logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.CallLog
	for rows.Next() {
		var c domain.CallLog
		if err := rows.Scan(
			&c.ID,
			&c.UserID,
			&c.LeadID,
			&c.Phone,
			&c.RecordingURL,
			&c.Duration,
			&c.Sentiment,
			&c.Summary,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan call log row: %w", err)
		}
		logs = append(logs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate call logs: %w", err)
	}

	return logs, nil
}
