package repository

import (
	"context"
	"time"

	"github.com/scalemako/crm-backend/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user into the store.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their normalized email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdatePassword replaces the stored password hash and clears any
	// lockout state.
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// UpdateLockout persists the failed-login counter and optional lock
	// expiry after an unsuccessful attempt.
	UpdateLockout(ctx context.Context, id string, failedCount int, lockUntil *time.Time) error

	// ResetLockout clears the failed-login counter and lock expiry after a
	// successful login.
	ResetLockout(ctx context.Context, id string) error
}

// APIKeyRepository defines the interface for stored third-party credential
// operations. Keys are persisted encrypted; this layer never sees plaintext.
type APIKeyRepository interface {
	// Upsert stores the encrypted key for (userID, service), replacing and
	// reactivating any existing row.
	Upsert(ctx context.Context, key *domain.APIKey) error

	// GetActive retrieves the active key for (userID, service).
	GetActive(ctx context.Context, userID, service string) (*domain.APIKey, error)

	// ListActive returns the active keys for the user, newest first.
	ListActive(ctx context.Context, userID string) ([]domain.APIKey, error)

	// Deactivate soft-deletes the key for (userID, service).
	Deactivate(ctx context.Context, userID, service string) error
}

// LeadRepository defines the interface for lead persistence operations.
type LeadRepository interface {
	// Create inserts a new lead into the store.
	Create(ctx context.Context, lead *domain.Lead) error

	// GetByID retrieves a lead scoped to its owning user.
	GetByID(ctx context.Context, userID, id string) (*domain.Lead, error)

	// GetByPhone retrieves the most recent lead with the given phone number
	// for the user.
	GetByPhone(ctx context.Context, userID, phone string) (*domain.Lead, error)

	// ListByUserID returns the user's leads, newest first.
	ListByUserID(ctx context.Context, userID string) ([]domain.Lead, error)

	// UpdateStatus moves a lead to a new pipeline status.
	UpdateStatus(ctx context.Context, userID, id, status string) error
}

// CallLogRepository defines the interface for call record persistence.
type CallLogRepository interface {
	// Create inserts a new call log into the store.
	Create(ctx context.Context, log *domain.CallLog) error

	// ListByUserID returns the user's call logs, newest first.
	ListByUserID(ctx context.Context, userID string) ([]domain.CallLog, error)
}
