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

// APIKeyRepository implements repository.APIKeyRepository using PostgreSQL.
type APIKeyRepository struct {
	db DB
}

// NewAPIKeyRepository creates a new PostgreSQL-backed API key repository.
func NewAPIKeyRepository(db DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Upsert stores the encrypted key for (userID, service). An existing row is
// overwritten and reactivated so a user never accumulates duplicate rows for
// one service.
func (r *APIKeyRepository) Upsert(ctx context.Context, k *domain.APIKey) error {
	query := `
		INSERT INTO api_keys (id, user_id, service_name, encrypted_key, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $5)
		ON CONFLICT (user_id, service_name)
		DO UPDATE SET encrypted_key = EXCLUDED.encrypted_key, is_active = TRUE, updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	_, err := r.db.Exec(ctx, query, k.ID, k.UserID, k.ServiceName, k.EncryptedKey, now)
	if err != nil {
		return fmt.Errorf("upsert api key: %w", err)
	}

	return nil
}

// GetActive retrieves the active key for (userID, service).
func (r *APIKeyRepository) GetActive(ctx context.Context, userID, service string) (*domain.APIKey, error) {
	query := `
		SELECT id, user_id, service_name, encrypted_key, is_active, created_at, updated_at
		FROM api_keys
		WHERE user_id = $1 AND service_name = $2 AND is_active = TRUE`

	var k domain.APIKey
	err := r.db.QueryRow(ctx, query, userID, service).Scan(
		&k.ID,
		&k.UserID,
		&k.ServiceName,
		&k.EncryptedKey,
		&k.IsActive,
		&k.CreatedAt,
		&k.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan api key: %w", err)
	}

	return &k, nil
}

// ListActive returns the user's active keys, newest first.
func (r *APIKeyRepository) ListActive(ctx context.Context, userID string) ([]domain.APIKey, error) {
	query := `
		SELECT id, user_id, service_name, encrypted_key, is_active, created_at, updated_at
		FROM api_keys
		WHERE user_id = $1 AND is_active = TRUE
		ORDER BY updated_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query api keys: %w", err)
	}
	defer rows.Close()

	var keys []domain.APIKey
	for rows.Next() {
		var k domain.APIKey
		if err := rows.Scan(
			&k.ID,
			&k.UserID,
			&k.ServiceName,
			&k.EncryptedKey,
			&k.IsActive,
			&k.CreatedAt,
			&k.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan api key row: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}

	return keys, nil
}

// Deactivate soft-deletes the key for (userID, service). The row stays for
// audit history.
func (r *APIKeyRepository) Deactivate(ctx context.Context, userID, service string) error {
	query := `
		UPDATE api_keys
		SET is_active = FALSE, updated_at = $1
		WHERE user_id = $2 AND service_name = $3 AND is_active = TRUE`

	ct, err := r.db.Exec(ctx, query, time.Now().UTC(), userID, service)
	if err != nil {
		return fmt.Errorf("deactivate api key: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("api key", service)
	}

	return nil
}
