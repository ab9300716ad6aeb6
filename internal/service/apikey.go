package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/scalemako/crm-backend/internal/domain"
	"github.com/scalemako/crm-backend/internal/encryption"
	"github.com/scalemako/crm-backend/internal/repository"
	apperrors "github.com/scalemako/crm-backend/pkg/errors"
)

// APIKeyService stores third-party credentials encrypted at rest. Plaintext
// key material exists only inside Save and Get; it is never logged, never
// persisted, and never echoed back by Save.
type APIKeyService struct {
	repo   repository.APIKeyRepository
	cipher *encryption.Cipher
	logger *slog.Logger
}

// NewAPIKeyService creates a new API key service.
func NewAPIKeyService(repo repository.APIKeyRepository, cipher *encryption.Cipher, logger *slog.Logger) *APIKeyService {
	return &APIKeyService{repo: repo, cipher: cipher, logger: logger}
}

// Save encrypts and upserts the key for (userID, service). Saving over an
// existing service replaces the stored ciphertext and reactivates the row.
func (s *APIKeyService) Save(ctx context.Context, userID, service, plaintextKey string) error {
	name, ok := domain.NormalizeService(service)
	if !ok {
		return apperrors.InvalidInput(fmt.Sprintf(
			"unsupported service %q, must be one of: %s",
			service, strings.Join(domain.ValidServices(), ", "),
		))
	}
	plaintextKey = strings.TrimSpace(plaintextKey)
	if plaintextKey == "" {
		return apperrors.InvalidInput("api key is required")
	}

	encrypted, err := s.cipher.Encrypt(plaintextKey)
	if err != nil {
		return fmt.Errorf("encrypt api key: %w", err)
	}

	key := &domain.APIKey{
		ID:           uuid.New().String(),
		UserID:       userID,
		ServiceName:  name,
		EncryptedKey: encrypted,
	}
	if err := s.repo.Upsert(ctx, key); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "api key stored",
		slog.String("user_id", userID),
		slog.String("service", name),
	)

	return nil
}

// Get returns the decrypted key for (userID, service), or ErrNotFound when
// no usable key exists. A stored blob that no longer decrypts (key rotation,
// corruption) is treated the same as a missing one.
func (s *APIKeyService) Get(ctx context.Context, userID, service string) (string, error) {
	name, ok := domain.NormalizeService(service)
	if !ok {
		return "", apperrors.InvalidInput(fmt.Sprintf("unsupported service %q", service))
	}

	key, err := s.repo.GetActive(ctx, userID, name)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", apperrors.ErrNotFound
		}
		return "", err
	}

	plaintext, err := s.cipher.Decrypt(key.EncryptedKey)
	if err != nil {
		s.logger.ErrorContext(ctx, "stored api key failed to decrypt",
			slog.String("user_id", userID),
			slog.String("service", name),
		)
		return "", apperrors.ErrNotFound
	}

	return plaintext, nil
}

// List returns the services the user has active keys for. Key material is
// never included.
func (s *APIKeyService) List(ctx context.Context, userID string) ([]domain.APIKey, error) {
	keys, err := s.repo.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range keys {
		keys[i].EncryptedKey = ""
	}
	return keys, nil
}

// Delete soft-deletes the key for (userID, service).
func (s *APIKeyService) Delete(ctx context.Context, userID, service string) error {
	name, ok := domain.NormalizeService(service)
	if !ok {
		return apperrors.InvalidInput(fmt.Sprintf("unsupported service %q", service))
	}

	if err := s.repo.Deactivate(ctx, userID, name); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "api key deactivated",
		slog.String("user_id", userID),
		slog.String("service", name),
	)

	return nil
}
