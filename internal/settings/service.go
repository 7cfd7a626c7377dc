package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docextract-backend/internal/secrets"
	"docextract-backend/internal/shared/telemetry"
	"docextract-backend/internal/validation"
)

// ErrInvalidInput marks validation failures that should map to 400.
var ErrInvalidInput = errors.New("invalid input")

// Service contains business logic for user settings.
type Service struct {
	Repo Repo

	// EncryptionSecret wraps API keys at rest. Empty means keys are
	// stored as submitted, which only happens in local development.
	EncryptionSecret string
}

// SaveInput carries the fields a user may update. Nil pointers leave the
// stored value untouched.
type SaveInput struct {
	NotionAPIKey     *string
	NotionDatabaseID *string
}

// Save validates and persists the user's settings. A submitted API key is
// checked against the provider key format and encrypted before storage.
func (s *Service) Save(ctx context.Context, userID string, in SaveInput) (Settings, error) {
	if userID == "" {
		return Settings{}, errors.New("user id required")
	}

	current, err := s.Repo.Get(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Settings{}, err
	}
	current.UserID = userID

	if in.NotionAPIKey != nil {
		raw := *in.NotionAPIKey
		if raw == "" {
			current.NotionAPIKey = nil
		} else {
			check := validation.APIKey(raw)
			if !check.Valid {
				return Settings{}, fmt.Errorf("%w: %s", ErrInvalidInput, check.Err)
			}
			stored := check.Sanitized
			if s.EncryptionSecret != "" {
				stored, err = secrets.Encrypt(check.Sanitized, s.EncryptionSecret)
				if err != nil {
					return Settings{}, fmt.Errorf("encrypt api key: %w", err)
				}
			} else {
				telemetry.Warn("settings.plaintext_key_stored", map[string]any{
					"reason": "encryption secret not configured",
				})
			}
			current.NotionAPIKey = &stored
		}
	}

	if in.NotionDatabaseID != nil {
		raw := *in.NotionDatabaseID
		if raw == "" {
			current.NotionDatabaseID = nil
		} else {
			check := validation.DatabaseID(raw)
			if !check.Valid {
				return Settings{}, fmt.Errorf("%w: %s", ErrInvalidInput, check.Err)
			}
			current.NotionDatabaseID = &check.Sanitized
		}
	}

	current.UpdatedAt = time.Now().UTC()
	if err := s.Repo.Upsert(ctx, current); err != nil {
		return Settings{}, err
	}
	return current, nil
}

// Get returns the stored settings for a user. Callers rendering the result
// outward should mask the key via dto helpers.
func (s *Service) Get(ctx context.Context, userID string) (Settings, error) {
	if userID == "" {
		return Settings{}, errors.New("user id required")
	}
	return s.Repo.Get(ctx, userID)
}
