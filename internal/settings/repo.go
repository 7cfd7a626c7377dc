package settings

import (
	"context"
	"errors"
)

// ErrNotFound indicates the user has no stored settings row.
var ErrNotFound = errors.New("settings not found")

// Repo persists per-user settings.
type Repo interface {
	Get(ctx context.Context, userID string) (Settings, error)
	Upsert(ctx context.Context, s Settings) error
}
