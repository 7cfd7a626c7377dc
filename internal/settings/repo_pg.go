package settings

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Get returns the settings row for a user.
func (r *PGRepo) Get(ctx context.Context, userID string) (Settings, error) {
	const query = `
SELECT user_id, notion_api_key, notion_database_id, updated_at
FROM user_settings
WHERE user_id = $1
LIMIT 1`
	row := r.DB.QueryRowContext(ctx, query, userID)

	var s Settings
	var apiKey sql.NullString
	var databaseID sql.NullString
	err := row.Scan(&s.UserID, &apiKey, &databaseID, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Settings{}, ErrNotFound
		}
		return Settings{}, err
	}
	if apiKey.Valid {
		s.NotionAPIKey = &apiKey.String
	}
	if databaseID.Valid {
		s.NotionDatabaseID = &databaseID.String
	}
	return s, nil
}

// Upsert writes the settings row, inserting or replacing per user.
func (r *PGRepo) Upsert(ctx context.Context, s Settings) error {
	const query = `
INSERT INTO user_settings (user_id, notion_api_key, notion_database_id, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE
SET notion_api_key = EXCLUDED.notion_api_key,
    notion_database_id = EXCLUDED.notion_database_id,
    updated_at = EXCLUDED.updated_at`
	_, err := r.DB.ExecContext(
		ctx,
		query,
		s.UserID,
		nullableString(s.NotionAPIKey),
		nullableString(s.NotionDatabaseID),
		s.UpdatedAt,
	)
	return err
}

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

var _ Repo = (*PGRepo)(nil)
