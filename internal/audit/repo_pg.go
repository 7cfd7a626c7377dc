package audit

import (
	"context"
	"database/sql"
	"encoding/json"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Insert appends one audit event.
func (r *PGRepo) Insert(ctx context.Context, event Event) error {
	const query = `
INSERT INTO audit_log (
    id,
    event_type,
    severity,
    user_id,
    user_email,
    ip_address,
    user_agent,
    resource_id,
    action,
    status,
    error_message,
    metadata,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	var metadata []byte
	if event.Metadata != nil {
		encoded, err := json.Marshal(event.Metadata)
		if err == nil {
			metadata = encoded
		}
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		event.ID,
		string(event.Type),
		string(event.Severity),
		nullString(event.UserID),
		nullString(event.UserEmail),
		nullString(event.IPAddress),
		nullString(event.UserAgent),
		nullString(event.ResourceID),
		event.Action,
		event.Status,
		nullString(event.ErrorMessage),
		metadata,
		event.CreatedAt,
	)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ Repo = (*PGRepo)(nil)
