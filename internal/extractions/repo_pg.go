package extractions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// PGRepo implements Repo using Postgres. Content is stored as jsonb.
type PGRepo struct {
	DB *sql.DB
}

// Insert stores one extraction result.
func (r *PGRepo) Insert(ctx context.Context, data ExtractedData) error {
	const query = `
INSERT INTO extracted_data (id, document_id, content, markdown, csv, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	var content any
	if data.Content != nil {
		raw, err := json.Marshal(data.Content)
		if err != nil {
			return err
		}
		content = raw
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		data.ID,
		data.DocumentID,
		content,
		data.Markdown,
		data.CSV,
		data.CreatedAt,
	)
	return err
}

// LatestByDocument returns the most recent extraction for a document.
func (r *PGRepo) LatestByDocument(ctx context.Context, documentID string) (ExtractedData, error) {
	const query = `
SELECT id, document_id, content, markdown, csv, created_at
FROM extracted_data
WHERE document_id = $1
ORDER BY created_at DESC
LIMIT 1`

	row := r.DB.QueryRowContext(ctx, query, documentID)

	var data ExtractedData
	var content []byte
	err := row.Scan(&data.ID, &data.DocumentID, &content, &data.Markdown, &data.CSV, &data.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ExtractedData{}, ErrNotFound
		}
		return ExtractedData{}, err
	}
	if len(content) > 0 {
		if err := json.Unmarshal(content, &data.Content); err != nil {
			return ExtractedData{}, err
		}
	}
	return data, nil
}

var _ Repo = (*PGRepo)(nil)
