package extractions

import (
	"context"
	"errors"
)

// ErrNotFound indicates no extraction exists for the document.
var ErrNotFound = errors.New("extracted data not found")

// Repo persists extraction results.
type Repo interface {
	Insert(ctx context.Context, data ExtractedData) error
	LatestByDocument(ctx context.Context, documentID string) (ExtractedData, error)
}
