package extractions

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string][]ExtractedData // documentID -> extractions, oldest first
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string][]ExtractedData),
	}
}

// Insert stores one extraction result.
func (r *MemoryRepo) Insert(ctx context.Context, data ExtractedData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[data.DocumentID] = append(r.data[data.DocumentID], data)
	return nil
}

// LatestByDocument returns the most recent extraction for a document.
func (r *MemoryRepo) LatestByDocument(ctx context.Context, documentID string) (ExtractedData, error) {
	if err := ctx.Err(); err != nil {
		return ExtractedData{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows := r.data[documentID]
	if len(rows) == 0 {
		return ExtractedData{}, ErrNotFound
	}
	latest := rows[0]
	for _, row := range rows[1:] {
		if row.CreatedAt.After(latest.CreatedAt) {
			latest = row
		}
	}
	return latest, nil
}

var _ Repo = (*MemoryRepo)(nil)
