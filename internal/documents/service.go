package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"docextract-backend/internal/shared/storage/object"
	"docextract-backend/internal/validation"
)

// Service contains business logic for documents.
type Service struct {
	Store         object.ObjectStore
	Repo          Repo
	MaxFileSizeMB int
}

// Upload saves the file to object storage and records the document in
// pending state. databaseID optionally targets an external database whose
// schema will shape the processed CSV.
func (s *Service) Upload(ctx context.Context, userID, fileName, databaseID string, r io.Reader) (Document, error) {
	if userID == "" {
		return Document{}, errors.New("user id required")
	}
	nameCheck := validation.FileName(fileName)
	if !nameCheck.Valid {
		return Document{}, fmt.Errorf("%w: %s", ErrInvalidInput, nameCheck.Err)
	}

	var sourceID *string
	if databaseID != "" {
		dbCheck := validation.DatabaseID(databaseID)
		if !dbCheck.Valid {
			return Document{}, fmt.Errorf("%w: %s", ErrInvalidInput, dbCheck.Err)
		}
		sourceID = &dbCheck.Sanitized
	}

	storageKey, size, mimeType, err := s.Store.Save(ctx, userID, nameCheck.Sanitized, r)
	if err != nil {
		return Document{}, err
	}

	if sizeCheck := validation.FileSize(size, s.MaxFileSizeMB); !sizeCheck.Valid {
		return Document{}, fmt.Errorf("%w: %s", ErrInvalidInput, sizeCheck.Err)
	}
	typeCheck := validation.FileType(mimeType)
	if !typeCheck.Valid {
		return Document{}, fmt.Errorf("%w: %s", ErrInvalidInput, typeCheck.Err)
	}

	doc := Document{
		ID:        uuid.NewString(),
		UserID:    userID,
		FileName:  nameCheck.Sanitized,
		FileURL:   s.Store.PublicURL(storageKey),
		FileType:  typeCheck.Sanitized,
		FileSize:  size,
		Status:    StatusPending,
		SourceID:  sourceID,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, err
	}

	return doc, nil
}

// Get returns a document owned by the user.
func (s *Service) Get(ctx context.Context, userID, documentID string) (Document, error) {
	doc, err := s.Repo.GetByID(ctx, documentID)
	if err != nil {
		return Document{}, err
	}
	if doc.UserID != userID {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// List returns documents for a user, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if userID == "" {
		return nil, errors.New("user id required")
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}
