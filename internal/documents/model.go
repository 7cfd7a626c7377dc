package documents

import "time"

// Status is the processing state of a document. Transitions only move
// forward: pending -> processing -> completed | error.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Document represents an uploaded file record owned by a user.
type Document struct {
	ID           string
	UserID       string
	FileName     string
	FileURL      string
	FileType     string
	FileSize     int64
	Status       Status
	ErrorMessage *string
	SourceID     *string // external database id shaping the CSV output
	CreatedAt    time.Time
}
