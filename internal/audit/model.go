package audit

import "time"

// EventType is the closed set of audited actions.
type EventType string

const (
	EventDocumentProcessed  EventType = "document.processed"
	EventDocumentUploaded   EventType = "document.uploaded"
	EventSettingsUpdated    EventType = "settings.updated"
	EventUnauthorizedAccess EventType = "security.unauthorized_access"
	EventDecryptFailure     EventType = "security.decrypt_failure"
	EventRateLimitExceeded  EventType = "security.rate_limit_exceeded"
	EventConfigError        EventType = "config.error"
)

// Severity is the closed set of event severities.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Event is one append-only audit record.
type Event struct {
	ID           string
	Type         EventType
	Severity     Severity
	UserID       string
	UserEmail    string
	IPAddress    string
	UserAgent    string
	ResourceID   string
	Action       string
	Status       string
	ErrorMessage string
	Metadata     map[string]any
	CreatedAt    time.Time
}
