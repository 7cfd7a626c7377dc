package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"docextract-backend/internal/shared/telemetry"
)

// Sink records audit events. A failed write never affects the outcome of the
// operation that triggered it.
type Sink struct {
	Repo Repo
}

// NewSink constructs a Sink over the given repo.
func NewSink(repo Repo) *Sink {
	return &Sink{Repo: repo}
}

// Log appends one event, filling defaults. Write failures are logged locally
// and swallowed.
func (s *Sink) Log(ctx context.Context, event Event) {
	if s == nil || s.Repo == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}
	if event.Status == "" {
		event.Status = StatusSuccess
	}

	if err := s.Repo.Insert(ctx, event); err != nil {
		telemetry.Error("audit.write_failed", map[string]any{
			"event_type": string(event.Type),
			"action":     event.Action,
			"error":      err.Error(),
		})
	}
}
