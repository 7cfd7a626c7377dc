package audit

import "context"

// Repo defines persistence for audit events.
type Repo interface {
	Insert(ctx context.Context, event Event) error
}
