package audit

import (
	"context"
	"time"
)

// Repository persists auth events.
type Repository interface {
	Record(ctx context.Context, event Event) error
	// ListBySubject returns the newest events for subjectID first.
	ListBySubject(ctx context.Context, subjectID string, limit int) ([]Event, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
