package audit

import (
	"context"
	"sync"
	"time"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// InMemoryRepository keeps the most recent events in a bounded in-process
// buffer, ideal for local development or tests.
type InMemoryRepository struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
}

// NewInMemoryRepository constructs a repository that retains at most capacity events.
func NewInMemoryRepository(capacity int) *InMemoryRepository {
	if capacity <= 0 {
		capacity = 1000
	}
	return &InMemoryRepository{capacity: capacity}
}

// Record stores an event, evicting the oldest one when full.
func (r *InMemoryRepository) Record(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.events) == r.capacity {
		copy(r.events, r.events[1:])
		r.events = r.events[:len(r.events)-1]
	}
	r.events = append(r.events, event)
	return nil
}

// ListBySubject returns the newest events for subjectID first.
func (r *InMemoryRepository) ListBySubject(_ context.Context, subjectID string, limit int) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit = clampLimit(limit)
	out := make([]Event, 0, limit)
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		if r.events[i].SubjectID == subjectID {
			out = append(out, r.events[i])
		}
	}
	return out, nil
}

// DeleteBefore drops events older than cutoff.
func (r *InMemoryRepository) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.events[:0]
	for _, event := range r.events {
		if !event.OccurredAt.Before(cutoff) {
			kept = append(kept, event)
		}
	}
	removed := int64(len(r.events) - len(kept))
	r.events = kept
	return removed, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
