package audit

import (
	"time"

	"github.com/google/uuid"
)

// Kind names the gate resolution an event records.
type Kind string

const (
	KindVerified Kind = "verified"
	KindRenewed  Kind = "renewed"
	KindDegraded Kind = "degraded"
	KindDenied   Kind = "denied"
)

// Event records a session resolution that involved the identity provider.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Kind       Kind      `json:"kind"`
	SubjectID  string    `json:"subjectId,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Path       string    `json:"path"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(kind Kind, subjectID, reason, path string) Event {
	return Event{
		ID:         uuid.New(),
		Kind:       kind,
		SubjectID:  subjectID,
		Reason:     reason,
		Path:       truncateString(path, 512),
		OccurredAt: time.Now().UTC(),
	}
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
