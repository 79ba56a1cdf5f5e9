package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Record inserts an event.
func (r *PostgresRepository) Record(ctx context.Context, event Event) error {
	const query = `
		INSERT INTO auth_events (id, kind, subject_id, reason, path, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		string(event.Kind),
		event.SubjectID,
		event.Reason,
		event.Path,
		event.OccurredAt,
	)
	return err
}

// ListBySubject returns the most recent events for a subject.
func (r *PostgresRepository) ListBySubject(ctx context.Context, subjectID string, limit int) ([]Event, error) {
	const query = `
		SELECT id, kind, subject_id, reason, path, occurred_at
		FROM auth_events
		WHERE subject_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, subjectID, clampLimit(limit)); err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(rows))
	for i := range rows {
		events = append(events, rows[i].toEvent())
	}
	return events, nil
}

// DeleteBefore removes events older than cutoff.
func (r *PostgresRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM auth_events WHERE occurred_at < $1`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// eventRow is a database row representation of Event.
type eventRow struct {
	ID         uuid.UUID `db:"id"`
	Kind       string    `db:"kind"`
	SubjectID  string    `db:"subject_id"`
	Reason     string    `db:"reason"`
	Path       string    `db:"path"`
	OccurredAt time.Time `db:"occurred_at"`
}

func (r *eventRow) toEvent() Event {
	return Event{
		ID:         r.ID,
		Kind:       Kind(r.Kind),
		SubjectID:  r.SubjectID,
		Reason:     r.Reason,
		Path:       r.Path,
		OccurredAt: r.OccurredAt,
	}
}
