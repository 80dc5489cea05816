package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Activity event types.
const (
	ActivityGraded        = "graded"
	ActivityFlashcard     = "flashcard_reviewed"
	ActivityExamSubmitted = "exam_submitted"
	ActivityPackDownload  = "pack_downloaded"
)

// ActivityEvent is one entry of the practice activity log.
type ActivityEvent struct {
	ID         int64     `json:"id"`
	EventType  string    `json:"event_type"`
	ExerciseID string    `json:"exercise_id,omitempty"`
	Data       string    `json:"data"`
	CreatedAt  time.Time `json:"created_at"`
}

// ActivityStore records practice activity that is not an objective attempt.
type ActivityStore struct {
	db *DB
}

// NewActivityStore creates a new SQLite-backed activity log.
func NewActivityStore(db *DB) *ActivityStore {
	return &ActivityStore{db: db}
}

// Record stores an event with data marshalled as JSON.
func (s *ActivityStore) Record(ctx context.Context, eventType, exerciseID string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal activity data: %w", err)
	}

	var exID *string
	if exerciseID != "" {
		exID = &exerciseID
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO activity_events (event_type, exercise_id, data, created_at) VALUES (?, ?, ?, ?)",
		eventType, exID, string(payload), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert activity event: %w", err)
	}
	return nil
}

// Query returns events of eventType newest first, optionally bounded in time.
func (s *ActivityStore) Query(ctx context.Context, eventType string, since, until time.Time) ([]ActivityEvent, error) {
	query := "SELECT id, event_type, exercise_id, data, created_at FROM activity_events WHERE event_type = ?"
	args := []any{eventType}

	if !since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, since.UTC())
	}
	if !until.IsZero() {
		query += " AND created_at <= ?"
		args = append(args, until.UTC())
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var events []ActivityEvent
	for rows.Next() {
		var e ActivityEvent
		var exID *string
		if err := rows.Scan(&e.ID, &e.EventType, &exID, &e.Data, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity event: %w", err)
		}
		if exID != nil {
			e.ExerciseID = *exID
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Count returns the number of events of eventType.
func (s *ActivityStore) Count(ctx context.Context, eventType string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM activity_events WHERE event_type = ?", eventType,
	).Scan(&count)
	return count, err
}

// Prune deletes events older than olderThan.
func (s *ActivityStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := s.db.ExecContext(ctx, "DELETE FROM activity_events WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune activity: %w", err)
	}
	return result.RowsAffected()
}
