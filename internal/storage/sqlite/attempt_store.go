package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/c1advanced/c1prep/internal/domain"
)

// ErrAttemptNotFound is returned when an attempt id is unknown.
var ErrAttemptNotFound = errors.New("attempt not found")

// AttemptStore keeps checked objective results.
type AttemptStore struct {
	db *DB
}

// NewAttemptStore creates a new SQLite-backed attempt store.
func NewAttemptStore(db *DB) *AttemptStore {
	return &AttemptStore{db: db}
}

// Record inserts an attempt. Recording the same id twice keeps the first.
func (s *AttemptStore) Record(ctx context.Context, a domain.Attempt) error {
	mistakes := a.Result.Mistakes
	if mistakes == nil {
		mistakes = []domain.Mistake{}
	}
	data, err := json.Marshal(mistakes)
	if err != nil {
		return fmt.Errorf("marshal mistakes: %w", err)
	}
	if a.CompletedAt.IsZero() {
		a.CompletedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO attempts (id, user_id, exercise_type, exercise_id, title,
			score, total, mistakes, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		a.ID, a.UserID, a.ExerciseType, a.ExerciseID, a.Title,
		a.Result.Score, a.Result.Total, string(data), a.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// Get retrieves an attempt by id.
func (s *AttemptStore) Get(ctx context.Context, id string) (*domain.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, selectAttempts+" WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("query attempt: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrAttemptNotFound
	}
	return scanAttempt(rows)
}

// List returns attempts newest first. A limit of zero or less means all.
func (s *AttemptStore) List(ctx context.Context, limit int) ([]domain.Attempt, error) {
	query := selectAttempts + " ORDER BY completed_at DESC, rowid DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// CompletedIDs returns the distinct exercise ids attempted for a type.
func (s *AttemptStore) CompletedIDs(ctx context.Context, exerciseType string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT exercise_id FROM attempts
		WHERE exercise_type = ? AND exercise_id != ''
		ORDER BY exercise_id`, exerciseType)
	if err != nil {
		return nil, fmt.Errorf("query completed ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan completed id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TypeSummary aggregates attempts of one exercise type.
type TypeSummary struct {
	ExerciseType string
	Attempts     int
	Score        int
	Total        int
	LastAt       time.Time
}

// Percent returns the aggregate score as a rounded percentage.
func (t TypeSummary) Percent() int {
	r := domain.SessionResult{Score: t.Score, Total: t.Total}
	return r.Percent()
}

// Summary aggregates attempts per exercise type, ordered by type tag.
func (s *AttemptStore) Summary(ctx context.Context) ([]TypeSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT exercise_type, COUNT(*), SUM(score), SUM(total), MAX(completed_at)
		FROM attempts GROUP BY exercise_type ORDER BY exercise_type`)
	if err != nil {
		return nil, fmt.Errorf("summarize attempts: %w", err)
	}
	defer rows.Close()

	var out []TypeSummary
	for rows.Next() {
		var t TypeSummary
		var last string
		if err := rows.Scan(&t.ExerciseType, &t.Attempts, &t.Score, &t.Total, &last); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		t.LastAt = parseTime(last)
		out = append(out, t)
	}
	return out, rows.Err()
}

const selectAttempts = `SELECT id, user_id, exercise_type, exercise_id, title,
	score, total, mistakes, completed_at FROM attempts`

func scanAttempt(rows *sql.Rows) (*domain.Attempt, error) {
	var a domain.Attempt
	var mistakes string
	err := rows.Scan(
		&a.ID, &a.UserID, &a.ExerciseType, &a.ExerciseID, &a.Title,
		&a.Result.Score, &a.Result.Total, &mistakes, &a.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan attempt: %w", err)
	}
	if err := json.Unmarshal([]byte(mistakes), &a.Result.Mistakes); err != nil {
		return nil, fmt.Errorf("unmarshal mistakes: %w", err)
	}
	return &a, nil
}

// parseTime reads an aggregated timestamp, which SQLite returns as text.
func parseTime(s string) time.Time {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
