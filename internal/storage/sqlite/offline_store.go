package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/c1advanced/c1prep/internal/domain"
)

// OfflineStore persists the offline pack. Entries are served last in,
// first out.
type OfflineStore struct {
	db *DB
}

// NewOfflineStore creates a new SQLite-backed offline pack store.
func NewOfflineStore(db *DB) *OfflineStore {
	return &OfflineStore{db: db}
}

// Replace swaps the whole pack for exercises in one transaction.
func (s *OfflineStore) Replace(ctx context.Context, exercises []*domain.Exercise) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace pack: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM offline_pack"); err != nil {
		return fmt.Errorf("clear pack: %w", err)
	}
	for _, ex := range exercises {
		if err := insertExercise(ctx, tx, ex); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit pack: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertExercise(ctx context.Context, db execer, ex *domain.Exercise) error {
	payload, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("marshal exercise: %w", err)
	}
	_, err = db.ExecContext(ctx,
		"INSERT INTO offline_pack (exercise_type, exercise_id, payload) VALUES (?, ?, ?)",
		ex.Type, ex.ID, string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert offline exercise: %w", err)
	}
	return nil
}

// Pop removes and returns the most recently added exercise. It returns
// domain.ErrOfflineCacheEmpty when the pack is empty.
func (s *OfflineStore) Pop(ctx context.Context) (*domain.Exercise, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin pop: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	var payload string
	err = tx.QueryRowContext(ctx,
		"SELECT seq, payload FROM offline_pack ORDER BY seq DESC LIMIT 1",
	).Scan(&seq, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOfflineCacheEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("select offline exercise: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM offline_pack WHERE seq = ?", seq); err != nil {
		return nil, fmt.Errorf("delete offline exercise: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit pop: %w", err)
	}

	var ex domain.Exercise
	if err := json.Unmarshal([]byte(payload), &ex); err != nil {
		return nil, fmt.Errorf("unmarshal offline exercise: %w", err)
	}
	return &ex, nil
}

// Len returns the number of cached exercises.
func (s *OfflineStore) Len(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM offline_pack").Scan(&n)
	return n, err
}

// CountByType returns the cached exercise count per type tag.
func (s *OfflineStore) CountByType(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT exercise_type, COUNT(*) FROM offline_pack GROUP BY exercise_type")
	if err != nil {
		return nil, fmt.Errorf("count offline pack: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var tag string
		var n int
		if err := rows.Scan(&tag, &n); err != nil {
			return nil, fmt.Errorf("scan offline count: %w", err)
		}
		counts[tag] = n
	}
	return counts, rows.Err()
}
