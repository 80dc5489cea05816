// Package history keeps the local record of practice: checked attempts,
// graded submissions and their spreadsheet export.
package history

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c1advanced/c1prep/internal/domain"
	"github.com/c1advanced/c1prep/internal/storage/sqlite"
)

// AttemptStore persists checked attempts.
type AttemptStore interface {
	Record(ctx context.Context, a domain.Attempt) error
	List(ctx context.Context, limit int) ([]domain.Attempt, error)
	Summary(ctx context.Context) ([]sqlite.TypeSummary, error)
	CompletedIDs(ctx context.Context, exerciseType string) ([]string, error)
}

// ActivityLog persists other practice events.
type ActivityLog interface {
	Record(ctx context.Context, eventType, exerciseID string, data any) error
	Count(ctx context.Context, eventType string) (int, error)
}

var (
	_ AttemptStore = (*sqlite.AttemptStore)(nil)
	_ ActivityLog  = (*sqlite.ActivityStore)(nil)
)

// Service is the local practice history.
type Service struct {
	attempts AttemptStore
	activity ActivityLog
	logger   *slog.Logger
}

// NewService creates a history service. activity may be nil.
func NewService(attempts AttemptStore, activity ActivityLog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{attempts: attempts, activity: activity, logger: logger}
}

// Record stores a checked attempt. It makes Service a result sink.
func (s *Service) Record(ctx context.Context, a domain.Attempt) error {
	if err := s.attempts.Record(ctx, a); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	s.logger.Debug("attempt recorded", "id", a.ID, "type", a.ExerciseType)
	return nil
}

// CompletedIDs lists exercise ids already practised for a type.
func (s *Service) CompletedIDs(ctx context.Context, exerciseType string) ([]string, error) {
	return s.attempts.CompletedIDs(ctx, exerciseType)
}

// Recent returns the latest attempts, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]domain.Attempt, error) {
	return s.attempts.List(ctx, limit)
}

// Summary aggregates attempts per exercise type.
func (s *Service) Summary(ctx context.Context) ([]sqlite.TypeSummary, error) {
	return s.attempts.Summary(ctx)
}

// GradedEvent is the activity entry of one graded submission.
type GradedEvent struct {
	Type     string  `json:"type"`
	Title    string  `json:"title,omitempty"`
	Score    float64 `json:"score"`
	Words    int     `json:"words"`
	Feedback string  `json:"feedback,omitempty"`
}

// RecordGraded logs a graded submission.
func (s *Service) RecordGraded(ctx context.Context, ex *domain.Exercise, words int, fb *domain.GradingFeedback) error {
	if s.activity == nil || ex == nil || fb == nil {
		return nil
	}
	ev := GradedEvent{Type: ex.Type, Title: ex.Title, Score: fb.Score, Words: words, Feedback: fb.Feedback}
	return s.activity.Record(ctx, sqlite.ActivityGraded, ex.ID, ev)
}

// RecordEvent logs any other practice event.
func (s *Service) RecordEvent(ctx context.Context, eventType, exerciseID string, data any) error {
	if s.activity == nil {
		return nil
	}
	return s.activity.Record(ctx, eventType, exerciseID, data)
}

// GradedCount returns how many submissions were graded.
func (s *Service) GradedCount(ctx context.Context) (int, error) {
	if s.activity == nil {
		return 0, nil
	}
	return s.activity.Count(ctx, sqlite.ActivityGraded)
}
