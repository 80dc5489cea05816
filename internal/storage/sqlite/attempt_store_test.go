package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/c1advanced/c1prep/internal/domain"
)

func TestAttemptStore_RecordGet(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore(openTestDB(t))

	a := domain.Attempt{
		ID:           "att-1",
		UserID:       "u1",
		ExerciseType: "reading_and_use_of_language2",
		ExerciseID:   "ex-1",
		Result: domain.SessionResult{
			Score: 0,
			Total: 1,
			Mistakes: []domain.Mistake{{
				Question: "1", UserAnswer: "", CorrectAnswer: "ALTHOUGH",
			}},
		},
		CompletedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := store.Record(ctx, a); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	// Duplicate ids are ignored.
	if err := store.Record(ctx, a); err != nil {
		t.Fatalf("second Record() error = %v", err)
	}

	got, err := store.Get(ctx, "att-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != "u1" || got.Result.Total != 1 || len(got.Result.Mistakes) != 1 {
		t.Errorf("Get() = %+v", got)
	}
	if got.Result.Mistakes[0].CorrectAnswer != "ALTHOUGH" {
		t.Errorf("mistake = %+v", got.Result.Mistakes[0])
	}
	if !got.CompletedAt.Equal(a.CompletedAt) {
		t.Errorf("CompletedAt = %v; want %v", got.CompletedAt, a.CompletedAt)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrAttemptNotFound) {
		t.Errorf("Get(missing) error = %v; want ErrAttemptNotFound", err)
	}
}

func TestAttemptStore_ListAndSummary(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore(openTestDB(t))

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	attempts := []domain.Attempt{
		{ID: "1", ExerciseType: "listening1", Result: domain.SessionResult{Score: 3, Total: 6}, CompletedAt: base},
		{ID: "2", ExerciseType: "listening1", Result: domain.SessionResult{Score: 5, Total: 6}, CompletedAt: base.Add(time.Hour)},
		{ID: "3", ExerciseType: "reading_and_use_of_language1", Result: domain.SessionResult{Score: 8, Total: 8}, CompletedAt: base.Add(2 * time.Hour)},
	}
	for _, a := range attempts {
		if err := store.Record(ctx, a); err != nil {
			t.Fatalf("Record(%s) error = %v", a.ID, err)
		}
	}

	list, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != "3" || list[1].ID != "2" {
		t.Errorf("List(2) ids = %v", ids(list))
	}

	summary, err := store.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if len(summary) != 2 {
		t.Fatalf("len(Summary()) = %d; want 2", len(summary))
	}
	l := summary[0]
	if l.ExerciseType != "listening1" || l.Attempts != 2 || l.Score != 8 || l.Total != 12 || l.Percent() != 67 {
		t.Errorf("listening summary = %+v", l)
	}
	if !l.LastAt.Equal(base.Add(time.Hour)) {
		t.Errorf("LastAt = %v; want %v", l.LastAt, base.Add(time.Hour))
	}
}

func TestAttemptStore_CompletedIDs(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore(openTestDB(t))

	for _, a := range []domain.Attempt{
		{ID: "1", ExerciseType: "listening1", ExerciseID: "l-2"},
		{ID: "2", ExerciseType: "listening1", ExerciseID: "l-1"},
		{ID: "3", ExerciseType: "listening1", ExerciseID: "l-2"},
		{ID: "4", ExerciseType: "listening1"},
		{ID: "5", ExerciseType: "listening2", ExerciseID: "x"},
	} {
		if err := store.Record(ctx, a); err != nil {
			t.Fatalf("Record(%s) error = %v", a.ID, err)
		}
	}

	got, err := store.CompletedIDs(ctx, "listening1")
	if err != nil {
		t.Fatalf("CompletedIDs() error = %v", err)
	}
	if len(got) != 2 || got[0] != "l-1" || got[1] != "l-2" {
		t.Errorf("CompletedIDs() = %v; want [l-1 l-2]", got)
	}
}

func ids(list []domain.Attempt) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.ID
	}
	return out
}
