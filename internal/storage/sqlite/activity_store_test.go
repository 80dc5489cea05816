package sqlite

import (
	"context"
	"testing"
	"time"
)

func TestActivityStore_RecordQuery(t *testing.T) {
	ctx := context.Background()
	store := NewActivityStore(openTestDB(t))

	if err := store.Record(ctx, ActivityGraded, "w1", map[string]any{"score": 4.5}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := store.Record(ctx, ActivityFlashcard, "", map[string]any{"card_id": "c1", "success": true}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	events, err := store.Query(ctx, ActivityGraded, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(events) != 1 || events[0].ExerciseID != "w1" || events[0].Data != `{"score":4.5}` {
		t.Errorf("Query() = %+v", events)
	}

	n, err := store.Count(ctx, ActivityFlashcard)
	if err != nil || n != 1 {
		t.Errorf("Count() = %d, %v; want 1", n, err)
	}

	future, err := store.Query(ctx, ActivityGraded, time.Now().Add(time.Hour), time.Time{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(future) != 0 {
		t.Errorf("Query(since future) = %d events; want 0", len(future))
	}
}

func TestActivityStore_Prune(t *testing.T) {
	ctx := context.Background()
	store := NewActivityStore(openTestDB(t))

	if err := store.Record(ctx, ActivityExamSubmitted, "", nil); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	n, err := store.Prune(ctx, -time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() = %d; want 1", n)
	}
}
