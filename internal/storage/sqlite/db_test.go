package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/c1advanced/c1prep/internal/domain"
)

func TestOpenMigrated_PracticeSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultFile)
	db, err := OpenMigrated(path, nil)
	if err != nil {
		t.Fatalf("OpenMigrated() error = %v", err)
	}
	defer db.Close()

	pragmas := map[string]string{"journal_mode": "wal", "foreign_keys": "1"}
	for name, want := range pragmas {
		var got string
		if err := db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
			t.Fatalf("PRAGMA %s: %v", name, err)
		}
		if got != want {
			t.Errorf("PRAGMA %s = %q; want %q", name, got, want)
		}
	}

	if v, err := db.Version(); err != nil || v != 3 {
		t.Errorf("Version() = %d, %v; want 3", v, err)
	}
	for _, table := range []string{"offline_pack", "attempts", "activity_events"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %q missing: %v", table, err)
		}
	}
}

// Reopening the practice file keeps history and applies nothing twice.
func TestOpenMigrated_ReopenKeepsHistory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DefaultFile)

	db, err := OpenMigrated(path, nil)
	if err != nil {
		t.Fatalf("OpenMigrated() error = %v", err)
	}
	err = NewAttemptStore(db).Record(ctx, domain.Attempt{
		ID:           "att-1",
		ExerciseType: "listening2",
		Result:       domain.SessionResult{Score: 5, Total: 8},
		CompletedAt:  time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	db.Close()

	db, err = OpenMigrated(path, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer db.Close()

	var applied int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatal(err)
	}
	if applied != 3 {
		t.Errorf("schema_migrations rows = %d; want 3", applied)
	}
	a, err := NewAttemptStore(db).Get(ctx, "att-1")
	if err != nil || a.Result.Score != 5 {
		t.Errorf("Get() after reopen = %+v, %v", a, err)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"003_activity.sql", 3, false},
		{"012_flashcards.sql", 12, false},
		{"activity.sql", 0, true},
		{"v2_attempts.sql", 0, true},
	}
	for _, tt := range tests {
		got, err := parseVersion(tt.name)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseVersion(%q) = %d, %v; want %d, err %v", tt.name, got, err, tt.want, tt.wantErr)
		}
	}
}

// openTestDB opens and migrates a throwaway practice store.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMigrated(filepath.Join(t.TempDir(), DefaultFile), nil)
	if err != nil {
		t.Fatalf("OpenMigrated() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
