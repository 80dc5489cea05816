package exam

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/c1advanced/c1prep/internal/domain"
	"github.com/c1advanced/c1prep/internal/storage/local"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testExam() *domain.Exam {
	return &domain.Exam{
		DurationMinutes: 90,
		Parts: []domain.Exercise{
			{ID: "p1", Type: "reading_and_use_of_language1", Questions: []domain.Item{
				{Question: "1", Answer: "A"},
				{Question: "2", Answer: "B"},
			}},
			{ID: "p2", Type: "reading_and_use_of_language5", Title: "Multiple choice", Questions: []domain.Item{
				{Question: "1", Answer: "C"},
			}},
			{ID: "p3", Type: "writing1", Title: "Essay", Content: &domain.Content{Question: "Discuss."}},
		},
	}
}

func TestNew_RejectsEmptyExam(t *testing.T) {
	if _, err := New(&domain.Exam{}, Config{}); !errors.Is(err, domain.ErrInvalidExam) {
		t.Errorf("New() error = %v; want ErrInvalidExam", err)
	}
	if _, err := New(nil, Config{}); !errors.Is(err, domain.ErrInvalidExam) {
		t.Errorf("New(nil) error = %v; want ErrInvalidExam", err)
	}
}

func TestNavigator_Movement(t *testing.T) {
	n, err := New(testExam(), Config{Clock: &fakeClock{now: time.Now()}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := n.Prev(); err == nil {
		t.Error("Prev() at first part should fail")
	}
	if err := n.Goto(2); err != nil {
		t.Fatalf("Goto(2) error = %v", err)
	}
	if n.Current().ID != "p3" {
		t.Errorf("Current() = %s; want p3", n.Current().ID)
	}
	if err := n.Next(); err == nil {
		t.Error("Next() at last part should fail")
	}
	if got := n.MinutesPerPart(); got != 30 {
		t.Errorf("MinutesPerPart() = %d; want 30", got)
	}
}

func TestNavigator_AnswersSurviveMovement(t *testing.T) {
	ctx := context.Background()
	n, _ := New(testExam(), Config{Clock: &fakeClock{now: time.Now()}})

	c, err := n.Session(ctx)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	c.Answer("1", "a")

	_ = n.Next()
	_ = n.Prev()
	again, err := n.Session(ctx)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if again != c || again.Snapshot().Answers["1"] != "a" {
		t.Error("answers lost after moving between parts")
	}
}

func TestNavigator_AutoSubmitOnce(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
	var submits []Summary
	n, _ := New(testExam(), Config{Clock: clock, OnSubmit: func(s Summary) { submits = append(submits, s) }})

	c, _ := n.Session(ctx)
	c.Answer("1", "A")

	clock.Advance(89 * time.Minute)
	if n.Tick(ctx) {
		t.Fatal("Tick() submitted before the deadline")
	}
	if got := FormatRemaining(n.Remaining()); got != "1:00" {
		t.Errorf("Remaining() = %s; want 1:00", got)
	}

	clock.Advance(2 * time.Minute)
	if !n.Tick(ctx) {
		t.Fatal("Tick() after deadline = false; want true")
	}
	if n.Tick(ctx) {
		t.Error("second Tick() submitted again")
	}
	n.Submit(ctx)

	if len(submits) != 1 {
		t.Fatalf("OnSubmit ran %d times; want 1", len(submits))
	}
	s := submits[0]
	if !s.AutoSubmit || s.Score != 1 || s.Total != 3 {
		t.Errorf("summary = %+v; want auto 1/3", s)
	}
	if !s.Parts[0].Visited || s.Parts[1].Visited || s.Parts[2].Result != nil {
		t.Errorf("parts = %+v", s.Parts)
	}
	if n.Remaining() != 0 || !n.Submitted() {
		t.Error("exam should be in review mode")
	}
	if err := n.Goto(1); err != nil {
		t.Errorf("Goto() in review mode error = %v", err)
	}
}

func TestNavigator_Run(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	n, _ := New(&domain.Exam{DurationMinutes: 1, Parts: testExam().Parts[:1]}, Config{Clock: clock})
	clock.Advance(time.Hour)

	done := make(chan struct{})
	go func() {
		n.Run(context.Background(), time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after expiry")
	}
	if !n.Submitted() {
		t.Error("Run() returned without submitting")
	}
}

func TestPartTitle(t *testing.T) {
	tests := []struct {
		ex   domain.Exercise
		want string
	}{
		{domain.Exercise{Type: "reading_and_use_of_language7"}, "Reading & Use of English - Part 7"},
		{domain.Exercise{Type: "listening1", Title: "Extracts"}, "Extracts"},
		{domain.Exercise{Type: "speaking2"}, "speaking2"},
	}
	for _, tt := range tests {
		if got := PartTitle(&tt.ex); got != tt.want {
			t.Errorf("PartTitle(%s) = %q; want %q", tt.ex.Type, got, tt.want)
		}
	}
}

func TestFormatRemaining(t *testing.T) {
	tests := map[time.Duration]string{
		0:                              "0:00",
		9 * time.Second:                "0:09",
		5*time.Minute + 30*time.Second: "5:30",
		90 * time.Minute:               "90:00",
		-time.Second:                   "0:00",
	}
	for d, want := range tests {
		if got := FormatRemaining(d); got != want {
			t.Errorf("FormatRemaining(%v) = %q; want %q", d, got, want)
		}
	}
}

func TestProgress_SaveResume(t *testing.T) {
	store, err := local.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	clock := &fakeClock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
	n, _ := New(testExam(), Config{Clock: clock})
	_ = n.Goto(1)

	if err := SaveProgress(store, n); err != nil {
		t.Fatalf("SaveProgress() error = %v", err)
	}
	p, ok, err := LoadProgress(store)
	if err != nil || !ok {
		t.Fatalf("LoadProgress() = %v, %v", ok, err)
	}

	clock.Advance(30 * time.Minute)
	resumed, err := Resume(*p, Config{Clock: clock})
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if resumed.Index() != 1 {
		t.Errorf("Index() = %d; want 1", resumed.Index())
	}
	if got := resumed.Remaining(); got != time.Hour {
		t.Errorf("Remaining() = %v; want 1h", got)
	}

	if err := ClearProgress(store); err != nil {
		t.Fatalf("ClearProgress() error = %v", err)
	}
	if _, ok, _ := LoadProgress(store); ok {
		t.Error("progress still present after clear")
	}
}
