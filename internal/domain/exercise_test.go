package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestChoiceUnmarshal(t *testing.T) {
	raw := `{"type":"reading_and_use_of_language5","questions":[
		{"question":"Q1","options":["A. first","B. second"],"answer":"B"},
		{"question":"Q2","options":[{"text":"third","label":"C"}],"answer":"C"}
	]}`

	var ex Exercise
	if err := json.Unmarshal([]byte(raw), &ex); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(ex.Questions) != 2 {
		t.Fatalf("len(Questions) = %d; want 2", len(ex.Questions))
	}
	if got := ex.Questions[0].Options[1].Text; got != "B. second" {
		t.Errorf("Options[1].Text = %q; want %q", got, "B. second")
	}
	if got := ex.Questions[1].Options[0]; got.Text != "third" || got.Label != "C" {
		t.Errorf("Options[0] = %+v; want {third C}", got)
	}
}

func TestExerciseLegacyInstruction(t *testing.T) {
	var ex Exercise
	if err := json.Unmarshal([]byte(`{"type":"speaking","instruction":"Talk."}`), &ex); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if ex.Instructions != "Talk." {
		t.Errorf("Instructions = %q; want %q", ex.Instructions, "Talk.")
	}

	if err := json.Unmarshal([]byte(`{"type":"speaking","instructions":"A","instruction":"B"}`), &ex); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if ex.Instructions != "A" {
		t.Errorf("Instructions = %q; want %q", ex.Instructions, "A")
	}
}

func TestExerciseHasContentBlock(t *testing.T) {
	tests := []struct {
		name string
		ex   Exercise
		want bool
	}{
		{"plain text only", Exercise{Text: "stimulus"}, false},
		{"content", Exercise{Content: &Content{Question: "q"}}, true},
		{"options", Exercise{Options: []TaskOption{{ID: "a", Text: "t"}}}, true},
		{"speaking phases", Exercise{Part3CentralQuestion: "why?"}, true},
		{"part 4 only", Exercise{Part4Questions: []string{"q"}}, true},
		{"empty", Exercise{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ex.HasContentBlock(); got != tt.want {
				t.Errorf("HasContentBlock() = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestExerciseIdentity(t *testing.T) {
	a := &Exercise{ID: "1", Title: "T"}
	b := &Exercise{ID: "1", Title: "T", Text: "other"}
	c := &Exercise{ID: "1", Title: "U"}
	var nilEx *Exercise

	if a.Identity() != b.Identity() {
		t.Error("same id and title should share identity")
	}
	if a.Identity() == c.Identity() {
		t.Error("different title should change identity")
	}
	if nilEx.Identity() != "" {
		t.Error("nil exercise identity should be empty")
	}
}

func TestItemKey(t *testing.T) {
	items := []Item{
		{Question: "1"},
		{Question: ""},
		{Question: "dup"},
		{Question: "dup"},
	}
	want := []string{"1", "1", "2", "3"}
	for i := range items {
		if got := ItemKey(items, i); got != want[i] {
			t.Errorf("ItemKey(%d) = %q; want %q", i, got, want[i])
		}
	}
}

func TestTaskPrompt(t *testing.T) {
	ex := &Exercise{
		Instructions: "Write an essay.",
		Content:      &Content{InputText: "Notes from a seminar.", Question: "Which is most important?"},
	}
	want := "Write an essay. Notes from a seminar. Which is most important?"
	if got := ex.TaskPrompt(); got != want {
		t.Errorf("TaskPrompt() = %q; want %q", got, want)
	}
}

func TestTaskOptionAsExercise(t *testing.T) {
	parent := &Exercise{ID: "w2", Type: "writing2", Level: "C1", Instructions: "Choose one."}
	opt := TaskOption{ID: "review_app", Title: "Review", Text: "Write a review."}

	got := opt.AsExercise(parent)
	if got.Title != "Review" || got.Text != "Write a review." || got.Type != "writing2" {
		t.Errorf("AsExercise() = %+v", got)
	}
	if got.HasContentBlock() {
		t.Error("chosen task should not carry a content block")
	}
}

func TestSessionResultPercent(t *testing.T) {
	tests := []struct {
		r    *SessionResult
		want int
	}{
		{nil, 0},
		{&SessionResult{Score: 0, Total: 0}, 0},
		{&SessionResult{Score: 1, Total: 3}, 33},
		{&SessionResult{Score: 2, Total: 3}, 67},
		{&SessionResult{Score: 8, Total: 8}, 100},
	}
	for _, tt := range tests {
		if got := tt.r.Percent(); got != tt.want {
			t.Errorf("Percent(%+v) = %d; want %d", tt.r, got, tt.want)
		}
	}
}

func TestGradingFeedbackKeepsRaw(t *testing.T) {
	raw := `{"score":4.5,"feedback":"Good range.","band":"C1"}`
	var f GradingFeedback
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if f.Score != 4.5 || f.Feedback != "Good range." {
		t.Errorf("feedback = %+v", f)
	}
	if string(f.Extra) != raw {
		t.Errorf("Extra = %s; want raw document", f.Extra)
	}
	if f.Empty() {
		t.Error("Empty() = true; want false")
	}
}

func TestIsEntitlement(t *testing.T) {
	if !IsEntitlement(ErrLimitReached) || !IsEntitlement(ErrPremiumRequired) {
		t.Error("limit and premium errors should be entitlement errors")
	}
	if IsEntitlement(ErrOffline) {
		t.Error("offline is not an entitlement error")
	}
	wrapped := errors.Join(errors.New("fetch"), ErrLimitReached)
	if !IsEntitlement(wrapped) {
		t.Error("wrapped limit error should be an entitlement error")
	}
}

func TestValidationErrors(t *testing.T) {
	err := NewValidationError("text", "min_words", "write at least %d words (currently %d)", 220, 150)
	want := "text: write at least 220 words (currently 150)"
	if err.Error() != want {
		t.Errorf("Error() = %q; want %q", err.Error(), want)
	}

	var ve ValidationErrors
	if !errors.As(error(err), &ve) || ve[0].Rule != "min_words" {
		t.Errorf("errors.As failed or wrong rule: %+v", ve)
	}
}
