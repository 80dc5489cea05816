package exercise

import (
	"reflect"
	"testing"

	"github.com/c1advanced/c1prep/internal/domain"
)

func TestIsCorrect(t *testing.T) {
	tests := []struct {
		name    string
		user    string
		correct string
		want    bool
	}{
		{"case insensitive", "although", "ALTHOUGH", true},
		{"label stripped", "inevitable", "B) inevitable", true},
		{"dot label", "inevitable", "b. inevitable", true},
		{"raw form with label", "b) inevitable", "B) inevitable", true},
		{"bare letter answer", "c", "C", true},
		{"surrounding spaces", "  although ", "although", true},
		{"wrong", "despite", "although", false},
		{"empty answer", "", "", false},
		{"label beyond D kept", "inevitable", "E) inevitable", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCorrect(tt.user, tt.correct); got != tt.want {
				t.Errorf("IsCorrect(%q, %q) = %v; want %v", tt.user, tt.correct, got, tt.want)
			}
		})
	}
}

func TestScoreScenarios(t *testing.T) {
	ex := &domain.Exercise{
		Type:      "reading_and_use_of_language2",
		Questions: []domain.Item{{Question: "1", Answer: "ALTHOUGH"}},
	}

	res := Score(ex, domain.AnswerMap{"1": "although"})
	if res.Score != 1 || res.Total != 1 || len(res.Mistakes) != 0 {
		t.Errorf("answered: got %d/%d mistakes=%d; want 1/1 mistakes=0", res.Score, res.Total, len(res.Mistakes))
	}

	res = Score(ex, domain.AnswerMap{"1": ""})
	if res.Score != 0 || res.Total != 1 {
		t.Fatalf("unanswered: got %d/%d; want 0/1", res.Score, res.Total)
	}
	if len(res.Mistakes) != 1 {
		t.Fatalf("len(Mistakes) = %d; want 1", len(res.Mistakes))
	}
	m := res.Mistakes[0]
	if m.UserAnswer != "" || m.CorrectAnswer != "ALTHOUGH" || m.Type != "reading_and_use_of_language2" {
		t.Errorf("mistake = %+v", m)
	}

	res = Score(ex, domain.AnswerMap{})
	if res.Score != 0 || len(res.Mistakes) != 1 {
		t.Errorf("missing key: got score %d mistakes %d; want 0 and 1", res.Score, len(res.Mistakes))
	}
}

func TestScoreIdempotent(t *testing.T) {
	ex := &domain.Exercise{
		Type: "reading_and_use_of_language5",
		Questions: []domain.Item{
			{Question: "Q1", Answer: "A. first"},
			{Question: "", Answer: "B) second"},
			{Question: "Q3", Answer: "C"},
		},
	}
	answers := domain.AnswerMap{"Q1": "first", "1": "wrong"}

	a := Score(ex, answers)
	b := Score(ex, answers)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Score() not idempotent: %+v vs %+v", a, b)
	}
	if a.Score != 1 || a.Total != 3 {
		t.Errorf("Score() = %d/%d; want 1/3", a.Score, a.Total)
	}
	if len(answers) != 2 {
		t.Error("Score() must not modify the answer map")
	}
}

func TestChoiceValue(t *testing.T) {
	item := domain.Item{Options: []domain.Choice{{Text: "A. inevitable"}, {Text: "B. unlikely"}}}

	tests := []struct {
		input string
		want  string
	}{
		{"a", "inevitable"},
		{"B", "unlikely"},
		{"Unlikely", "unlikely"},
		{"B. unlikely", "unlikely"},
		{"Z", "z"},
	}
	for _, tt := range tests {
		if got := ChoiceValue(item, tt.input); got != tt.want {
			t.Errorf("ChoiceValue(%q) = %q; want %q", tt.input, got, tt.want)
		}
	}

	free := domain.Item{}
	if got := ChoiceValue(free, "  Although "); got != "Although" {
		t.Errorf("ChoiceValue(free) = %q; want %q", got, "Although")
	}
}

func TestTextHelpers(t *testing.T) {
	if got := WordCount("  one two\nthree\tfour "); got != 4 {
		t.Errorf("WordCount() = %d; want 4", got)
	}
	if got := CharCount("  héllo  "); got != 5 {
		t.Errorf("CharCount() = %d; want 5", got)
	}

	tests := []struct {
		buffer, text, want string
	}{
		{"", "hello", "hello"},
		{"I think", "it is fine", "I think it is fine"},
		{"I think ", " ok ", "I think ok"},
		{"keep me", "", "keep me"},
	}
	for _, tt := range tests {
		if got := AppendTranscript(tt.buffer, tt.text); got != tt.want {
			t.Errorf("AppendTranscript(%q, %q) = %q; want %q", tt.buffer, tt.text, got, tt.want)
		}
	}
}
