package domain

import (
	"encoding/json"
	"time"
)

// Mistake is one incorrectly answered item.
type Mistake struct {
	Question      string `json:"question"`
	Stem          string `json:"stem,omitempty"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	Type          string `json:"type,omitempty"`
}

// SessionResult is the outcome of checking an objective payload.
type SessionResult struct {
	Score    int       `json:"score"`
	Total    int       `json:"total"`
	Mistakes []Mistake `json:"mistakes"`
}

// Percent returns the score as a rounded percentage.
func (r *SessionResult) Percent() int {
	if r == nil || r.Total == 0 {
		return 0
	}
	return (r.Score*100 + r.Total/2) / r.Total
}

// Attempt is a finished result together with the context it was produced
// in. It is what result sinks receive.
type Attempt struct {
	ID           string        `json:"id"`
	UserID       string        `json:"user_id"`
	ExerciseType string        `json:"exercise_type"`
	ExerciseID   string        `json:"exercise_id"`
	Title        string        `json:"title,omitempty"`
	Result       SessionResult `json:"result"`
	CompletedAt  time.Time     `json:"completed_at"`
}

// GradingFeedback is the grader's response for an open-ended submission.
// It is display-only; beyond presence checks nothing interprets it.
type GradingFeedback struct {
	Score       float64         `json:"score"`
	Feedback    string          `json:"feedback"`
	Corrections []Correction    `json:"corrections,omitempty"`
	ModelAnswer string          `json:"model_answer,omitempty"`
	Extra       json.RawMessage `json:"-"`
}

// Correction is one suggested rewrite in graded feedback.
type Correction struct {
	Original    string `json:"original"`
	Corrected   string `json:"corrected"`
	Explanation string `json:"explanation,omitempty"`
}

// UnmarshalJSON keeps the raw document so renderers can show fields the
// client does not model (sub-scores, band descriptors).
func (f *GradingFeedback) UnmarshalJSON(data []byte) error {
	type alias GradingFeedback
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*f = GradingFeedback(a)
	f.Extra = append(json.RawMessage(nil), data...)
	return nil
}

// Empty reports whether the feedback carries nothing to show.
func (f *GradingFeedback) Empty() bool {
	return f == nil || (f.Feedback == "" && f.Score == 0 && len(f.Corrections) == 0 && f.ModelAnswer == "")
}
