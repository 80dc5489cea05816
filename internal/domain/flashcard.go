package domain

// Flashcard is one vocabulary card from the user's deck.
type Flashcard struct {
	ID         string `json:"id"`
	Front      string `json:"front"`
	Back       string `json:"back"`
	Example    string `json:"example,omitempty"`
	Status     string `json:"status,omitempty"`
	NextReview string `json:"next_review,omitempty"`
}

// Exam is a generated full mock exam.
type Exam struct {
	DurationMinutes int        `json:"duration_minutes"`
	Parts           []Exercise `json:"parts"`
}

// IssueReport flags a broken question in a payload.
type IssueReport struct {
	UserID        string    `json:"user_id"`
	ExerciseID    string    `json:"exercise_id"`
	QuestionIndex int       `json:"question_index"`
	Reason        string    `json:"reason"`
	Exercise      *Exercise `json:"exercise_data"`
}
