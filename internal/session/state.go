package session

import (
	"errors"

	"github.com/c1advanced/c1prep/internal/domain"
	"github.com/c1advanced/c1prep/internal/exercise"
)

// ErrSuperseded is returned when the payload was replaced while an
// operation was in flight. Its result has been discarded.
var ErrSuperseded = errors.New("exercise replaced while request was in flight")

// State is the lifecycle state of the active payload.
type State int

const (
	StateIdle State = iota
	StateTaskChoice
	StateInteractive
	StateRevealed
	StateFeedbackShown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTaskChoice:
		return "task-choice"
	case StateInteractive:
		return "interactive"
	case StateRevealed:
		return "revealed"
	case StateFeedbackShown:
		return "feedback-shown"
	default:
		return "unknown"
	}
}

// Terminal reports whether the payload accepts no further input.
func (s State) Terminal() bool {
	return s == StateRevealed || s == StateFeedbackShown
}

// BackAction is what a back navigation did.
type BackAction int

const (
	// BackCollapsedTask returned from a chosen task to the task list.
	BackCollapsedTask BackAction = iota
	// BackExited left the exercise through the exit collaborator.
	BackExited
)

func (b BackAction) String() string {
	if b == BackCollapsedTask {
		return "collapsed-task"
	}
	return "exited"
}

// View is a read-only snapshot for renderers.
type View struct {
	Payload  *domain.Exercise // as fetched
	Exercise *domain.Exercise // active content; the chosen task for choice payloads
	Mode     exercise.Mode
	State    State

	Answers  domain.AnswerMap
	Result   *domain.SessionResult
	Feedback *domain.GradingFeedback

	Text      string
	WordCount int
	Selected  string
	Phase     exercise.Phase

	AudioPath   string
	AudioLocked bool

	Recording       bool
	Transcribing    bool
	Grading         bool
	TranscribeError string
}
