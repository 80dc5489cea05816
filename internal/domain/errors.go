package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// Every failure a practice session can hit is one of these, a
// ValidationErrors value, or a wrapped transport error. Callers convert
// them into a one-line message; none of them is fatal.
// -----------------------------------------------------------------------------

// Connectivity errors
var (
	ErrOffline           = errors.New("no connection to the practice server")
	ErrOfflineCacheEmpty = errors.New("offline pack is empty")
)

// Entitlement errors
var (
	ErrLimitReached    = errors.New("daily limit reached")
	ErrPremiumRequired = errors.New("premium subscription required")
)

// Identity errors
var (
	ErrNotAuthenticated = errors.New("not signed in")
)

// Exercise errors
var (
	ErrNoExercise  = errors.New("no active exercise")
	ErrUnknownTask = errors.New("unknown task option")
	ErrNoMistakes  = errors.New("no mistakes to review")
	ErrInvalidExam = errors.New("exam has no parts")
)

// Session state errors
var (
	ErrWrongMode        = errors.New("operation not available in this mode")
	ErrRecordingActive  = errors.New("recording in progress")
	ErrNotRecording     = errors.New("not recording")
	ErrAlreadyGraded    = errors.New("feedback already shown")
	ErrGradingInFlight  = errors.New("grading already in progress")
	ErrTranscribing     = errors.New("transcription in progress")
	ErrPhaseOutOfBounds = errors.New("no further speaking phase")
)

// IsEntitlement reports whether err should route the user to the upsell
// prompt rather than being shown as a failure.
func IsEntitlement(err error) bool {
	return errors.Is(err, ErrLimitReached) || errors.Is(err, ErrPremiumRequired)
}
