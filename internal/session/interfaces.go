package session

import (
	"context"

	"github.com/c1advanced/c1prep/internal/api"
	"github.com/c1advanced/c1prep/internal/domain"
)

// Identity is the read-only view of the signed-in user. The controller
// never mutates it.
type Identity interface {
	CurrentUser() (*domain.User, bool)
}

// Preloader receives the pre-generation hint for the next exercise.
type Preloader interface {
	Preload(ctx context.Context, exerciseType, level string) error
}

// Grader grades open-ended work.
type Grader interface {
	GradeWriting(ctx context.Context, req api.GradeRequest) (*domain.GradingFeedback, error)
	GradeSpeaking(ctx context.Context, req api.GradeRequest) (*domain.GradingFeedback, error)
}

// Transcriber turns one recorded clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Reporter files issue reports for broken questions.
type Reporter interface {
	ReportIssue(ctx context.Context, report domain.IssueReport) error
}

// AudioSource renders the audio of a listening payload and returns a
// playable file path.
type AudioSource interface {
	ListeningAudio(ctx context.Context, ex *domain.Exercise) (string, error)
}

// ResultSink receives finished objective attempts.
type ResultSink interface {
	Record(ctx context.Context, attempt domain.Attempt) error
}

// ResultSubmitter is the backend call behind the API result sink.
type ResultSubmitter interface {
	SubmitResult(ctx context.Context, sub api.ResultSubmission) error
}

var (
	_ Preloader       = (*api.Client)(nil)
	_ Grader          = (*api.Client)(nil)
	_ Transcriber     = (*api.Client)(nil)
	_ Reporter        = (*api.Client)(nil)
	_ ResultSubmitter = (*api.Client)(nil)
)
