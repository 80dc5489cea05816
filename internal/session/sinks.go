package session

import (
	"context"

	"github.com/c1advanced/c1prep/internal/api"
	"github.com/c1advanced/c1prep/internal/domain"
)

// APISink reports attempts to the backend result endpoint.
type APISink struct {
	Client ResultSubmitter
}

var _ ResultSink = (*APISink)(nil)

// Record submits one attempt. An attempt without an exercise id is sent
// with a null id.
func (s *APISink) Record(ctx context.Context, a domain.Attempt) error {
	sub := api.ResultSubmission{
		UserID:       a.UserID,
		ExerciseType: a.ExerciseType,
		Score:        a.Result.Score,
		Total:        a.Result.Total,
		Mistakes:     a.Result.Mistakes,
	}
	if a.ExerciseID != "" {
		id := a.ExerciseID
		sub.ExerciseID = &id
	}
	if sub.Mistakes == nil {
		sub.Mistakes = []domain.Mistake{}
	}
	return s.Client.SubmitResult(ctx, sub)
}

// SinkFunc adapts a function to ResultSink.
type SinkFunc func(ctx context.Context, a domain.Attempt) error

func (f SinkFunc) Record(ctx context.Context, a domain.Attempt) error { return f(ctx, a) }
