// Package mcp exposes one practice session as MCP tools so an assistant
// can drive exercises: fetch, answer, check, write and submit.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"
	"github.com/google/uuid"

	"github.com/c1advanced/c1prep/internal/domain"
	"github.com/c1advanced/c1prep/internal/exercise"
	"github.com/c1advanced/c1prep/internal/practice"
	"github.com/c1advanced/c1prep/internal/session"
)

// Fetcher gets exercises.
type Fetcher interface {
	Fetch(ctx context.Context, userID, exerciseType string) (*domain.Exercise, practice.Source, error)
}

var _ Fetcher = (*practice.Fetcher)(nil)

// Server wraps the MCP server around a session controller.
type Server struct {
	mcpServer *server.Server
	session   *session.Controller
	fetcher   Fetcher
	identity  session.Identity
	logger    *slog.Logger
	id        string
}

// Config contains configuration for the MCP server
type Config struct {
	Session  *session.Controller
	Fetcher  Fetcher
	Identity session.Identity
	Version  string
	Logger   *slog.Logger
}

// NewServer creates the MCP server.
func NewServer(cfg Config) *Server {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		session:  cfg.Session,
		fetcher:  cfg.Fetcher,
		identity: cfg.Identity,
		logger:   cfg.Logger,
		id:       uuid.NewString(),
	}

	s.mcpServer = server.New(server.Info{
		Name:    "c1prep",
		Version: cfg.Version,
	}, server.WithInstructions(`
c1prep runs C1 Advanced exam practice. One exercise is active at a time.

Workflow:
- c1_fetch loads an exercise by type tag (e.g. reading_and_use_of_language1, listening2, writing1, speaking1)
- objective exercises: c1_answer per question, then c1_check
- writing tasks with options: c1_select_task first
- writing and speaking: c1_write the response, then c1_submit for graded feedback
- c1_next_phase moves through the parts of a speaking task
- c1_status shows the current state; c1_back leaves the exercise

Answers are frozen after c1_check. Essays need at least 220 words.
`))

	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("c1_fetch").
		Description("Fetch a new exercise of the given type and make it active.").
		Handler(s.handleFetch)

	s.mcpServer.Tool("c1_answer").
		Description("Answer one question of the active objective exercise.").
		Handler(s.handleAnswer)

	s.mcpServer.Tool("c1_check").
		Description("Score the answers and reveal the solutions.").
		Handler(s.handleCheck)

	s.mcpServer.Tool("c1_select_task").
		Description("Choose one task of a multi-task writing exercise.").
		Handler(s.handleSelectTask)

	s.mcpServer.Tool("c1_write").
		Description("Set or extend the written response.").
		Handler(s.handleWrite)

	s.mcpServer.Tool("c1_submit").
		Description("Submit the written or spoken response for grading.").
		Handler(s.handleSubmit)

	s.mcpServer.Tool("c1_next_phase").
		Description("Advance to the next part of a speaking task.").
		Handler(s.handleNextPhase)

	s.mcpServer.Tool("c1_status").
		Description("Get the state of the active exercise.").
		Handler(s.handleStatus)

	s.mcpServer.Tool("c1_back").
		Description("Go back: from a chosen task to the task list, otherwise leave the exercise.").
		Handler(s.handleBack)
}

// Input/Output types for tools

type FetchInput struct {
	ExerciseType string `json:"exercise_type" jsonschema:"description=Exercise type tag such as reading_and_use_of_language1 or writing2"`
}

type QuestionView struct {
	Key      string   `json:"key"`
	Question string   `json:"question"`
	Stem     string   `json:"stem,omitempty"`
	Options  []string `json:"options,omitempty"`
	Keyword  string   `json:"keyword,omitempty"`
}

type TaskView struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

type ExerciseOutput struct {
	ID           string         `json:"id,omitempty"`
	Type         string         `json:"type"`
	Title        string         `json:"title,omitempty"`
	Mode         string         `json:"mode"`
	State        string         `json:"state"`
	Source       string         `json:"source,omitempty"`
	Instructions string         `json:"instructions,omitempty"`
	Text         string         `json:"text,omitempty"`
	Prompt       string         `json:"prompt,omitempty"`
	Questions    []QuestionView `json:"questions,omitempty"`
	Tasks        []TaskView     `json:"tasks,omitempty"`
}

type AnswerInput struct {
	Key   string `json:"key,omitempty" jsonschema:"description=Question key from c1_fetch"`
	Index *int   `json:"index,omitempty" jsonschema:"description=Zero-based question index (alternative to key)"`
	Value string `json:"value" jsonschema:"description=Answer text or option letter"`
}

type AnswerOutput struct {
	Accepted bool `json:"accepted"`
	Answered int  `json:"answered"`
}

type EmptyInput struct{}

type CheckOutput struct {
	Score    int              `json:"score"`
	Total    int              `json:"total"`
	Percent  int              `json:"percent"`
	Mistakes []domain.Mistake `json:"mistakes"`
}

type SelectTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"description=Task id from the tasks list"`
}

type WriteInput struct {
	Text   string `json:"text" jsonschema:"description=Response text"`
	Append bool   `json:"append,omitempty" jsonschema:"description=Append to the existing response instead of replacing it"`
}

type WriteOutput struct {
	Accepted  bool `json:"accepted"`
	WordCount int  `json:"word_count"`
}

type FeedbackOutput struct {
	Score       float64             `json:"score"`
	Feedback    string              `json:"feedback"`
	Corrections []domain.Correction `json:"corrections,omitempty"`
	ModelAnswer string              `json:"model_answer,omitempty"`
}

type PhaseOutput struct {
	Phase string `json:"phase"`
}

type StatusOutput struct {
	SessionID string        `json:"session_id"`
	Active    bool          `json:"active"`
	Exercise  *ExerciseView `json:"exercise,omitempty"`
	Answered  int           `json:"answered"`
	WordCount int           `json:"word_count"`
	Phase     string        `json:"phase,omitempty"`
	Checked   *CheckOutput  `json:"result,omitempty"`
	Graded    bool          `json:"graded"`
}

type ExerciseView struct {
	ID    string `json:"id,omitempty"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
	Mode  string `json:"mode"`
	State string `json:"state"`
}

type BackOutput struct {
	Action string `json:"action"`
}

// Tool handlers

func (s *Server) handleFetch(ctx context.Context, input FetchInput) (ExerciseOutput, error) {
	if input.ExerciseType == "" {
		return ExerciseOutput{}, domain.NewValidationError("exercise_type", "required", "an exercise type is required")
	}
	if s.fetcher == nil {
		return ExerciseOutput{}, fmt.Errorf("no exercise source configured")
	}

	ex, src, err := s.fetcher.Fetch(ctx, s.userID(), input.ExerciseType)
	if err != nil {
		return ExerciseOutput{}, explain(err)
	}
	// Built-in tasks keep their id across fetches; start over regardless.
	s.session.Reset()
	if err := s.session.Load(ctx, ex); err != nil {
		return ExerciseOutput{}, fmt.Errorf("load exercise: %w", err)
	}
	s.logger.Info("mcp exercise loaded", "type", ex.Type, "id", ex.ID, "source", src)

	out := describe(s.session.Snapshot())
	out.Source = src.String()
	return out, nil
}

func (s *Server) handleAnswer(ctx context.Context, input AnswerInput) (AnswerOutput, error) {
	var ok bool
	if input.Index != nil {
		ok = s.session.AnswerItem(*input.Index, input.Value)
	} else {
		ok = s.session.Answer(input.Key, input.Value)
	}
	return AnswerOutput{Accepted: ok, Answered: len(s.session.Snapshot().Answers)}, nil
}

func (s *Server) handleCheck(ctx context.Context, _ EmptyInput) (CheckOutput, error) {
	res, err := s.session.Check(ctx)
	if err != nil {
		return CheckOutput{}, err
	}
	return checkOutput(res), nil
}

func (s *Server) handleSelectTask(ctx context.Context, input SelectTaskInput) (ExerciseOutput, error) {
	if err := s.session.SelectTask(input.TaskID); err != nil {
		return ExerciseOutput{}, err
	}
	return describe(s.session.Snapshot()), nil
}

func (s *Server) handleWrite(ctx context.Context, input WriteInput) (WriteOutput, error) {
	var ok bool
	if input.Append {
		ok = s.session.AppendText(input.Text)
	} else {
		ok = s.session.SetText(input.Text)
	}
	return WriteOutput{Accepted: ok, WordCount: s.session.Snapshot().WordCount}, nil
}

func (s *Server) handleSubmit(ctx context.Context, _ EmptyInput) (FeedbackOutput, error) {
	fb, err := s.session.Submit(ctx)
	if err != nil {
		return FeedbackOutput{}, explain(err)
	}
	return FeedbackOutput{
		Score:       fb.Score,
		Feedback:    fb.Feedback,
		Corrections: fb.Corrections,
		ModelAnswer: fb.ModelAnswer,
	}, nil
}

func (s *Server) handleNextPhase(ctx context.Context, _ EmptyInput) (PhaseOutput, error) {
	phase, err := s.session.NextPhase()
	if err != nil {
		return PhaseOutput{Phase: phase.String()}, err
	}
	return PhaseOutput{Phase: phase.String()}, nil
}

func (s *Server) handleStatus(ctx context.Context, _ EmptyInput) (StatusOutput, error) {
	v := s.session.Snapshot()
	out := StatusOutput{
		SessionID: s.id,
		Active:    v.Exercise != nil,
		Answered:  len(v.Answers),
		WordCount: v.WordCount,
		Graded:    v.Feedback != nil,
	}
	if v.Exercise == nil {
		return out, nil
	}
	out.Exercise = &ExerciseView{
		ID:    v.Exercise.ID,
		Type:  v.Exercise.Type,
		Title: v.Exercise.Title,
		Mode:  v.Mode.String(),
		State: v.State.String(),
	}
	if v.Mode == exercise.ModeMultiPhaseSpeaking {
		out.Phase = v.Phase.String()
	}
	if v.Result != nil {
		c := checkOutput(v.Result)
		out.Checked = &c
	}
	return out, nil
}

func (s *Server) handleBack(ctx context.Context, _ EmptyInput) (BackOutput, error) {
	return BackOutput{Action: s.session.Back().String()}, nil
}

func (s *Server) userID() string {
	if s.identity == nil {
		return ""
	}
	if u, ok := s.identity.CurrentUser(); ok {
		return u.UID
	}
	return ""
}

func describe(v session.View) ExerciseOutput {
	ex := v.Exercise
	if ex == nil {
		return ExerciseOutput{State: v.State.String()}
	}
	out := ExerciseOutput{
		ID:           ex.ID,
		Type:         ex.Type,
		Title:        ex.Title,
		Mode:         v.Mode.String(),
		State:        v.State.String(),
		Instructions: ex.Instructions,
		Text:         ex.Text,
	}
	if ex.Content != nil {
		out.Prompt = ex.Content.Question
	}
	for i, item := range ex.Questions {
		q := QuestionView{
			Key:      domain.ItemKey(ex.Questions, i),
			Question: item.Question,
			Stem:     item.Stem,
			Keyword:  item.Keyword,
		}
		for _, o := range item.Options {
			q.Options = append(q.Options, exercise.OptionText(o))
		}
		out.Questions = append(out.Questions, q)
	}
	if v.State == session.StateTaskChoice {
		for _, o := range ex.Options {
			out.Tasks = append(out.Tasks, TaskView{ID: o.ID, Title: o.Title, Text: o.Text})
		}
	}
	return out
}

func checkOutput(res *domain.SessionResult) CheckOutput {
	mistakes := res.Mistakes
	if mistakes == nil {
		mistakes = []domain.Mistake{}
	}
	return CheckOutput{
		Score:    res.Score,
		Total:    res.Total,
		Percent:  res.Percent(),
		Mistakes: mistakes,
	}
}

// explain adds the user-facing hint to entitlement errors.
func explain(err error) error {
	switch {
	case errors.Is(err, domain.ErrLimitReached):
		return fmt.Errorf("%w: upgrade to premium for unlimited practice", err)
	case errors.Is(err, domain.ErrPremiumRequired):
		return fmt.Errorf("%w: speaking grading is a premium feature", err)
	case errors.Is(err, domain.ErrNotAuthenticated):
		return fmt.Errorf("%w: run `c1prep login` first", err)
	}
	return err
}

// ServeStdio starts the MCP server on stdio.
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
