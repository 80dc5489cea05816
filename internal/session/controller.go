// Package session implements the exercise session controller: it owns one
// fetched payload from arrival to reset, captures answers, scores
// objective items and orchestrates grading for open-ended tasks.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c1advanced/c1prep/internal/api"
	"github.com/c1advanced/c1prep/internal/domain"
	"github.com/c1advanced/c1prep/internal/exercise"
	"github.com/c1advanced/c1prep/internal/recorder"
	"github.com/c1advanced/c1prep/internal/validator"
	"github.com/google/uuid"
)

const (
	DefaultMinEssayWords    = 220
	DefaultMinResponseChars = 10
	defaultDetachedTimeout  = 60 * time.Second
)

// Config wires a controller to its collaborators. Only Identity is
// required; a nil collaborator disables the feature that needs it.
type Config struct {
	Level            string
	MinEssayWords    int
	MinResponseChars int

	Identity    Identity
	Preloader   Preloader
	Grader      Grader
	Transcriber Transcriber
	Reporter    Reporter
	Audio       AudioSource
	Microphone  recorder.Microphone
	// RecordingMIMEType labels recorded clips; empty means the recorder
	// default.
	RecordingMIMEType string

	// Sinks receive results only when a user is signed in.
	Sinks []ResultSink
	// LocalSinks receive every result.
	LocalSinks []ResultSink

	// OnExit is invoked when back navigation leaves the exercise.
	OnExit func()

	DetachedTimeout time.Duration
	Logger          *slog.Logger
}

// Controller is the exercise session controller. It is safe for
// concurrent use; detached tasks never mutate state for a payload that
// has since been replaced.
type Controller struct {
	cfg    Config
	logger *slog.Logger
	wg     sync.WaitGroup

	mu         sync.Mutex
	generation uint64
	payload    *domain.Exercise
	active     *domain.Exercise
	mode       exercise.Mode
	state      State

	answers  domain.AnswerMap
	result   *domain.SessionResult
	feedback *domain.GradingFeedback

	text     string
	selected string
	phase    int
	backUsed bool

	audioPath   string
	audioLocked bool
	preloaded   bool

	grading       bool
	starting      bool
	transcribing  bool
	rec           *recorder.Session
	transcribeErr error
}

// New creates a controller in the idle state.
func New(cfg Config) *Controller {
	if cfg.Level == "" {
		cfg.Level = "C1"
	}
	if cfg.MinEssayWords <= 0 {
		cfg.MinEssayWords = DefaultMinEssayWords
	}
	if cfg.MinResponseChars <= 0 {
		cfg.MinResponseChars = DefaultMinResponseChars
	}
	if cfg.DetachedTimeout <= 0 {
		cfg.DetachedTimeout = defaultDetachedTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		cfg:     cfg,
		logger:  cfg.Logger,
		answers: domain.AnswerMap{},
	}
}

// Load makes ex the active payload. A payload with a different identity
// resets every piece of session state; reloading the active payload keeps
// the session as it is.
func (c *Controller) Load(ctx context.Context, ex *domain.Exercise) error {
	if ex == nil {
		return domain.ErrNoExercise
	}
	if err := validator.Default().Struct(ex); err != nil {
		return fmt.Errorf("load exercise: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.payload != nil && sameIdentity(c.payload, ex) {
		return nil
	}

	c.resetLocked()
	c.payload = ex
	c.active = ex
	c.mode = exercise.Classify(ex, "")
	if c.mode == exercise.ModeMultiTaskChoice {
		c.state = StateTaskChoice
	} else {
		c.state = StateInteractive
	}

	c.logger.Debug("exercise loaded",
		"id", ex.ID,
		"type", ex.Type,
		"mode", c.mode.String(),
		"state", c.state.String())

	if c.mode.IsObjective() && !c.preloaded && c.cfg.Preloader != nil {
		c.preloaded = true
		tag, level := ex.Type, c.cfg.Level
		c.detach(ctx, "preload", func(ctx context.Context) error {
			return c.cfg.Preloader.Preload(ctx, tag, level)
		})
	}

	if ex.IsListening() && (ex.Text != "" || ex.AudioBase64 != "") {
		c.startListeningAudio(ctx, ex)
	}
	return nil
}

func sameIdentity(a, b *domain.Exercise) bool {
	if a.ID == "" && a.Title == "" {
		return false
	}
	return a.Identity() == b.Identity()
}

func (c *Controller) startListeningAudio(ctx context.Context, ex *domain.Exercise) {
	user, ok := c.cfg.Identity.CurrentUser()
	if !ok || !user.IsVIP {
		c.audioLocked = true
		return
	}
	if c.cfg.Audio == nil {
		return
	}

	gen := c.generation
	c.detach(ctx, "listening audio", func(ctx context.Context) error {
		path, err := c.cfg.Audio.ListeningAudio(ctx, ex)
		if err != nil {
			return err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if gen == c.generation {
			c.audioPath = path
		}
		return nil
	})
}

// Reset returns the controller to idle, discarding the active payload.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// resetLocked clears all per-payload state. In-flight work for the old
// payload is invalidated by bumping the generation.
func (c *Controller) resetLocked() {
	c.generation++

	if rec := c.rec; rec != nil {
		c.rec = nil
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if _, err := rec.Stop(); err != nil {
				c.logger.Debug("stop abandoned recording", "error", err)
			}
		}()
	}

	c.payload = nil
	c.active = nil
	c.mode = 0
	c.state = StateIdle
	c.answers = domain.AnswerMap{}
	c.result = nil
	c.feedback = nil
	c.text = ""
	c.selected = ""
	c.phase = 0
	c.backUsed = false
	c.audioPath = ""
	c.audioLocked = false
	c.preloaded = false
	c.grading = false
	c.starting = false
	c.transcribing = false
	c.transcribeErr = nil
}

// Answer records value for the item keyed key. It reports false, changing
// nothing, once answers are revealed or when the mode takes no answers.
func (c *Controller) Answer(key, value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.acceptsAnswersLocked() {
		return false
	}
	for i := range c.active.Questions {
		if domain.ItemKey(c.active.Questions, i) == key {
			c.answers[key] = value
			return true
		}
	}
	return false
}

// AnswerItem records what the user typed for the item at position idx.
// For choice items a letter selects the option by position.
func (c *Controller) AnswerItem(idx int, input string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.acceptsAnswersLocked() || idx < 0 || idx >= len(c.active.Questions) {
		return false
	}
	key := domain.ItemKey(c.active.Questions, idx)
	c.answers[key] = exercise.ChoiceValue(c.active.Questions[idx], input)
	return true
}

func (c *Controller) acceptsAnswersLocked() bool {
	return c.active != nil && c.state == StateInteractive && c.mode.IsObjective()
}

// Check scores the answers, freezes them and reports the result. Checking
// again returns the same result without reporting twice.
func (c *Controller) Check(ctx context.Context) (*domain.SessionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil {
		return nil, domain.ErrNoExercise
	}
	if !c.mode.IsObjective() {
		return nil, domain.ErrWrongMode
	}
	if c.result != nil {
		return copyResult(c.result), nil
	}
	if c.state != StateInteractive {
		return nil, domain.ErrWrongMode
	}

	c.result = exercise.Score(c.active, c.answers)
	c.state = StateRevealed

	c.logger.Info("answers checked",
		"type", c.active.Type,
		"score", c.result.Score,
		"total", c.result.Total)

	attempt := domain.Attempt{
		ID:           uuid.New().String(),
		ExerciseType: c.active.Type,
		ExerciseID:   c.active.ID,
		Title:        c.active.Title,
		Result:       *copyResult(c.result),
		CompletedAt:  time.Now().UTC(),
	}
	if user, ok := c.cfg.Identity.CurrentUser(); ok {
		attempt.UserID = user.UID
		c.publish(ctx, attempt, c.cfg.Sinks)
	}
	c.publish(ctx, attempt, c.cfg.LocalSinks)

	return copyResult(c.result), nil
}

func (c *Controller) publish(ctx context.Context, attempt domain.Attempt, sinks []ResultSink) {
	for _, sink := range sinks {
		sink := sink
		c.detach(ctx, "record result", func(ctx context.Context) error {
			return sink.Record(ctx, attempt)
		})
	}
}

// SelectTask chooses one option of a task-choice payload and makes it the
// active content.
func (c *Controller) SelectTask(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.payload == nil {
		return domain.ErrNoExercise
	}
	if c.state != StateTaskChoice {
		return domain.ErrWrongMode
	}
	opt, ok := c.payload.Option(id)
	if !ok {
		return fmt.Errorf("select task %q: %w", id, domain.ErrUnknownTask)
	}

	c.selected = id
	c.active = opt.AsExercise(c.payload)
	c.mode = exercise.Classify(c.payload, id)
	c.state = StateInteractive
	c.text = ""
	return nil
}

// SetText replaces the free-text buffer. It reports false when the mode
// takes no text. Editing stays possible after feedback is shown.
func (c *Controller) SetText(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.acceptsTextLocked() {
		return false
	}
	c.text = text
	return true
}

// AppendText appends to the free-text buffer with a separating space.
func (c *Controller) AppendText(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.acceptsTextLocked() {
		return false
	}
	c.text = exercise.AppendTranscript(c.text, text)
	return true
}

func (c *Controller) acceptsTextLocked() bool {
	return c.active != nil &&
		(c.state == StateInteractive || c.state == StateFeedbackShown) &&
		c.mode.IsCreative() && c.mode != exercise.ModeMultiTaskChoice
}

// Submit sends the free-text buffer for grading. Preconditions are checked
// before any request; on failure the session stays editable.
func (c *Controller) Submit(ctx context.Context) (*domain.GradingFeedback, error) {
	c.mu.Lock()

	req, speaking, err := c.prepareSubmitLocked()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.cfg.Grader == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("submit: no grader configured")
	}
	c.grading = true
	gen := c.generation
	c.mu.Unlock()

	var fb *domain.GradingFeedback
	if speaking {
		fb, err = c.cfg.Grader.GradeSpeaking(ctx, req)
	} else {
		fb, err = c.cfg.Grader.GradeWriting(ctx, req)
	}
	if err == nil && fb == nil {
		err = fmt.Errorf("grader returned no feedback")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return nil, ErrSuperseded
	}
	c.grading = false
	if err != nil {
		c.logger.Warn("grading failed", "type", c.active.Type, "error", err)
		return nil, fmt.Errorf("grade submission: %w", err)
	}

	c.feedback = fb
	c.state = StateFeedbackShown
	c.logger.Info("submission graded", "type", c.active.Type, "score", fb.Score)
	return copyFeedback(fb), nil
}

func (c *Controller) prepareSubmitLocked() (api.GradeRequest, bool, error) {
	var req api.GradeRequest

	switch {
	case c.active == nil:
		return req, false, domain.ErrNoExercise
	case c.state == StateFeedbackShown:
		return req, false, domain.ErrAlreadyGraded
	case !c.acceptsTextLocked():
		return req, false, domain.ErrWrongMode
	case c.grading:
		return req, false, domain.ErrGradingInFlight
	case c.rec != nil || c.starting:
		return req, false, domain.ErrRecordingActive
	case c.transcribing:
		return req, false, domain.ErrTranscribing
	}

	if err := c.checkLengthLocked(); err != nil {
		return req, false, err
	}

	user, ok := c.cfg.Identity.CurrentUser()
	if !ok {
		return req, false, domain.ErrNotAuthenticated
	}
	speaking := c.isSpeakingLocked()
	if speaking && !user.IsVIP {
		return req, false, domain.ErrPremiumRequired
	}

	req = api.GradeRequest{
		UserID:   user.UID,
		TaskText: gradingPrompt(c.active, c.mode),
		UserText: c.text,
		Level:    c.cfg.Level,
	}
	if err := validator.Default().Struct(req); err != nil {
		return req, false, err
	}
	return req, speaking, nil
}

func (c *Controller) checkLengthLocked() error {
	if c.mode == exercise.ModeLongFormWriting {
		n := exercise.WordCount(c.text)
		if n < c.cfg.MinEssayWords {
			return domain.NewValidationError("text", "min_words",
				"write at least %d words (currently %d)", c.cfg.MinEssayWords, n)
		}
		return nil
	}
	n := exercise.CharCount(c.text)
	if n == 0 || n < c.cfg.MinResponseChars {
		return domain.NewValidationError("text", "min_chars",
			"answer is too short (%d characters, need %d)", n, c.cfg.MinResponseChars)
	}
	return nil
}

func (c *Controller) isSpeakingLocked() bool {
	return c.payload.IsSpeaking() || c.mode == exercise.ModeMultiPhaseSpeaking
}

// NextPhase advances a multi-phase speaking task.
func (c *Controller) NextPhase() (exercise.Phase, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != exercise.ModeMultiPhaseSpeaking || c.state != StateInteractive {
		return exercise.Phases[c.phase], domain.ErrWrongMode
	}
	if c.phase >= len(exercise.Phases)-1 {
		return exercise.Phases[c.phase], domain.ErrPhaseOutOfBounds
	}
	c.phase++
	return exercise.Phases[c.phase], nil
}

// Phase returns the current speaking phase.
func (c *Controller) Phase() exercise.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return exercise.Phases[c.phase]
}

// Back handles one back navigation. The first back with a chosen task
// returns to the task list; otherwise the exit collaborator runs and the
// controller resets.
func (c *Controller) Back() BackAction {
	c.mu.Lock()
	if !c.backUsed && c.selected != "" && c.state == StateInteractive {
		c.backUsed = true
		c.selected = ""
		c.active = c.payload
		c.mode = exercise.Classify(c.payload, "")
		c.state = StateTaskChoice
		c.text = ""
		c.mu.Unlock()
		return BackCollapsedTask
	}
	c.resetLocked()
	c.mu.Unlock()

	if c.cfg.OnExit != nil {
		c.cfg.OnExit()
	}
	return BackExited
}

// ReportIssue flags the question at index of the active payload.
func (c *Controller) ReportIssue(ctx context.Context, index int, reason string) error {
	c.mu.Lock()
	payload := c.payload
	c.mu.Unlock()

	if payload == nil {
		return domain.ErrNoExercise
	}
	if c.cfg.Reporter == nil {
		return fmt.Errorf("report issue: no reporter configured")
	}
	if len(payload.Questions) > 0 && (index < 0 || index >= len(payload.Questions)) {
		return domain.NewValidationError("question_index", "range",
			"question %d does not exist", index+1)
	}
	if reason == "" {
		return domain.NewValidationError("reason", "required", "a reason is required")
	}

	report := domain.IssueReport{
		UserID:        "anonymous",
		ExerciseID:    payload.ID,
		QuestionIndex: index,
		Reason:        reason,
		Exercise:      payload,
	}
	if user, ok := c.cfg.Identity.CurrentUser(); ok {
		report.UserID = user.UID
	}
	if err := c.cfg.Reporter.ReportIssue(ctx, report); err != nil {
		return fmt.Errorf("report issue: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	answers := make(domain.AnswerMap, len(c.answers))
	for k, v := range c.answers {
		answers[k] = v
	}
	v := View{
		Payload:      c.payload,
		Exercise:     c.active,
		Mode:         c.mode,
		State:        c.state,
		Answers:      answers,
		Result:       copyResult(c.result),
		Feedback:     copyFeedback(c.feedback),
		Text:         c.text,
		WordCount:    exercise.WordCount(c.text),
		Selected:     c.selected,
		Phase:        exercise.Phases[c.phase],
		AudioPath:    c.audioPath,
		AudioLocked:  c.audioLocked,
		Recording:    c.rec != nil || c.starting,
		Transcribing: c.transcribing,
		Grading:      c.grading,
	}
	if c.transcribeErr != nil {
		v.TranscribeError = c.transcribeErr.Error()
	}
	return v
}

// Wait blocks until every detached task has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// detach runs fn in the background. Errors are logged and never surfaced;
// the caller's cancellation does not reach fn.
func (c *Controller) detach(ctx context.Context, name string, fn func(context.Context) error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.DetachedTimeout)
		defer cancel()
		if err := fn(dctx); err != nil {
			c.logger.Warn("background task failed", "task", name, "error", err)
		}
	}()
}

func copyResult(r *domain.SessionResult) *domain.SessionResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Mistakes = append([]domain.Mistake{}, r.Mistakes...)
	return &out
}

func copyFeedback(f *domain.GradingFeedback) *domain.GradingFeedback {
	if f == nil {
		return nil
	}
	out := *f
	out.Corrections = append([]domain.Correction(nil), f.Corrections...)
	return &out
}
