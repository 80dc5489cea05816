package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/c1advanced/c1prep/internal/domain"
	"github.com/c1advanced/c1prep/internal/exercise"
	"github.com/c1advanced/c1prep/internal/history"
	"github.com/c1advanced/c1prep/internal/practice"
	"github.com/c1advanced/c1prep/internal/session"
)

const (
	audioWait     = 20 * time.Second
	recordingWait = 2 * time.Minute
	pollInterval  = 100 * time.Millisecond
)

// cmdPractice fetches one exercise and plays it.
func cmdPractice(args []string, opts globalOptions) error {
	audioFile, args := flagValue(args, "--audio")
	if len(args) < 1 {
		return fmt.Errorf("exercise type required, one of:\n  %s", strings.Join(sortedTags(), "\n  "))
	}
	tag := args[0]
	if !exercise.IsKnownTag(tag) {
		return fmt.Errorf("unknown exercise type %q", tag)
	}

	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	con := newConsole(stdin, stdout)
	con.printf("Fetching %s...\n", tag)
	ex, src, err := a.fetcher.Fetch(ctx, a.userID(), tag)
	if err != nil {
		return err
	}
	switch src {
	case practice.SourceOffline:
		con.println("(offline: serving a downloaded exercise)")
	case practice.SourceFallback:
		con.println("(the generator is busy: using a stored task)")
	}

	ctrl := a.newSession(audioFile)
	defer ctrl.Wait()
	run := a.practiceRun(ctrl, con)
	return run.run(ctx, ex)
}

// cmdReview plays an exercise built from the user's mistakes.
func cmdReview(opts globalOptions) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	uid, err := a.requireUser()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	con := newConsole(stdin, stdout)
	con.println("Building your review...")
	ex, err := a.client.GenerateReview(ctx, uid)
	if err != nil {
		return err
	}

	ctrl := a.newSession("")
	defer ctrl.Wait()
	run := a.practiceRun(ctrl, con)
	return run.run(ctx, ex)
}

func (a *app) practiceRun(ctrl *session.Controller, con *console) *practiceRun {
	return &practiceRun{
		ctrl:     ctrl,
		con:      con,
		history:  a.history,
		logger:   a.logger,
		minWords: a.cfg.Practice.MinEssayWords,
	}
}

func sortedTags() []string {
	tags := exercise.Tags()
	sort.Strings(tags)
	return tags
}

// practiceRun plays one payload through a session controller on a console.
type practiceRun struct {
	ctrl    *session.Controller
	con     *console
	history *history.Service
	logger  *slog.Logger

	minWords int

	// inExam leaves objective answers unchecked; the exam checks them
	// when it is submitted.
	inExam bool
}

func (r *practiceRun) run(ctx context.Context, ex *domain.Exercise) error {
	if err := r.ctrl.Load(ctx, ex); err != nil {
		return err
	}
	return r.loop(ctx)
}

// loop drives the session until the payload is checked, graded or left.
func (r *practiceRun) loop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		v := r.ctrl.Snapshot()
		switch {
		case v.Exercise == nil, v.State == session.StateIdle:
			return nil
		case v.State == session.StateTaskChoice:
			if !r.chooseTask(v) {
				return nil
			}
		case v.State.Terminal():
			r.review(v)
			return nil
		case v.Mode.IsObjective():
			return r.answerItems(ctx, v)
		case v.Mode == exercise.ModeListeningTranscript:
			r.header(ctx, v)
			return nil
		default:
			done, err := r.respond(ctx, v)
			if err != nil || done {
				return err
			}
		}
	}
}

// review shows the outcome of a finished payload.
func (r *practiceRun) review(v session.View) {
	if v.Result != nil {
		printResult(r.con, v.Result)
	}
	if v.Feedback != nil {
		printFeedback(r.con, v.Feedback)
	}
}

func (r *practiceRun) header(ctx context.Context, v session.View) {
	ex := v.Exercise
	title := ex.Title
	if title == "" {
		title = ex.Type
	}
	r.con.heading(title)
	if ex.Instructions != "" {
		r.con.println(ex.Instructions)
	}
	if ex.IsListening() {
		r.listeningAudio(v)
	}
	if ex.Text != "" && !ex.IsListening() {
		r.con.println()
		r.con.println(ex.Text)
	}
	for _, url := range ex.ImageURLs {
		r.con.printf("Image: %s\n", url)
	}
}

func (r *practiceRun) listeningAudio(v session.View) {
	if v.AudioLocked {
		r.con.println("Audio is a premium feature; read the transcript after checking.")
		return
	}
	path := v.AudioPath
	deadline := time.Now().Add(audioWait)
	for path == "" && time.Now().Before(deadline) {
		time.Sleep(pollInterval)
		path = r.ctrl.Snapshot().AudioPath
	}
	if path == "" {
		r.con.println("Audio is not available right now.")
		return
	}
	r.con.printf("Audio: %s\n", path)
}

// chooseTask lists the tasks of a choice payload. It reports false when
// the user left.
func (r *practiceRun) chooseTask(v session.View) bool {
	r.con.heading(v.Exercise.Title)
	for i, o := range v.Exercise.Options {
		r.con.printf("%d. %s\n   %s\n", i+1, o.Title, o.Text)
	}
	for {
		in, ok := r.con.ask("Choose a task (number, b to go back): ")
		if !ok {
			return false
		}
		if in == "b" {
			r.ctrl.Back()
			return false
		}
		id := in
		if n, err := strconv.Atoi(in); err == nil && n >= 1 && n <= len(v.Exercise.Options) {
			id = v.Exercise.Options[n-1].ID
		}
		if err := r.ctrl.SelectTask(id); err != nil {
			r.con.printf("%s\n", describeError(err))
			continue
		}
		return true
	}
}

// answerItems asks every question in turn and checks the answers.
func (r *practiceRun) answerItems(ctx context.Context, v session.View) error {
	r.header(ctx, v)
	r.con.println("Enter to skip, '!report <reason>' to flag a question, 'q' to stop.")

	items := v.Exercise.Questions
	for i := 0; i < len(items); i++ {
		item := items[i]
		r.con.println()
		r.printItem(i, item, v.Answers[domain.ItemKey(items, i)])

		in, ok := r.con.ask("> ")
		if !ok || in == "q" {
			break
		}
		if reason, found := strings.CutPrefix(in, "!report"); found {
			if err := r.ctrl.ReportIssue(ctx, i, strings.TrimSpace(reason)); err != nil {
				r.con.printf("Report failed: %s\n", describeError(err))
			} else {
				r.con.println("Thanks, the question was reported.")
			}
			i--
			continue
		}
		if in == "" {
			continue
		}
		if !r.ctrl.AnswerItem(i, in) {
			r.con.println("Answers are locked.")
			break
		}
	}

	if r.inExam {
		return nil
	}
	res, err := r.ctrl.Check(ctx)
	if err != nil {
		return err
	}
	printResult(r.con, res)
	if v.Exercise.IsListening() && v.Exercise.Text != "" {
		r.con.println("\nTranscript:")
		r.con.println(v.Exercise.Text)
	}
	return nil
}

func (r *practiceRun) printItem(i int, item domain.Item, current string) {
	label := item.Question
	if label == "" {
		label = strconv.Itoa(i + 1)
	}
	if item.OriginalSentence != "" {
		r.con.printf("%s. %s\n   %s (%s)\n", label, item.OriginalSentence, item.SecondSentence, item.Keyword)
	} else if item.Stem != "" {
		r.con.printf("%s. %s\n", label, item.Stem)
	} else {
		r.con.printf("Question %s\n", label)
	}
	for j, o := range item.Options {
		r.con.printf("   %c) %s\n", 'A'+j, exercise.OptionText(o))
	}
	if current != "" {
		r.con.printf("   (current: %s)\n", current)
	}
}

func printResult(con *console, res *domain.SessionResult) {
	con.println()
	con.printf("Score: %d/%d (%d%%) %s\n", res.Score, res.Total, res.Percent(),
		renderProgressBar(float64(res.Score)/float64(max(res.Total, 1)), 20))
	if len(res.Mistakes) == 0 {
		return
	}
	con.println("\nMistakes")
	con.println("--------")
	for _, m := range res.Mistakes {
		answer := m.UserAnswer
		if answer == "" {
			answer = "(no answer)"
		}
		con.printf("%s: you wrote %q, correct is %q\n", m.Question, answer, m.CorrectAnswer)
	}
}

// respond collects a written or spoken response and submits it. It
// reports true when the payload is finished with.
func (r *practiceRun) respond(ctx context.Context, v session.View) (bool, error) {
	r.header(ctx, v)
	r.printTask(v)
	r.con.println("\nType your answer. End with a line '.' to submit.")
	r.con.println("Commands: :submit :record :next :count :clear :back :quit")

	for {
		text, command, ok := r.con.readBlock()
		if strings.TrimSpace(text) != "" {
			r.ctrl.AppendText(text)
		}
		if !ok {
			return true, nil
		}

		switch command {
		case "", ":submit":
			done, err := r.submit(ctx)
			if err != nil || done {
				return true, err
			}
		case ":record":
			r.record(ctx)
		case ":next":
			phase, err := r.ctrl.NextPhase()
			if err != nil {
				r.con.printf("%s\n", describeError(err))
				continue
			}
			r.printPhase(r.ctrl.Snapshot().Exercise, phase)
		case ":count":
			r.con.printf("%d words\n", r.ctrl.Snapshot().WordCount)
		case ":clear":
			r.ctrl.SetText("")
			r.con.println("Cleared.")
		case ":back":
			if r.ctrl.Back() == session.BackCollapsedTask {
				return false, nil
			}
			return true, nil
		case ":quit":
			return true, nil
		default:
			r.con.printf("Unknown command %s\n", command)
		}
	}
}

func (r *practiceRun) printTask(v session.View) {
	ex := v.Exercise
	if c := ex.Content; c != nil {
		if c.InputText != "" {
			r.con.println()
			r.con.println(c.InputText)
		}
		if c.Question != "" {
			r.con.println()
			r.con.println(c.Question)
		}
		for _, n := range c.Notes {
			r.con.printf("  - %s\n", n)
		}
		if len(c.Opinions) > 0 {
			r.con.println("Some opinions:")
			for _, o := range c.Opinions {
				r.con.printf("  %q\n", o)
			}
		}
	}
	if v.Mode == exercise.ModeMultiPhaseSpeaking {
		r.printPhase(ex, v.Phase)
	}
	if v.Mode == exercise.ModeLongFormWriting {
		words := r.minWords
		if words <= 0 {
			words = session.DefaultMinEssayWords
		}
		r.con.printf("\nWrite at least %d words.\n", words)
	}
}

func (r *practiceRun) printPhase(ex *domain.Exercise, phase exercise.Phase) {
	switch phase {
	case exercise.PhaseCollaborate:
		r.con.printf("\nPart 3: %s\n", ex.Part3CentralQuestion)
		for _, p := range ex.Part3Prompts {
			r.con.printf("  - %s\n", p)
		}
	case exercise.PhaseDecide:
		r.con.printf("\nDecision: %s\n", ex.Part3DecisionQuestion)
	case exercise.PhaseDiscuss:
		r.con.println("\nPart 4:")
		for _, q := range ex.Part4Questions {
			r.con.printf("  - %s\n", q)
		}
	}
}

func (r *practiceRun) record(ctx context.Context) {
	if err := r.ctrl.StartRecording(ctx); err != nil {
		r.con.printf("Recording failed: %s\n", describeError(err))
		return
	}
	r.con.println("Recording...")
	deadline := time.Now().Add(recordingWait)
	for time.Now().Before(deadline) {
		v := r.ctrl.Snapshot()
		if !v.Recording && !v.Transcribing {
			if v.TranscribeError != "" {
				r.con.printf("Transcription failed: %s\n", v.TranscribeError)
				return
			}
			r.con.printf("Transcribed. Your answer now has %d words:\n%s\n", v.WordCount, v.Text)
			return
		}
		time.Sleep(pollInterval)
	}
	if err := r.ctrl.StopRecording(); err != nil {
		r.con.printf("Recording failed: %s\n", describeError(err))
	}
}

// submit grades the response. Validation and transient failures keep the
// response editable.
func (r *practiceRun) submit(ctx context.Context) (bool, error) {
	r.con.println("Grading...")
	fb, err := r.ctrl.Submit(ctx)
	if err != nil {
		var ve domain.ValidationErrors
		switch {
		case errors.As(err, &ve):
			r.con.printf("%s\n", ve.Error())
			return false, nil
		case domain.IsEntitlement(err), errors.Is(err, domain.ErrNotAuthenticated):
			return true, err
		case errors.Is(err, domain.ErrAlreadyGraded):
			return true, nil
		}
		r.con.printf("Grading failed: %s\nYou can keep editing and submit again.\n", describeError(err))
		return false, nil
	}

	printFeedback(r.con, fb)
	if r.history != nil {
		v := r.ctrl.Snapshot()
		if err := r.history.RecordGraded(ctx, v.Exercise, v.WordCount, fb); err != nil {
			r.logger.Warn("record graded submission", "error", err)
		}
	}
	return true, nil
}

func printFeedback(con *console, fb *domain.GradingFeedback) {
	con.println()
	con.printf("Score: %.1f\n", fb.Score)
	if fb.Feedback != "" {
		con.println(fb.Feedback)
	}
	if len(fb.Corrections) > 0 {
		con.println("\nCorrections")
		con.println("-----------")
		for _, c := range fb.Corrections {
			con.printf("%q -> %q\n", c.Original, c.Corrected)
			if c.Explanation != "" {
				con.printf("   %s\n", c.Explanation)
			}
		}
	}
	if fb.ModelAnswer != "" {
		con.println("\nModel answer")
		con.println("------------")
		con.println(fb.ModelAnswer)
	}
}
