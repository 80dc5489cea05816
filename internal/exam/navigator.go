// Package exam runs a full mock exam: free movement between parts, a
// countdown that submits the exam when it reaches zero, and review of
// every part afterwards.
package exam

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/c1advanced/c1prep/internal/domain"
	"github.com/c1advanced/c1prep/internal/exercise"
	"github.com/c1advanced/c1prep/internal/session"
)

// DefaultDuration applies when the exam carries no duration.
const DefaultDuration = 90 * time.Minute

// Clock tells the time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// PartResult is the outcome of one part after submission.
type PartResult struct {
	Index   int
	Title   string
	Mode    exercise.Mode
	Visited bool
	Result  *domain.SessionResult // objective parts only
}

// Summary is the outcome of a submitted exam.
type Summary struct {
	Parts       []PartResult
	Score       int
	Total       int
	AutoSubmit  bool
	SubmittedAt time.Time
}

// Config configures a Navigator.
type Config struct {
	Clock Clock
	// NewSession creates the controller of one part.
	NewSession func() *session.Controller
	// OnSubmit runs once when the exam is submitted.
	OnSubmit func(Summary)
	Logger   *slog.Logger
}

// Navigator is one exam attempt.
type Navigator struct {
	cfg    Config
	exam   *domain.Exam
	logger *slog.Logger

	mu        sync.Mutex
	started   time.Time
	deadline  time.Time
	index     int
	sessions  map[int]*session.Controller
	submitted bool
	summary   Summary
}

// New starts exam now. An exam without parts is rejected.
func New(exam *domain.Exam, cfg Config) (*Navigator, error) {
	if exam == nil || len(exam.Parts) == 0 {
		return nil, domain.ErrInvalidExam
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.NewSession == nil {
		cfg.NewSession = func() *session.Controller {
			return session.New(session.Config{Identity: anonymous{}})
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	duration := time.Duration(exam.DurationMinutes) * time.Minute
	if duration <= 0 {
		duration = DefaultDuration
	}
	now := cfg.Clock.Now()
	return &Navigator{
		cfg:      cfg,
		exam:     exam,
		logger:   cfg.Logger,
		started:  now,
		deadline: now.Add(duration),
		sessions: make(map[int]*session.Controller),
	}, nil
}

type anonymous struct{}

func (anonymous) CurrentUser() (*domain.User, bool) { return nil, false }

// Total returns the number of parts.
func (n *Navigator) Total() int { return len(n.exam.Parts) }

// Index returns the current part index.
func (n *Navigator) Index() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.index
}

// Current returns the current part.
func (n *Navigator) Current() *domain.Exercise {
	n.mu.Lock()
	defer n.mu.Unlock()
	return &n.exam.Parts[n.index]
}

// Goto moves to part i. Movement is free in both directions, also after
// submission for review.
func (n *Navigator) Goto(i int) error {
	if i < 0 || i >= len(n.exam.Parts) {
		return fmt.Errorf("part %d of %d: %w", i+1, len(n.exam.Parts), domain.ErrPhaseOutOfBounds)
	}
	n.mu.Lock()
	n.index = i
	n.mu.Unlock()
	return nil
}

// Next moves to the following part.
func (n *Navigator) Next() error { return n.Goto(n.Index() + 1) }

// Prev moves to the previous part.
func (n *Navigator) Prev() error { return n.Goto(n.Index() - 1) }

// Session returns the controller of the current part, loading the part on
// the first visit. Answers survive moving between parts.
func (n *Navigator) Session(ctx context.Context) (*session.Controller, error) {
	n.mu.Lock()
	idx := n.index
	c, ok := n.sessions[idx]
	if !ok {
		c = n.cfg.NewSession()
		n.sessions[idx] = c
	}
	n.mu.Unlock()

	if !ok {
		if err := c.Load(ctx, &n.exam.Parts[idx]); err != nil {
			return nil, fmt.Errorf("load part %d: %w", idx+1, err)
		}
	}
	return c, nil
}

// Remaining returns the time left, never negative.
func (n *Navigator) Remaining() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.remainingLocked()
}

func (n *Navigator) remainingLocked() time.Duration {
	if n.submitted {
		return 0
	}
	left := n.deadline.Sub(n.cfg.Clock.Now())
	if left < 0 {
		return 0
	}
	return left
}

// Tick submits the exam when time is up. It reports true only for the
// tick that submitted.
func (n *Navigator) Tick(ctx context.Context) bool {
	n.mu.Lock()
	expired := !n.submitted && !n.cfg.Clock.Now().Before(n.deadline)
	n.mu.Unlock()
	if !expired {
		return false
	}
	_, ok := n.submit(ctx, true)
	return ok
}

// Submit ends the exam. Calling it again returns the first summary.
func (n *Navigator) Submit(ctx context.Context) Summary {
	s, _ := n.submit(ctx, false)
	return s
}

func (n *Navigator) submit(ctx context.Context, auto bool) (Summary, bool) {
	n.mu.Lock()
	if n.submitted {
		s := n.summary
		n.mu.Unlock()
		return s, false
	}
	n.submitted = true
	sessions := make(map[int]*session.Controller, len(n.sessions))
	for k, v := range n.sessions {
		sessions[k] = v
	}
	n.mu.Unlock()

	summary := Summary{AutoSubmit: auto, SubmittedAt: n.cfg.Clock.Now()}
	for i := range n.exam.Parts {
		part := &n.exam.Parts[i]
		pr := PartResult{Index: i, Title: PartTitle(part), Mode: exercise.Classify(part, "")}
		if c, ok := sessions[i]; ok {
			pr.Visited = true
			if pr.Mode.IsObjective() {
				res, err := c.Check(ctx)
				if err != nil {
					n.logger.Warn("score exam part", "part", i+1, "error", err)
				} else {
					pr.Result = res
					summary.Score += res.Score
					summary.Total += res.Total
				}
			}
		} else if pr.Mode.IsObjective() {
			pr.Result = exercise.Score(part, nil)
			summary.Total += pr.Result.Total
		}
		summary.Parts = append(summary.Parts, pr)
	}

	n.mu.Lock()
	n.summary = summary
	n.mu.Unlock()

	n.logger.Info("exam submitted",
		"auto", auto,
		"score", summary.Score,
		"total", summary.Total)
	if n.cfg.OnSubmit != nil {
		n.cfg.OnSubmit(summary)
	}
	return summary, true
}

// Submitted reports whether the exam is in review mode.
func (n *Navigator) Submitted() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.submitted
}

// Run ticks every interval until the exam is submitted or ctx ends.
func (n *Navigator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n.Tick(ctx) || n.Submitted() {
				return
			}
		}
	}
}

// MinutesPerPart is the suggested time budget per part.
func (n *Navigator) MinutesPerPart() int {
	d := n.deadline.Sub(n.started)
	return int((d.Minutes() / float64(len(n.exam.Parts))) + 0.5)
}

// PartTitle names a part: reading parts by number, others by title.
func PartTitle(ex *domain.Exercise) string {
	if strings.Contains(ex.Type, "reading") {
		digits := strings.Map(func(r rune) rune {
			if unicode.IsDigit(r) {
				return r
			}
			return -1
		}, ex.Type)
		return "Reading & Use of English - Part " + digits
	}
	if ex.Title != "" {
		return ex.Title
	}
	return ex.Type
}

// FormatRemaining renders d as m:ss.
func FormatRemaining(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
