package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/c1advanced/c1prep/internal/domain"
	"github.com/c1advanced/c1prep/internal/exam"
	"github.com/c1advanced/c1prep/internal/session"
	"github.com/c1advanced/c1prep/internal/storage/sqlite"
)

const examTick = time.Second

func cmdExam(args []string, opts globalOptions) error {
	_, fresh := hasFlag(args, "--new")

	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	con := newConsole(stdin, stdout)
	cfg := exam.Config{
		NewSession: func() *session.Controller { return a.newSession("") },
		OnSubmit: func(s exam.Summary) {
			if err := a.history.RecordEvent(ctx, sqlite.ActivityExamSubmitted, "", s); err != nil {
				a.logger.Warn("record exam", "error", err)
			}
		},
		Logger: a.logger,
	}

	nav, err := openExam(ctx, a, con, cfg, fresh)
	if err != nil {
		return err
	}
	go nav.Run(ctx, examTick)

	run := &examRun{app: a, nav: nav, con: con}
	return run.loop(ctx)
}

// openExam resumes the unfinished exam or generates a new one.
func openExam(ctx context.Context, a *app, con *console, cfg exam.Config, fresh bool) (*exam.Navigator, error) {
	if !fresh {
		p, found, err := exam.LoadProgress(a.store)
		if err != nil {
			a.logger.Warn("unreadable exam progress", "error", err)
		}
		if found {
			in, _ := con.ask(fmt.Sprintf("Resume the exam started %s? [Y/n] ", p.StartedAt.Local().Format("Mon 15:04")))
			if in == "" || strings.HasPrefix(strings.ToLower(in), "y") {
				return exam.Resume(*p, cfg)
			}
		}
	}

	if !a.fetcher.Online(ctx) {
		return nil, domain.ErrOffline
	}
	con.println("Generating a full mock exam. This can take a minute...")
	ex, err := a.client.GenerateFullExam(ctx, a.userID(), a.cfg.Practice.Level)
	if err != nil {
		return nil, err
	}
	nav, err := exam.New(ex, cfg)
	if err != nil {
		return nil, err
	}
	if err := exam.SaveProgress(a.store, nav); err != nil {
		a.logger.Warn("save exam progress", "error", err)
	}
	return nav, nil
}

type examRun struct {
	app *app
	nav *exam.Navigator
	con *console

	summary *exam.Summary
}

func (r *examRun) loop(ctx context.Context) error {
	r.con.printf("\n%d parts, about %d minutes each.\n", r.nav.Total(), r.nav.MinutesPerPart())
	for {
		if err := ctx.Err(); err != nil {
			r.save()
			return err
		}
		if r.nav.Submitted() && r.summary == nil {
			r.finish(r.nav.Submit(ctx))
		}

		idx := r.nav.Index()
		status := exam.FormatRemaining(r.nav.Remaining()) + " left"
		if r.summary != nil {
			status = "review"
		}
		r.con.printf("\nPart %d/%d: %s [%s]\n", idx+1, r.nav.Total(), exam.PartTitle(r.nav.Current()), status)

		in, ok := r.con.ask("(o)pen (n)ext (p)rev (g)oto N (t)ime (s)ubmit (q)uit: ")
		if !ok {
			r.save()
			return nil
		}
		cmd, arg, _ := strings.Cut(in, " ")
		switch cmd {
		case "o", "open", "":
			if err := r.open(ctx, idx); err != nil {
				r.con.printf("%s\n", describeError(err))
			}
		case "n", "next":
			r.move(r.nav.Next())
		case "p", "prev":
			r.move(r.nav.Prev())
		case "g", "goto":
			n, err := strconv.Atoi(strings.TrimSpace(arg))
			if err != nil {
				r.con.println("usage: g <part number>")
				continue
			}
			r.move(r.nav.Goto(n - 1))
		case "t", "time":
			r.con.printf("%s left\n", exam.FormatRemaining(r.nav.Remaining()))
		case "s", "submit":
			if r.summary != nil {
				printSummary(r.con, *r.summary)
				continue
			}
			confirm, _ := r.con.ask("Submit the exam? Unanswered questions score zero. [y/N] ")
			if strings.HasPrefix(strings.ToLower(confirm), "y") {
				r.finish(r.nav.Submit(ctx))
			}
		case "q", "quit":
			r.save()
			if r.summary == nil {
				r.con.println("Progress saved. Run 'c1prep exam' to continue.")
			}
			return nil
		default:
			r.con.printf("Unknown command %q\n", cmd)
		}
	}
}

// open plays the current part. Parts never opened before submission are
// only summarised in review.
func (r *examRun) open(ctx context.Context, idx int) error {
	if r.summary != nil && !r.summary.Parts[idx].Visited {
		part := r.summary.Parts[idx]
		if part.Result != nil {
			r.con.printf("Not attempted: 0/%d\n", part.Result.Total)
		} else {
			r.con.println("Not attempted.")
		}
		return nil
	}
	ctrl, err := r.nav.Session(ctx)
	if err != nil {
		return err
	}
	run := r.app.practiceRun(ctrl, r.con)
	run.inExam = true
	return run.loop(ctx)
}

func (r *examRun) move(err error) {
	if err != nil {
		r.con.println("No such part.")
		return
	}
	r.save()
}

func (r *examRun) save() {
	if r.summary != nil || r.nav.Submitted() {
		return
	}
	if err := exam.SaveProgress(r.app.store, r.nav); err != nil {
		r.app.logger.Warn("save exam progress", "error", err)
	}
}

func (r *examRun) finish(s exam.Summary) {
	r.summary = &s
	if err := exam.ClearProgress(r.app.store); err != nil {
		r.app.logger.Warn("clear exam progress", "error", err)
	}
	if s.AutoSubmit {
		r.con.println("\nTime is up. Your exam was submitted.")
	}
	printSummary(r.con, s)
	r.con.println("Move between parts to review your answers.")
}

func printSummary(con *console, s exam.Summary) {
	con.heading("Exam results")
	for _, p := range s.Parts {
		switch {
		case p.Result != nil:
			con.printf("%2d. %-45s %d/%d\n", p.Index+1, p.Title, p.Result.Score, p.Result.Total)
		case p.Visited:
			con.printf("%2d. %-45s answered\n", p.Index+1, p.Title)
		default:
			con.printf("%2d. %-45s not attempted\n", p.Index+1, p.Title)
		}
	}
	if s.Total > 0 {
		con.printf("\nObjective score: %d/%d %s\n", s.Score, s.Total,
			renderProgressBar(float64(s.Score)/float64(s.Total), 20))
	}
}
