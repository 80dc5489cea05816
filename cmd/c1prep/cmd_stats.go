package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/c1advanced/c1prep/internal/domain"
)

func cmdStats(opts globalOptions) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()
	con := newConsole(stdin, stdout)

	if uid := a.userID(); uid != "" {
		stats := a.client.StatsOrDefault(ctx, uid)
		con.heading("Your progress")
		con.printf("XP:        %d\n", stats.XP)
		con.printf("Streak:    %d days\n", stats.Streak)
		con.printf("Completed: %d\n", stats.Completed)
	}

	summary, err := a.history.Summary(ctx)
	if err != nil {
		return err
	}
	graded, err := a.history.GradedCount(ctx)
	if err != nil {
		return err
	}

	con.heading("On this device")
	if len(summary) == 0 && graded == 0 {
		con.println("Nothing practised yet. Try 'c1prep practice reading_and_use_of_language1'.")
		return nil
	}
	for _, s := range summary {
		pct := s.Percent()
		con.printf("%-35s %s %3d%%  (%d attempts)\n", s.ExerciseType, renderProgressBar(float64(pct)/100, 20), pct, s.Attempts)
	}
	con.printf("\nGraded writing and speaking: %d\n", graded)
	return nil
}

func cmdHistory(args []string, opts globalOptions) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()
	con := newConsole(stdin, stdout)

	if len(args) > 0 && args[0] == "export" {
		if len(args) < 2 {
			return fmt.Errorf("usage: c1prep history export <file.xlsx>")
		}
		f, err := os.Create(args[1])
		if err != nil {
			return fmt.Errorf("create export: %w", err)
		}
		if err := a.history.ExportXLSX(ctx, f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		con.printf("Exported history to %s\n", args[1])
		return nil
	}

	limit := 10
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid count %q", args[0])
		}
		limit = n
	}
	attempts, err := a.history.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		con.println("No attempts yet.")
		return nil
	}
	for _, at := range attempts {
		con.printf("%s  %-35s %3d/%-3d %3d%%  %s\n",
			at.CompletedAt.Local().Format("2006-01-02 15:04"),
			at.ExerciseType, at.Result.Score, at.Result.Total, at.Result.Percent(), at.Title)
	}
	return nil
}

func cmdCoach(opts globalOptions) error {
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

	con.println("Analysing your mistakes...")
	advice, err := a.client.Coach(ctx, uid)
	if err != nil {
		return err
	}
	printAdvice(con, advice)
	return nil
}

func printAdvice(con *console, advice *domain.CoachAdvice) {
	if len(advice.Weaknesses) > 0 {
		con.heading("Focus areas")
		for _, w := range advice.Weaknesses {
			con.printf("  - %s\n", w)
		}
	}
	if advice.Advice != "" {
		con.println()
		con.println(advice.Advice)
	}
}
