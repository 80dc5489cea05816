package history

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/c1advanced/c1prep/internal/domain"
	"github.com/xuri/excelize/v2"
)

const (
	sheetAttempts = "Attempts"
	sheetMistakes = "Mistakes"
	sheetSummary  = "Summary"
	timeLayout    = "2006-01-02 15:04"
)

var (
	attemptHeaders = []string{"Completed", "Type", "Title", "Exercise ID", "Score", "Total", "Percent"}
	mistakeHeaders = []string{"Completed", "Type", "Question", "Your answer", "Correct answer"}
	summaryHeaders = []string{"Type", "Attempts", "Score", "Total", "Percent", "Last practised"}
)

// ExportXLSX writes every attempt, its mistakes and the per-type summary
// as an Excel workbook.
func (s *Service) ExportXLSX(ctx context.Context, w io.Writer) error {
	attempts, err := s.attempts.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("load attempts: %w", err)
	}
	summary, err := s.attempts.Summary(ctx)
	if err != nil {
		return fmt.Errorf("load summary: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetAttempts); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{sheetMistakes, sheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create %s sheet: %w", name, err)
		}
	}

	attemptRows := make([][]any, 0, len(attempts))
	var mistakeRows [][]any
	for _, a := range attempts {
		completed := a.CompletedAt.Local().Format(timeLayout)
		attemptRows = append(attemptRows, []any{
			completed, a.ExerciseType, a.Title, a.ExerciseID,
			a.Result.Score, a.Result.Total, a.Result.Percent(),
		})
		for _, m := range a.Result.Mistakes {
			mistakeRows = append(mistakeRows, []any{
				completed, a.ExerciseType, mistakeQuestion(m), m.UserAnswer, m.CorrectAnswer,
			})
		}
	}

	summaryRows := make([][]any, 0, len(summary))
	for _, t := range summary {
		last := ""
		if !t.LastAt.IsZero() {
			last = t.LastAt.Local().Format(timeLayout)
		}
		summaryRows = append(summaryRows, []any{t.ExerciseType, t.Attempts, t.Score, t.Total, t.Percent(), last})
	}

	if err := writeSheet(f, sheetAttempts, attemptHeaders, attemptRows); err != nil {
		return err
	}
	if err := writeSheet(f, sheetMistakes, mistakeHeaders, mistakeRows); err != nil {
		return err
	}
	if err := writeSheet(f, sheetSummary, summaryHeaders, summaryRows); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info("history exported", "attempts", len(attempts), "mistakes", len(mistakeRows))
	return nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("set %s header: %w", sheet, err)
		}
	}
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return fmt.Errorf("row cell: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("set %s row %d: %w", sheet, r+2, err)
		}
	}
	return nil
}

func mistakeQuestion(m domain.Mistake) string {
	q := strings.TrimSpace(m.Question)
	if stem := strings.TrimSpace(m.Stem); stem != "" && stem != q {
		if q == "" {
			return stem
		}
		return q + " " + stem
	}
	return q
}
