package session

import (
	"strings"

	"github.com/c1advanced/c1prep/internal/domain"
	"github.com/c1advanced/c1prep/internal/exercise"
)

// gradingPrompt is the task text sent with a submission. Multi-phase
// speaking tasks include every phase so the grader sees the whole task.
func gradingPrompt(ex *domain.Exercise, mode exercise.Mode) string {
	prompt := ex.TaskPrompt()
	if mode == exercise.ModeMultiPhaseSpeaking {
		var b strings.Builder
		b.WriteString(prompt)
		appendLine(&b, ex.Part3CentralQuestion)
		for _, p := range ex.Part3Prompts {
			appendLine(&b, "- "+p)
		}
		appendLine(&b, ex.Part3DecisionQuestion)
		for _, q := range ex.Part4Questions {
			appendLine(&b, q)
		}
		prompt = b.String()
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = ex.Title
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = ex.Type
	}
	return strings.TrimSpace(prompt)
}

func appendLine(b *strings.Builder, s string) {
	if strings.TrimSpace(s) == "" || s == "- " {
		return
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(s)
}
