package exercise

import (
	"regexp"
	"strings"

	"github.com/c1advanced/c1prep/internal/domain"
)

var labelPrefix = regexp.MustCompile(`(?i)^[A-D][.)]\s*`)

// Normalize trims and lower-cases an answer for comparison.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// StripLabel removes a leading "A." / "B)" style option label.
func StripLabel(s string) string {
	return strings.TrimSpace(labelPrefix.ReplaceAllString(strings.TrimSpace(s), ""))
}

// IsCorrect compares a user answer with a stored correct answer. Both the
// label-stripped and the raw forms of the correct answer are accepted
// because generators store either. An empty answer is never correct.
func IsCorrect(user, correct string) bool {
	u := Normalize(user)
	if u == "" {
		return false
	}
	return u == Normalize(StripLabel(correct)) || u == Normalize(correct)
}

// Score computes the result of an answer map against a payload's items.
// Unanswered items count as incorrect. Score does not modify answers.
func Score(ex *domain.Exercise, answers domain.AnswerMap) *domain.SessionResult {
	res := &domain.SessionResult{Total: len(ex.Questions), Mistakes: []domain.Mistake{}}
	for i, q := range ex.Questions {
		given := answers[domain.ItemKey(ex.Questions, i)]
		if IsCorrect(given, q.Answer) {
			res.Score++
			continue
		}
		res.Mistakes = append(res.Mistakes, domain.Mistake{
			Question:      q.Question,
			Stem:          q.Stem,
			UserAnswer:    given,
			CorrectAnswer: q.Answer,
			Type:          ex.Type,
		})
	}
	return res
}

// ChoiceValue resolves what the user typed for an item into the value
// stored in the answer map. For items with options a single letter picks
// the option by position; every option is stored label-stripped and
// lower-cased, which is the form the scorer compares against.
func ChoiceValue(item domain.Item, input string) string {
	input = strings.TrimSpace(input)
	if len(item.Options) == 0 {
		return input
	}
	if len(input) == 1 {
		idx := int(strings.ToUpper(input)[0]) - 'A'
		if idx >= 0 && idx < len(item.Options) {
			return Normalize(OptionText(item.Options[idx]))
		}
	}
	for _, o := range item.Options {
		if Normalize(OptionText(o)) == Normalize(StripLabel(input)) {
			return Normalize(OptionText(o))
		}
	}
	return Normalize(input)
}

// OptionText returns the displayable text of a choice without its label.
func OptionText(c domain.Choice) string {
	return StripLabel(c.Text)
}
