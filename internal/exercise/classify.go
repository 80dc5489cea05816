package exercise

import (
	"strings"

	"github.com/c1advanced/c1prep/internal/domain"
)

// tagModes maps every known type tag to its mode.
var tagModes = map[string]Mode{
	"reading_and_use_of_language1": ModeObjectiveGapFill,
	"reading_and_use_of_language2": ModeObjectiveGapFill,
	"reading_and_use_of_language3": ModeObjectiveGapFill,
	"reading_and_use_of_language4": ModeObjectiveMultipleChoiceText,
	"reading_and_use_of_language5": ModeObjectiveMultipleChoiceText,
	"reading_and_use_of_language6": ModeObjectiveMultipleChoiceText,
	"reading_and_use_of_language7": ModeObjectiveMultipleChoiceText,
	"reading_and_use_of_language8": ModeObjectiveMultipleChoiceText,
	"listening1":                   ModeObjectiveMultipleChoiceText,
	"listening2":                   ModeSentenceCompletion,
	"listening3":                   ModeObjectiveMultipleChoiceText,
	"listening4":                   ModeObjectiveMultipleChoiceText,
	"writing1":                     ModeLongFormWriting,
	"essay":                        ModeLongFormWriting,
	"writing2":                     ModeMultiTaskChoice,
	"writing_choice":               ModeMultiTaskChoice,
	"speaking":                     ModeFreeResponse,
	"speaking1":                    ModeFreeResponse,
	"speaking2":                    ModeFreeResponse,
	"speaking3":                    ModeMultiPhaseSpeaking,
}

// Tags returns every known type tag.
func Tags() []string {
	tags := make([]string, 0, len(tagModes))
	for t := range tagModes {
		tags = append(tags, t)
	}
	return tags
}

// IsKnownTag reports whether tag is in the mode table.
func IsKnownTag(tag string) bool {
	_, ok := tagModes[tag]
	return ok
}

// TagMode looks up the mode for a payload's type tag. Legacy payloads
// carried the tag in the id, so the id is tried second.
func TagMode(ex *domain.Exercise) (Mode, bool) {
	if m, ok := tagModes[ex.Type]; ok {
		return m, true
	}
	if m, ok := tagModes[ex.ID]; ok {
		return m, true
	}
	return 0, false
}

// Classify maps a payload to exactly one interaction mode. selected is the
// id of the chosen task option, empty when none has been chosen. Classify
// is total: every payload gets a mode.
func Classify(ex *domain.Exercise, selected string) Mode {
	if namedOptions(ex) >= 2 {
		if selected == "" {
			return ModeMultiTaskChoice
		}
		return ModeLongFormWriting
	}

	tagMode, known := TagMode(ex)
	items := ex.HasItems()
	content := ex.HasContentBlock()

	switch {
	case items && !content:
		if known && tagMode.IsObjective() {
			return tagMode
		}
		return ModeObjectiveMultipleChoiceText
	case content && !items:
		if known && tagMode.IsCreative() {
			return withoutChoice(tagMode)
		}
		return ModeFreeResponse
	}

	if !items && !content && isListening(ex) {
		return ModeListeningTranscript
	}
	if known {
		return withoutChoice(tagMode)
	}
	return ModeFreeResponse
}

// withoutChoice downgrades a choice tag whose payload has nothing to
// choose from; the payload itself is the task.
func withoutChoice(m Mode) Mode {
	if m == ModeMultiTaskChoice {
		return ModeLongFormWriting
	}
	return m
}

func namedOptions(ex *domain.Exercise) int {
	n := 0
	for _, o := range ex.Options {
		if o.ID != "" {
			n++
		}
	}
	return n
}

func isListening(ex *domain.Exercise) bool {
	return ex.IsListening() || strings.HasPrefix(ex.ID, "listening")
}
