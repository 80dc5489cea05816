// Package exercise classifies practice payloads into interaction modes and
// scores objective items locally.
package exercise

import "fmt"

// Mode is the interaction mode a payload is rendered in. The set is closed;
// adding a mode means updating String, Family and the tag table together.
type Mode int

const (
	ModeMultiTaskChoice Mode = iota
	ModeLongFormWriting
	ModeObjectiveGapFill
	ModeObjectiveMultipleChoiceText
	ModeSentenceCompletion
	ModeMultiPhaseSpeaking
	ModeFreeResponse
	ModeListeningTranscript

	numModes
)

// allModes lists every mode in declaration order.
func allModes() []Mode {
	modes := make([]Mode, 0, numModes)
	for m := Mode(0); m < numModes; m++ {
		modes = append(modes, m)
	}
	return modes
}

func (m Mode) String() string {
	switch m {
	case ModeMultiTaskChoice:
		return "multi-task-choice"
	case ModeLongFormWriting:
		return "long-form-writing"
	case ModeObjectiveGapFill:
		return "objective-gap-fill"
	case ModeObjectiveMultipleChoiceText:
		return "objective-multiple-choice-text"
	case ModeSentenceCompletion:
		return "sentence-completion-blanks"
	case ModeMultiPhaseSpeaking:
		return "multi-phase-speaking-task"
	case ModeFreeResponse:
		return "free-response"
	case ModeListeningTranscript:
		return "read-only-listening-transcript"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Family groups modes by how a session treats them.
type Family int

const (
	FamilyObjective Family = iota // locally scored
	FamilyCreative                // graded remotely
	FamilyReadOnly                // nothing to submit
)

func (f Family) String() string {
	switch f {
	case FamilyObjective:
		return "objective"
	case FamilyCreative:
		return "creative"
	default:
		return "read-only"
	}
}

// Family returns the family m belongs to.
func (m Mode) Family() Family {
	switch m {
	case ModeObjectiveGapFill, ModeObjectiveMultipleChoiceText, ModeSentenceCompletion:
		return FamilyObjective
	case ModeMultiTaskChoice, ModeLongFormWriting, ModeMultiPhaseSpeaking, ModeFreeResponse:
		return FamilyCreative
	default:
		return FamilyReadOnly
	}
}

// IsObjective reports whether answers in m are scored locally.
func (m Mode) IsObjective() bool { return m.Family() == FamilyObjective }

// IsCreative reports whether m produces text for the grader.
func (m Mode) IsCreative() bool { return m.Family() == FamilyCreative }

// Phase is one step of a multi-phase speaking task.
type Phase int

const (
	PhaseCollaborate Phase = iota // Part 3 discussion around the central question
	PhaseDecide                   // Part 3 decision question
	PhaseDiscuss                  // Part 4 follow-up questions
)

// Phases lists the speaking phases in order.
var Phases = []Phase{PhaseCollaborate, PhaseDecide, PhaseDiscuss}

func (p Phase) String() string {
	switch p {
	case PhaseCollaborate:
		return "collaborate"
	case PhaseDecide:
		return "decide"
	case PhaseDiscuss:
		return "discuss"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}
