package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Exercise is one fetched practice payload. It is replaced wholesale when a
// new payload arrives; nothing is merged across payloads.
type Exercise struct {
	ID           string   `json:"id,omitempty"`
	Type         string   `json:"type" validate:"required"`
	Level        string   `json:"level,omitempty"`
	Title        string   `json:"title,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
	Text         string   `json:"text,omitempty"`
	Questions    []Item   `json:"questions,omitempty" validate:"dive"`
	Content      *Content `json:"content,omitempty"`

	// Options holds the named tasks of a choice payload (Writing Part 2).
	Options []TaskOption `json:"options,omitempty" validate:"dive"`

	ImageURLs    []string `json:"image_urls,omitempty"`
	ImagePrompts []string `json:"image_prompts,omitempty"`

	// AudioBase64 is pre-rendered listening audio, when the server has it.
	AudioBase64 string `json:"audio_base64,omitempty"`

	// Speaking Parts 3 & 4
	Part3CentralQuestion  string   `json:"part3_central_question,omitempty"`
	Part3Prompts          []string `json:"part3_prompts,omitempty"`
	Part3DecisionQuestion string   `json:"part3_decision_question,omitempty"`
	Part4Questions        []string `json:"part4_questions,omitempty"`
}

// UnmarshalJSON accepts the legacy singular "instruction" field used by
// generated speaking and writing payloads.
func (e *Exercise) UnmarshalJSON(data []byte) error {
	type alias Exercise
	aux := struct {
		*alias
		Instruction string `json:"instruction,omitempty"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if e.Instructions == "" && aux.Instruction != "" {
		e.Instructions = aux.Instruction
	}
	return nil
}

// Identity returns the key used to decide whether two payloads are the same
// exercise. Arrival of a payload with a different identity resets a session.
func (e *Exercise) Identity() string {
	if e == nil {
		return ""
	}
	return e.ID + "\x00" + e.Title
}

// HasItems reports whether the payload carries objective items.
func (e *Exercise) HasItems() bool {
	return len(e.Questions) > 0
}

// HasContentBlock reports whether the payload carries an open-ended content
// block: an essay brief, named task options, or speaking phase prompts.
// Plain Text is stimulus and does not count.
func (e *Exercise) HasContentBlock() bool {
	if e.Content != nil || len(e.Options) > 0 {
		return true
	}
	return e.Part3CentralQuestion != "" || len(e.Part3Prompts) > 0 ||
		e.Part3DecisionQuestion != "" || len(e.Part4Questions) > 0
}

// Option returns the named task option with the given id.
func (e *Exercise) Option(id string) (TaskOption, bool) {
	for _, o := range e.Options {
		if o.ID == id {
			return o, true
		}
	}
	return TaskOption{}, false
}

// TaskPrompt builds the prompt sent to the grader: instructions followed by
// the stimulus text.
func (e *Exercise) TaskPrompt() string {
	parts := []string{e.Instructions}
	if e.Content != nil {
		parts = append(parts, e.Content.InputText, e.Content.Question)
	}
	parts = append(parts, e.Text)

	var b strings.Builder
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(p)
	}
	return b.String()
}

// IsListening reports whether the payload belongs to the listening paper.
func (e *Exercise) IsListening() bool {
	return strings.HasPrefix(e.Type, "listening")
}

// IsSpeaking reports whether the payload belongs to the speaking paper.
func (e *Exercise) IsSpeaking() bool {
	return strings.HasPrefix(e.Type, "speaking")
}

// Content is the essay brief of a long-form writing task.
type Content struct {
	InputText string   `json:"input_text,omitempty"`
	Question  string   `json:"question,omitempty"`
	Notes     []string `json:"notes,omitempty"`
	Opinions  []string `json:"opinions,omitempty"`
}

// TaskOption is one selectable task of a multi-task choice payload.
type TaskOption struct {
	ID    string `json:"id" validate:"required"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text" validate:"required"`
	Tips  string `json:"tips,omitempty"`
}

// AsExercise turns a chosen option into the active long-form payload.
func (o TaskOption) AsExercise(parent *Exercise) *Exercise {
	return &Exercise{
		ID:           parent.ID,
		Type:         parent.Type,
		Level:        parent.Level,
		Title:        o.Title,
		Instructions: parent.Instructions,
		Text:         o.Text,
	}
}

// Item is one gap or question of an objective payload.
type Item struct {
	Question   string   `json:"question"`
	Stem       string   `json:"stem,omitempty"`
	Options    []Choice `json:"options,omitempty"`
	Answer     string   `json:"answer"`
	AnswerType string   `json:"answer_type,omitempty"`

	Explanation string `json:"explanation,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`

	// Key word transformation (Reading & Use of English Part 4)
	OriginalSentence string `json:"original_sentence,omitempty"`
	SecondSentence   string `json:"second_sentence,omitempty"`
	Keyword          string `json:"keyword,omitempty"`
}

// Choice is one literal option of an item. Generators emit either bare
// strings ("A. inevitable") or objects ({"text": "...", "label": "A"}).
type Choice struct {
	Text  string `json:"text"`
	Label string `json:"label,omitempty"`
}

func (c *Choice) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		c.Label = ""
		return nil
	}
	type alias Choice
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*c = Choice(a)
	return nil
}

// AnswerMap maps an item key to the user's current answer.
type AnswerMap map[string]string

// ItemKey returns the answer-map key for the item at position idx: its
// prompt text, or the ordinal when the prompt is absent or duplicated.
func ItemKey(items []Item, idx int) string {
	q := items[idx].Question
	if q == "" {
		return strconv.Itoa(idx)
	}
	for i := range items {
		if i != idx && items[i].Question == q {
			return strconv.Itoa(idx)
		}
	}
	return q
}
