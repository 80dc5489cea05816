package exercise

import (
	"strings"
	"unicode/utf8"
)

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// CharCount counts characters after trimming surrounding whitespace.
func CharCount(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

// AppendTranscript appends transcribed text to an existing buffer with a
// single separating space. The existing text is never replaced.
func AppendTranscript(buffer, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return buffer
	}
	if strings.TrimSpace(buffer) == "" {
		return text
	}
	return strings.TrimRight(buffer, " ") + " " + text
}
