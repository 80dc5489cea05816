package domain

import (
	"fmt"
	"strings"
)

// ValidationError describes one failed precondition.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Rule    string `json:"rule,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a list of precondition failures. It is always caught
// before any request is made and is recoverable by editing.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	return strings.Join(msgs, "; ")
}

// NewValidationError returns a single-entry ValidationErrors.
func NewValidationError(field, rule, format string, args ...any) ValidationErrors {
	return ValidationErrors{{Field: field, Rule: rule, Message: fmt.Sprintf(format, args...)}}
}
