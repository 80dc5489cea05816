// Package validator wraps go-playground/validator with the custom tags used
// by exercise payloads and configuration.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/c1advanced/c1prep/internal/domain"
	"github.com/go-playground/validator/v10"
)

var cefrLevels = []string{"A1", "A2", "B1", "B2", "C1", "C2"}

// Validator validates structs and converts failures into
// domain.ValidationErrors.
type Validator struct {
	validate *validator.Validate
}

var (
	defaultOnce sync.Once
	defaultV    *Validator
)

// New creates a validator with every custom tag registered.
func New() *Validator {
	v := validator.New()
	registerCustomValidators(v)
	return &Validator{validate: v}
}

// Default returns a process-wide validator.
func Default() *Validator {
	defaultOnce.Do(func() { defaultV = New() })
	return defaultV
}

// Struct validates s and returns domain.ValidationErrors on failure.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return fmt.Errorf("validate: %w", err)
	}
	return ToValidationErrors(ves)
}

// Var validates a single value against a tag expression.
func (v *Validator) Var(field string, value any, tag string) error {
	err := v.validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return fmt.Errorf("validate %s: %w", field, err)
	}
	out := ToValidationErrors(ves)
	for i := range out {
		out[i].Field = field
	}
	return out
}

func registerCustomValidators(v *validator.Validate) {
	_ = v.RegisterValidation("cefr_level", validateLevel)
	_ = v.RegisterValidation("log_level", validateLogLevel)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		}
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateLevel(fl validator.FieldLevel) bool {
	value := strings.ToUpper(fl.Field().String())
	for _, l := range cefrLevels {
		if l == value {
			return true
		}
	}
	return false
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch strings.ToLower(fl.Field().String()) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// ToValidationErrors converts validator field errors into the domain type.
func ToValidationErrors(ves validator.ValidationErrors) domain.ValidationErrors {
	out := make(domain.ValidationErrors, 0, len(ves))
	for _, fe := range ves {
		out = append(out, domain.ValidationError{
			Field:   fieldPath(fe),
			Message: message(fe),
			Rule:    fe.Tag(),
		})
	}
	return out
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be %s or more", fe.Param())
	case "url", "http_url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "cefr_level":
		return "must be a CEFR level (A1, A2, B1, B2, C1, C2)"
	case "log_level":
		return "must be debug, info, warn or error"
	default:
		return fmt.Sprintf("failed rule '%s'", fe.Tag())
	}
}
