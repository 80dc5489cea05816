package validator

import (
	"errors"
	"testing"

	"github.com/c1advanced/c1prep/internal/domain"
)

type sample struct {
	Level    string `json:"level" validate:"required,cefr_level"`
	LogLevel string `yaml:"log_level" validate:"omitempty,log_level"`
	Pack     int    `json:"pack_size" validate:"gte=1,lte=20"`
}

func TestStruct(t *testing.T) {
	v := New()

	tests := []struct {
		name      string
		in        sample
		wantField string
		wantRule  string
	}{
		{"valid", sample{Level: "C1", Pack: 5}, "", ""},
		{"lower case level", sample{Level: "b2", Pack: 5}, "", ""},
		{"missing level", sample{Pack: 5}, "level", "required"},
		{"bad level", sample{Level: "D9", Pack: 5}, "level", "cefr_level"},
		{"bad log level", sample{Level: "C1", LogLevel: "loud", Pack: 5}, "log_level", "log_level"},
		{"pack too small", sample{Level: "C1", Pack: 0}, "pack_size", "gte"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.in)
			if tt.wantRule == "" {
				if err != nil {
					t.Fatalf("Struct() error = %v", err)
				}
				return
			}
			var ves domain.ValidationErrors
			if !errors.As(err, &ves) {
				t.Fatalf("Struct() error = %v; want ValidationErrors", err)
			}
			if ves[0].Field != tt.wantField || ves[0].Rule != tt.wantRule {
				t.Errorf("got %s/%s; want %s/%s", ves[0].Field, ves[0].Rule, tt.wantField, tt.wantRule)
			}
		})
	}
}

func TestVar(t *testing.T) {
	v := Default()
	if err := v.Var("base_url", "https://example.com", "required,url"); err != nil {
		t.Errorf("Var() error = %v", err)
	}
	err := v.Var("base_url", "not a url", "required,url")
	var ves domain.ValidationErrors
	if !errors.As(err, &ves) || ves[0].Field != "base_url" {
		t.Errorf("Var() error = %v; want base_url validation error", err)
	}
}

func TestDomainExerciseTags(t *testing.T) {
	v := Default()
	ex := domain.Exercise{
		Type:    "writing2",
		Options: []domain.TaskOption{{ID: "a", Text: "t"}, {ID: "", Text: "t"}},
	}
	err := v.Struct(ex)
	var ves domain.ValidationErrors
	if !errors.As(err, &ves) {
		t.Fatalf("Struct() error = %v; want ValidationErrors", err)
	}
	if ves[0].Field != "options[1].id" {
		t.Errorf("Field = %q; want %q", ves[0].Field, "options[1].id")
	}
}
