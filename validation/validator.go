package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/teashell/errors"
)

// Validator collects validation errors.
type Validator struct {
	errors []FieldError
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new Validator.
func New() *Validator {
	return &Validator{
		errors: make([]FieldError, 0),
	}
}

// AddError adds a field error.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, FieldError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Validate returns an AppError if there are validation errors, nil otherwise.
func (v *Validator) Validate() error {
	if !v.HasErrors() {
		return nil
	}

	messages := make([]string, len(v.errors))
	for i, e := range v.errors {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}

	appErr := errors.Validation(strings.Join(messages, "; "))
	appErr.Details = map[string]any{
		"fields": v.errors,
	}

	return appErr
}

// Required checks if a string is non-empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
	}
	return v
}

// NoNUL checks that no value contains a NUL byte, which cannot be passed
// through an argv or environment entry.
func (v *Validator) NoNUL(field string, values ...string) *Validator {
	for i, value := range values {
		if strings.IndexByte(value, 0) >= 0 {
			v.AddError(fmt.Sprintf("%s[%d]", field, i), "must not contain NUL bytes")
		}
	}
	return v
}

// EnvKeys checks that every key is usable as an environment variable name.
func (v *Validator) EnvKeys(field string, env map[string]string) *Validator {
	for key, value := range env {
		switch {
		case key == "":
			v.AddError(field, "keys must not be empty")
		case strings.ContainsAny(key, "=\x00"):
			v.AddError(field+"."+key, "key must not contain '=' or NUL")
		case strings.IndexByte(value, 0) >= 0:
			v.AddError(field+"."+key, "value must not contain NUL bytes")
		}
	}
	return v
}

// NonNegative checks that a duration is zero or positive.
func (v *Validator) NonNegative(field string, d time.Duration) *Validator {
	if d < 0 {
		v.AddError(field, "must not be negative")
	}
	return v
}

// Custom adds an error when condition is false.
func (v *Validator) Custom(condition bool, field, message string) *Validator {
	if !condition {
		v.AddError(field, message)
	}
	return v
}
