package config

import (
	"fmt"
	"strings"
)

// ValidationError collects every problem found while validating a config.
type ValidationError struct {
	Errors []error
}

// NewValidationError creates an empty ValidationError
func NewValidationError() *ValidationError {
	return &ValidationError{
		Errors: make([]error, 0),
	}
}

// Add appends err; nil is ignored.
func (v *ValidationError) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// HasErrors reports whether anything was added
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}

	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("found %d validation errors:\n", len(v.Errors)))
	for i, err := range v.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %v\n", i+1, err))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (v *ValidationError) Unwrap() []error {
	return v.Errors
}

// ErrorOrNil returns v if it has errors, otherwise nil
func (v *ValidationError) ErrorOrNil() error {
	if v.HasErrors() {
		return v
	}
	return nil
}
