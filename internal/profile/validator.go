package profile

import (
	"fmt"
	"strings"
)

// ValidationError represents a profile validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate checks every stage of the profile.
//
// Returns nil if valid, or a *ValidationErrors with every problem found.
// An empty profile is valid: it selects the fallback load.
func (p LoadProfile) Validate() error {
	errs := &ValidationErrors{}

	validateStage("rampUp", p.RampUp, errs)
	validateStage("steady", p.Steady, errs)
	validateStage("rampDown", p.RampDown, errs)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateStage(prefix string, s Stage, errs *ValidationErrors) {
	if s.VUs != nil && *s.VUs < 0 {
		errs.Add(prefix+".vus", "vus cannot be negative")
	}

	if s.Duration != "" {
		if _, err := ParseDurationString(s.Duration); err != nil {
			errs.Add(prefix+".duration", fmt.Sprintf("invalid duration: %v", err))
		}
	}
}
