package tax

import (
	"errors"
	"fmt"
)

// ErrInvalidRules is wrapped by every rule validation failure.
var ErrInvalidRules = errors.New("tax: invalid rules")

// RulesError pinpoints the rule entry that failed validation.
type RulesError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *RulesError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("tax: invalid rules: %s: %s", e.Field, e.Reason)
}

// Unwrap allows errors.Is(err, ErrInvalidRules).
func (e *RulesError) Unwrap() error {
	return ErrInvalidRules
}

func rulesErr(field, format string, args ...any) error {
	return &RulesError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
