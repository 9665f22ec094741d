package scraper

import (
	"errors"
	"fmt"
)

// ValidationError reports caller input that prevents a run or an export
// from starting.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

var (
	// ErrNoSources is returned by Controller.Run when no source identifiers are given.
	ErrNoSources = &ValidationError{Field: "sources", Reason: "at least one source identifier is required"}
	// ErrNoOutput is returned by the file writers when the output path is empty.
	ErrNoOutput = &ValidationError{Field: "output", Reason: "an output file name is required"}
)

// IsValidationError reports whether err is a ValidationError (even when wrapped).
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
