package pattern

import (
	"errors"
	"fmt"
)

// Sentinel errors returned while compiling templates.
var (
	// ErrDuplicateParam indicates that a placeholder name appears more than once.
	ErrDuplicateParam = errors.New("duplicate parameter name")

	// ErrInvalidTemplate indicates a template that cannot be compiled.
	ErrInvalidTemplate = errors.New("invalid template")
)

// Error describes a template that failed to compile.
type Error struct {
	Template string
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("template %q: %s", e.Template, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *Error) Is(target error) bool {
	_, ok := target.(*Error)
	return ok || errors.Is(e.Cause, target)
}

func newError(template, message string, cause error) *Error {
	return &Error{Template: template, Message: message, Cause: cause}
}
