package render

import "fmt"

// Error describes a template or rendering failure.
type Error struct {
	Template string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Template != "" {
		return fmt.Sprintf("%s (template %s)", e.Message, e.Template)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NotFoundError signals that no loader could supply the template.
type NotFoundError struct {
	Template string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("template not found: %s", e.Template)
}
