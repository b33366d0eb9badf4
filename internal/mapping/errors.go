package mapping

import "fmt"

// ComposeError represents a failure composing a mapping document.
type ComposeError struct {
	Message string
	Cause   error
}

func (e *ComposeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("mapping compose error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("mapping compose error: %s", e.Message)
}

func (e *ComposeError) Unwrap() error {
	return e.Cause
}
