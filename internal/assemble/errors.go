package assemble

import "fmt"

// Kind classifies assembly failures for the HTTP error taxonomy.
type Kind string

const (
	KindInvalidPlan        Kind = "MappingInvalid"
	KindUnknownSectionType Kind = "UnknownSectionType"
	KindUnknownEnricher    Kind = "UnknownEnricher"
	KindUnknownGenerator   Kind = "UnknownGenerator"
	KindTemplateNotFound   Kind = "TemplateNotFound"
	KindRenderFailure      Kind = "TemplateRenderFailure"
	KindAssemblyFailure    Kind = "AssemblyFailure"
)

// Error is a typed assembly failure.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func errf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}
