// Package mapping resolves the mapping document that drives document
// generation. A mapping is composed from an ordered list of candidate
// fragments fetched from the config store, deep-merged from least to
// most specific, with an optional inline per-request override applied
// last.
package mapping

import "github.com/jonathan/doc-composer/internal/value"

// Request carries the attributes that select mapping fragments, plus
// the payload the mapping will be applied to.
type Request struct {
	TemplateName   string
	ClientService  string
	Label          string
	ProductType    string
	MarketCategory string
	State          string

	// Payload is consulted for list-valued placeholder expansion
	// ({product} against a "products" list, and so on).
	Payload *value.Map

	// MappingOverride is optional inline YAML merged over the composed
	// document. Dotted keys are unflattened first.
	MappingOverride string
}

// Label or "main" when unset.
func (r *Request) label() string {
	if r.Label == "" {
		return "main"
	}
	return r.Label
}

// attribute returns the single-valued request attribute for a
// recognized placeholder name, or "" for unknown names.
func (r *Request) attribute(name string) string {
	switch name {
	case "template":
		return r.TemplateName
	case "product":
		return r.ProductType
	case "market":
		return r.MarketCategory
	case "state":
		return r.State
	default:
		return ""
	}
}

// recognizedPlaceholder reports whether name is one of the request
// attributes a pattern may reference.
func recognizedPlaceholder(name string) bool {
	switch name {
	case "template", "product", "market", "state":
		return true
	}
	return false
}
