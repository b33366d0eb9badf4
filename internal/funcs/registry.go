// Package funcs implements the field transformation functions usable
// in mapping values, written as #{name(arg1, arg2, ...)}. Arguments
// may be quoted literals, numbers, booleans, payload field references,
// or nested function calls.
package funcs

import (
	"strings"

	"github.com/jonathan/doc-composer/internal/value"
)

// Function transforms resolved arguments into a field value.
type Function interface {
	Name() string
	Description() string
	Apply(args []any, payload *value.Map) string
}

// Registry holds functions by lowercase name.
type Registry struct {
	names     []string
	functions map[string]Function
}

// NewRegistry creates a registry with all built-in functions.
func NewRegistry() *Registry {
	r := &Registry{functions: make(map[string]Function)}
	for _, f := range builtins() {
		r.Register(f)
	}
	return r
}

// Register adds a function. Lookup is case-insensitive.
func (r *Registry) Register(f Function) {
	key := strings.ToLower(f.Name())
	if _, exists := r.functions[key]; !exists {
		r.names = append(r.names, key)
	}
	r.functions[key] = f
}

// Get returns the named function.
func (r *Registry) Get(name string) (Function, bool) {
	f, ok := r.functions[strings.ToLower(name)]
	return f, ok
}

// Has reports whether the named function exists.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names lists registered function names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Descriptions returns name/description pairs in registration order,
// for the admin function listing.
func (r *Registry) Descriptions() *value.Map {
	out := value.NewMap()
	for _, name := range r.names {
		out.Set(name, r.functions[name].Description())
	}
	return out
}
