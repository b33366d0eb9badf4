// Package enrich adds derived fields to payloads before rendering.
// Enrichers are named transformations registered once at startup and
// selected per request or per mapping document.
package enrich

import (
	"fmt"
	"time"

	"github.com/jonathan/doc-composer/internal/value"
)

// timeNow is stubbed in tests.
var timeNow = time.Now

// Enricher is a named payload transformation. Enrich returns a new
// payload; implementations must not mutate their input.
type Enricher interface {
	Name() string
	Enrich(payload *value.Map) *value.Map
}

// Registry holds enrichers by name.
type Registry struct {
	names     []string
	enrichers map[string]Enricher
}

// NewRegistry creates a registry with the given enrichers.
func NewRegistry(enrichers ...Enricher) *Registry {
	r := &Registry{enrichers: make(map[string]Enricher)}
	for _, e := range enrichers {
		r.Register(e)
	}
	return r
}

// DefaultRegistry returns a registry with the built-in enrichers.
func DefaultRegistry() *Registry {
	return NewRegistry(
		&DateFormatting{},
		&PremiumCalculation{},
		&EnrollmentContext{},
		&CoverageSummary{},
	)
}

// Register adds an enricher. Re-registering a name replaces it.
func (r *Registry) Register(e Enricher) {
	if _, exists := r.enrichers[e.Name()]; !exists {
		r.names = append(r.names, e.Name())
	}
	r.enrichers[e.Name()] = e
}

// Has reports whether the named enricher exists.
func (r *Registry) Has(name string) bool {
	_, ok := r.enrichers[name]
	return ok
}

// Names lists registered enrichers in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Apply runs the named enrichers in sequence over the payload. An
// unknown name fails the whole call.
func (r *Registry) Apply(names []string, payload *value.Map) (*value.Map, error) {
	enriched := payload
	for _, name := range names {
		e, ok := r.enrichers[name]
		if !ok {
			return nil, fmt.Errorf("no payload enricher registered with name: %s", name)
		}
		enriched = e.Enrich(enriched)
	}
	return enriched, nil
}
