package cache

import "sync"

// Store is the cache surface the registry needs: caches of any value
// type satisfy it.
type Store interface {
	Name() string
	Stats() Stats
	Evict(key string) bool
	Clear()
}

// Registry tracks every named cache in the process so admin handlers
// can report and clear them uniformly.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	stores map[string]Store
}

func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]Store)}
}

// Register adds a cache under its name. Registering the same name
// twice replaces the earlier cache.
func (r *Registry) Register(s Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stores[s.Name()]; !exists {
		r.order = append(r.order, s.Name())
	}
	r.stores[s.Name()] = s
}

// Lookup returns the cache registered under name.
func (r *Registry) Lookup(name string) (Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[name]
	return s, ok
}

// Stats returns a snapshot per cache, in registration order.
func (r *Registry) Stats() []Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Stats, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.stores[name].Stats())
	}
	return out
}

// Clear empties the named cache, reporting whether it exists.
func (r *Registry) Clear(name string) bool {
	r.mu.RLock()
	s, ok := r.stores[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	s.Clear()
	return true
}

// ClearAll empties every registered cache.
func (r *Registry) ClearAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.stores {
		s.Clear()
	}
}
