// Package registry implements the name-indexed stores used for use cases and processors.
package registry

import (
	"sort"
	"sync"
)

// Registry is a name → instance store. Names are case-sensitive and the
// last Set for a name wins. It is safe for concurrent use, though the
// pipeline expects registration to finish before concurrent lookups begin.
type Registry[T any] struct {
	mu    sync.RWMutex
	kind  string
	items map[string]T
}

// New creates an empty Registry. kind names what the registry holds
// ("use case", "input processor", ...) and appears in NotFoundError.
func New[T any](kind string) *Registry[T] {
	return &Registry[T]{
		kind:  kind,
		items: make(map[string]T),
	}
}

// Set stores item under name, replacing any previous entry.
func (r *Registry[T]) Set(name string, item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[name] = item
}

// Get returns the item registered under name or a *NotFoundError.
func (r *Registry[T]) Get(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[name]
	if !ok {
		var zero T
		return zero, &NotFoundError{Kind: r.kind, Name: name}
	}
	return item, nil
}

// Has reports whether name is registered.
func (r *Registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.items[name]
	return ok
}

// Names returns the registered names, sorted.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Kind returns the label given to New.
func (r *Registry[T]) Kind() string {
	return r.kind
}

// NotFoundError is returned by Get for unknown names.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "item"
	}
	return kind + ` "` + e.Name + `" not found`
}
