package schema

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Registry memoizes entity metadata per Go type. Metadata for a type is
// built at most once; concurrent first lookups wait for that single build.
type Registry struct {
	entries map[reflect.Type]*entry
	mu      sync.RWMutex
}

type entry struct {
	once  sync.Once
	build func() any
	meta  any
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[reflect.Type]*entry),
	}
}

// Resolve returns the metadata for T, building it from T's Descriptor on
// first use. It never fails: a type without a descriptor resolves to
// metadata with an empty table and no columns.
func Resolve[T any, PT Model[T]](r *Registry) *EntityMetadata[T] {
	key := reflect.TypeFor[T]()
	e := r.entryFor(key, func() any {
		var zero T
		return newMetadata[T](key.String(), PT(&zero).Descriptor())
	})

	e.once.Do(func() { e.meta = e.build() })
	return e.meta.(*EntityMetadata[T])
}

// Register installs an explicit descriptor for T, taking precedence over
// T's own Descriptor. It must run before T is first resolved.
func Register[T any](r *Registry, d *Descriptor[T]) error {
	key := reflect.TypeFor[T]()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("entity %s is already registered", key)
	}

	r.entries[key] = &entry{
		build: func() any { return newMetadata[T](key.String(), d) },
	}
	return nil
}

// Lookup returns the metadata for T if T has been registered or resolved
// before. Unlike Resolve it never falls back to T's own Descriptor.
func Lookup[T any](r *Registry) (*EntityMetadata[T], bool) {
	r.mu.RLock()
	e, ok := r.entries[reflect.TypeFor[T]()]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	// once.Do establishes the happens-before edge for meta; a pending
	// build is waited for rather than observed half-done.
	e.once.Do(func() { e.meta = e.build() })
	m, ok := e.meta.(*EntityMetadata[T])
	return m, ok
}

func (r *Registry) entryFor(key reflect.Type, build func() any) *entry {
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[key]; ok {
		return e
	}
	e = &entry{build: build}
	r.entries[key] = e
	return e
}

// List returns the names of all known types, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for key := range r.entries {
		names = append(names, key.String())
	}
	sort.Strings(names)
	return names
}

// Count returns the number of known types.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// Clear removes all entries (useful for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[reflect.Type]*entry)
}
