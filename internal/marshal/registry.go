package marshal

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Registry maps native Go types and schema type names to marshallers.
// It is safe for concurrent use.
type Registry struct {
	byType map[reflect.Type]BaseMarshaller
	byName map[string]BaseMarshaller
	mu     sync.RWMutex
}

// NewRegistry creates an empty marshaller registry
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[reflect.Type]BaseMarshaller),
		byName: make(map[string]BaseMarshaller),
	}
}

// Register adds a marshaller. Both its native type and its type name must be
// unregistered.
func (r *Registry) Register(m BaseMarshaller) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byType[m.NativeType()]; exists {
		return fmt.Errorf("native type %s: %w", m.NativeType(), ErrDuplicateMarshaller)
	}
	if _, exists := r.byName[m.TypeName()]; exists {
		return fmt.Errorf("type %s: %w", m.TypeName(), ErrDuplicateMarshaller)
	}

	r.byType[m.NativeType()] = m
	r.byName[m.TypeName()] = m
	return nil
}

// Override registers m, replacing any marshaller previously registered for
// the same native type or type name. It returns the replaced marshaller, if any.
func (r *Registry) Override(m BaseMarshaller) BaseMarshaller {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.byType[m.NativeType()]
	if prev == nil {
		prev = r.byName[m.TypeName()]
	}
	if prev != nil {
		r.remove(prev)
	}
	// A stale entry under the other key belongs to a different marshaller.
	if other, ok := r.byName[m.TypeName()]; ok {
		r.remove(other)
	}

	r.byType[m.NativeType()] = m
	r.byName[m.TypeName()] = m
	return prev
}

// Lookup returns the marshaller registered for a native type
func (r *Registry) Lookup(t reflect.Type) (BaseMarshaller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.byType[t]
	return m, exists
}

// LookupByName returns the marshaller registered for a schema type name
func (r *Registry) LookupByName(name string) (BaseMarshaller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.byName[name]
	return m, exists
}

// Unregister removes the marshaller for a native type. It reports whether one
// was registered.
func (r *Registry) Unregister(t reflect.Type) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.byType[t]
	if !exists {
		return false
	}
	r.remove(m)
	return true
}

// Len returns the number of registered marshallers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byType)
}

// Names returns the registered type names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear removes all registered marshallers (useful for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byType = make(map[reflect.Type]BaseMarshaller)
	r.byName = make(map[string]BaseMarshaller)
}

// remove must be called with the write lock held.
func (r *Registry) remove(m BaseMarshaller) {
	if r.byType[m.NativeType()] == m {
		delete(r.byType, m.NativeType())
	}
	if r.byName[m.TypeName()] == m {
		delete(r.byName, m.TypeName())
	}
}
