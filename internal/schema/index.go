package schema

import "reflect"

// Index flattens a forest of metadata so types can be found by native type
// or by full name. It implements TypeResolver.
type Index struct {
	all    []TypeMetadata
	byType map[reflect.Type]TypeMetadata
	byName map[string]TypeMetadata
}

// NewIndex indexes roots and everything nested under them.
func NewIndex(roots ...TypeMetadata) *Index {
	idx := &Index{
		byType: make(map[reflect.Type]TypeMetadata),
		byName: make(map[string]TypeMetadata),
	}
	for _, root := range roots {
		idx.Add(root)
	}
	return idx
}

// Add indexes t and its nested types. When two types share a native type or
// full name, the first one added wins.
func (idx *Index) Add(t TypeMetadata) {
	Walk(t, func(md TypeMetadata) {
		idx.all = append(idx.all, md)
		if nt := md.NativeType(); nt != nil {
			if _, exists := idx.byType[nt]; !exists {
				idx.byType[nt] = md
			}
		}
		if _, exists := idx.byName[md.FullName()]; !exists {
			idx.byName[md.FullName()] = md
		}
	})
}

// Resolve returns the metadata for a native type. Pointer types resolve to
// the metadata of their element type when they have none of their own.
func (idx *Index) Resolve(t reflect.Type) (TypeMetadata, bool) {
	if md, ok := idx.byType[t]; ok {
		return md, true
	}
	// Metadata may be keyed by either T or *T.
	if t.Kind() == reflect.Pointer {
		md, ok := idx.byType[t.Elem()]
		return md, ok
	}
	md, ok := idx.byType[reflect.PointerTo(t)]
	return md, ok
}

// Lookup returns the metadata with the given full name.
func (idx *Index) Lookup(fullName string) (TypeMetadata, bool) {
	md, ok := idx.byName[fullName]
	return md, ok
}

// All returns every indexed type, each parent before its nested types.
func (idx *Index) All() []TypeMetadata {
	out := make([]TypeMetadata, len(idx.all))
	copy(out, idx.all)
	return out
}

// Len returns the number of indexed types.
func (idx *Index) Len() int {
	return len(idx.all)
}

// Walk calls fn for t and then, depth first, for every type nested in it.
func Walk(t TypeMetadata, fn func(TypeMetadata)) {
	fn(t)
	if m, ok := t.(*MessageType); ok {
		for _, n := range m.nested {
			Walk(n, fn)
		}
	}
}
