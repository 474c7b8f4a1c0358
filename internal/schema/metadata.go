// Package schema models the metadata that turns Go type declarations into a
// protobuf schema and binds each declared type to a marshaller.
//
// A TypeMetadata is one of three kinds: a Proxy (a marshaller placeholder that
// contributes nothing to the schema), a MessageType or an EnumType. Messages
// own their nested types; nested types keep a non-owning link back to the
// enclosing message, which is how FullName is resolved.
//
// Metadata is built by a scanner bottom-up: nested types are constructed first,
// attached with MessageType.AddNested, then ScanMembers is called once per
// type. A generator finally walks the top-level types and calls EmitSchema,
// which recurses into nested types.
//
// Nothing in this package is safe for concurrent use.
package schema

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/karesti/protostream/internal/marshal"
)

// TypeMetadata is the common contract of every schema type.
// The set of implementations is closed: *Proxy, *MessageType and *EnumType.
type TypeMetadata interface {
	// Name is the unqualified schema identifier.
	Name() string
	// FullName is Name qualified by the names of all enclosing types,
	// outermost first, joined with dots.
	FullName() string
	// NativeType is the Go type described, or nil for synthesized metadata.
	NativeType() reflect.Type
	// Kind is the declared kind.
	Kind() Kind
	// State reports how far the type is through scan and emission.
	State() State

	Marshaller() marshal.BaseMarshaller
	// BindMarshaller attaches or replaces the marshaller. No compatibility
	// check is made against NativeType.
	BindMarshaller(m marshal.BaseMarshaller)
	// IsEnum reports whether the bound marshaller is an enum marshaller.
	// It is false when nothing is bound.
	IsEnum() bool

	// EnclosingType is the message declaring this type, or nil.
	EnclosingType() *MessageType
	IsTopLevel() bool

	// ScanMembers populates fields or values from the native type.
	// It must be called at most once, before EmitSchema.
	ScanMembers(resolver TypeResolver) error
	// EmitSchema appends the type's IDL block to w.
	EmitSchema(w *SchemaWriter)

	metadata() *typeMetadata
}

type typeMetadata struct {
	name       string
	nativeType reflect.Type
	marshaller marshal.BaseMarshaller
	enclosing  *MessageType
	state      State
}

func newTypeMetadata(name string, nativeType reflect.Type) typeMetadata {
	if name == "" {
		panic("schema: type metadata requires a name")
	}
	return typeMetadata{name: name, nativeType: nativeType}
}

func newTypeMetadataFromMarshaller(m marshal.BaseMarshaller) typeMetadata {
	t := newTypeMetadata(m.TypeName(), m.NativeType())
	t.marshaller = m
	return t
}

func (t *typeMetadata) metadata() *typeMetadata { return t }

func (t *typeMetadata) Name() string { return t.name }

func (t *typeMetadata) FullName() string {
	if t.enclosing == nil {
		return t.name
	}

	var names []string
	for e := t.enclosing; e != nil; e = e.enclosing {
		names = append(names, e.name)
	}
	slices.Reverse(names)
	names = append(names, t.name)
	return strings.Join(names, ".")
}

func (t *typeMetadata) NativeType() reflect.Type { return t.nativeType }

func (t *typeMetadata) State() State { return t.state }

func (t *typeMetadata) Marshaller() marshal.BaseMarshaller { return t.marshaller }

func (t *typeMetadata) BindMarshaller(m marshal.BaseMarshaller) { t.marshaller = m }

func (t *typeMetadata) IsEnum() bool { return marshal.IsEnum(t.marshaller) }

func (t *typeMetadata) EnclosingType() *MessageType { return t.enclosing }

func (t *typeMetadata) IsTopLevel() bool { return t.enclosing == nil }

// setEnclosingType links t to the message that declares it. The link is set
// once and must not close a cycle.
func (t *typeMetadata) setEnclosingType(outer *MessageType) {
	if t.enclosing != nil {
		panic(fmt.Sprintf("schema: enclosing type of %s is already %s", t.name, t.enclosing.FullName()))
	}
	for e := outer; e != nil; e = e.enclosing {
		if &e.typeMetadata == t {
			panic(fmt.Sprintf("schema: nesting %s inside %s creates a cycle", t.name, outer.FullName()))
		}
	}
	t.enclosing = outer
}

// beginScan guards the at-most-once, before-emission scan rule.
func (t *typeMetadata) beginScan() {
	switch t.state {
	case StateMembersScanned:
		panic(fmt.Sprintf("schema: members of %s already scanned", t.FullName()))
	case StateSchemaEmitted:
		panic(fmt.Sprintf("schema: members of %s scanned after schema emission", t.FullName()))
	}
}

// Proxy binds a marshaller to a type that contributes nothing to the schema,
// such as a built-in scalar or a message declared in another file.
type Proxy struct {
	typeMetadata
}

// NewProxy creates a placeholder whose name and native type come from m.
func NewProxy(m marshal.BaseMarshaller) *Proxy {
	return &Proxy{typeMetadata: newTypeMetadataFromMarshaller(m)}
}

// Kind returns KindProxy.
func (p *Proxy) Kind() Kind { return KindProxy }

// ScanMembers has nothing to scan.
func (p *Proxy) ScanMembers(TypeResolver) error {
	p.beginScan()
	p.state = StateMembersScanned
	return nil
}

// EmitSchema writes nothing.
func (p *Proxy) EmitSchema(*SchemaWriter) {
	p.state = StateSchemaEmitted
}
