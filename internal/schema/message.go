package schema

import (
	"reflect"
	"slices"

	"github.com/karesti/protostream/internal/marshal"
)

// MessageType describes a message. It owns its nested types and fields,
// both kept in declaration order.
type MessageType struct {
	typeMetadata
	documentation string
	nested        []TypeMetadata
	fields        []*Field
	reserved      reservations
}

// NewMessageType creates message metadata before a marshaller is known.
func NewMessageType(name string, nativeType reflect.Type) *MessageType {
	return &MessageType{typeMetadata: newTypeMetadata(name, nativeType)}
}

// NewMessageTypeFromMarshaller creates message metadata whose name and native
// type come from m.
func NewMessageTypeFromMarshaller(m marshal.BaseMarshaller) *MessageType {
	return &MessageType{typeMetadata: newTypeMetadataFromMarshaller(m)}
}

// Kind returns KindMessage.
func (m *MessageType) Kind() Kind { return KindMessage }

// SetDocumentation sets the comment emitted above the message block.
func (m *MessageType) SetDocumentation(doc string) { m.documentation = doc }

func (m *MessageType) Documentation() string { return m.documentation }

// AddNested declares types as nested members of m and links each back to m.
// A type can be nested only once; re-nesting panics, as does nesting that
// would make m enclose itself.
func (m *MessageType) AddNested(types ...TypeMetadata) {
	for _, t := range types {
		if t == nil {
			panic("schema: nil nested type in " + m.FullName())
		}
		t.metadata().setEnclosingType(m)
		m.nested = append(m.nested, t)
	}
}

// Nested returns the nested types in declaration order.
func (m *MessageType) Nested() []TypeMetadata {
	return slices.Clone(m.nested)
}

// FindNested returns the directly nested type with the given name.
func (m *MessageType) FindNested(name string) (TypeMetadata, bool) {
	for _, t := range m.nested {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// AddField appends a field.
func (m *MessageType) AddField(f *Field) {
	m.fields = append(m.fields, f)
}

// Fields returns the fields in declaration order.
func (m *MessageType) Fields() []*Field {
	return slices.Clone(m.fields)
}

// Field returns the field with the given name.
func (m *MessageType) Field(name string) (*Field, bool) {
	for _, f := range m.fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Reserve marks field numbers as reserved.
func (m *MessageType) Reserve(numbers ...int32) { m.reserved.reserve(numbers...) }

// ReserveNames marks field names as reserved.
func (m *MessageType) ReserveNames(names ...string) { m.reserved.reserveNames(names...) }

func (m *MessageType) ReservedNumbers() []int32 { return slices.Clone(m.reserved.numbers) }

func (m *MessageType) ReservedNames() []string { return slices.Clone(m.reserved.names) }

// ScanMembers reads fields from the proto struct tags of the native type.
// Metadata without a native type keeps whatever fields were added directly.
// Types referenced by fields are looked up through resolver, which may be nil
// when the message only has scalar fields.
func (m *MessageType) ScanMembers(resolver TypeResolver) error {
	m.beginScan()

	if m.nativeType != nil {
		fields, err := scanStructFields(m.FullName(), m.nativeType, resolver)
		if err != nil {
			return err
		}
		m.fields = append(m.fields, fields...)
	}

	m.state = StateMembersScanned
	return nil
}

// EmitSchema writes the message block: nested types, reserved statements,
// then fields, each in declaration order.
func (m *MessageType) EmitSchema(w *SchemaWriter) {
	if m.documentation != "" {
		w.Comment(m.documentation)
	}
	w.OpenBlock("message " + m.name)

	for _, t := range m.nested {
		t.EmitSchema(w)
	}
	m.reserved.emit(w)
	for _, f := range m.fields {
		f.emit(w)
	}

	w.CloseBlock()
	m.state = StateSchemaEmitted
}
