package schema

import (
	"reflect"
	"slices"

	"github.com/karesti/protostream/internal/marshal"
)

// EnumValue is one label/number pair of an enum.
type EnumValue struct {
	Label         string
	Number        int32
	Documentation string
}

// EnumDeclaration is implemented by Go enum types that declare their values.
// ScanMembers calls it on the zero value of the native type.
type EnumDeclaration interface {
	ProtoEnumValues() []EnumValue
}

// EnumType describes an enum and its values in declaration order.
type EnumType struct {
	typeMetadata
	documentation string
	values        []EnumValue
	reserved      reservations
}

// NewEnumType creates enum metadata before a marshaller is known.
func NewEnumType(name string, nativeType reflect.Type) *EnumType {
	return &EnumType{typeMetadata: newTypeMetadata(name, nativeType)}
}

// NewEnumTypeFromMarshaller creates enum metadata whose name and native type
// come from m.
func NewEnumTypeFromMarshaller(m marshal.BaseMarshaller) *EnumType {
	return &EnumType{typeMetadata: newTypeMetadataFromMarshaller(m)}
}

// Kind returns KindEnum.
func (e *EnumType) Kind() Kind { return KindEnum }

func (e *EnumType) SetDocumentation(doc string) { e.documentation = doc }

func (e *EnumType) Documentation() string { return e.documentation }

// AddValue appends values.
func (e *EnumType) AddValue(values ...EnumValue) {
	e.values = append(e.values, values...)
}

// Values returns the values in declaration order.
func (e *EnumType) Values() []EnumValue {
	return slices.Clone(e.values)
}

// Reserve marks value numbers as reserved.
func (e *EnumType) Reserve(numbers ...int32) { e.reserved.reserve(numbers...) }

// ReserveNames marks value labels as reserved.
func (e *EnumType) ReserveNames(names ...string) { e.reserved.reserveNames(names...) }

func (e *EnumType) ReservedNumbers() []int32 { return slices.Clone(e.reserved.numbers) }

func (e *EnumType) ReservedNames() []string { return slices.Clone(e.reserved.names) }

// HasAliases reports whether two labels share a number.
func (e *EnumType) HasAliases() bool {
	seen := make(map[int32]struct{}, len(e.values))
	for _, v := range e.values {
		if _, ok := seen[v.Number]; ok {
			return true
		}
		seen[v.Number] = struct{}{}
	}
	return false
}

// ScanMembers appends the values declared by the native type, if it
// implements EnumDeclaration.
func (e *EnumType) ScanMembers(TypeResolver) error {
	e.beginScan()

	if e.nativeType != nil {
		if decl, ok := zeroValue(e.nativeType).(EnumDeclaration); ok {
			e.values = append(e.values, decl.ProtoEnumValues()...)
		}
	}

	e.state = StateMembersScanned
	return nil
}

// EmitSchema writes the enum block.
func (e *EnumType) EmitSchema(w *SchemaWriter) {
	if e.documentation != "" {
		w.Comment(e.documentation)
	}
	w.OpenBlock("enum " + e.name)

	if e.HasAliases() {
		w.Line("option allow_alias = true;")
	}
	e.reserved.emit(w)
	for _, v := range e.values {
		if v.Documentation != "" {
			w.Comment(v.Documentation)
		}
		w.Linef("%s = %d;", v.Label, v.Number)
	}

	w.CloseBlock()
	e.state = StateSchemaEmitted
}

func zeroValue(t reflect.Type) any {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.Interface {
		return nil
	}
	return reflect.Zero(t).Interface()
}
