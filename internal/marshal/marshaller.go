// Package marshal defines the marshaller contracts that schema type metadata
// binds to, plus a thread-safe registry that resolves marshallers by native
// Go type or by schema type name.
//
// Marshallers own the wire encoding. This package never encodes bytes itself:
// message marshallers delegate to google.golang.org/protobuf.
package marshal

import (
	"errors"
	"reflect"
)

var (
	// ErrDuplicateMarshaller is returned when a marshaller is registered for a
	// native type or type name that already has one.
	ErrDuplicateMarshaller = errors.New("marshaller already registered")
	// ErrUnknownEnumValue is returned when an enum number or value is not part
	// of the enum's declared value set.
	ErrUnknownEnumValue = errors.New("unknown enum value")
	// ErrTypeMismatch is returned when a marshaller receives a value whose Go
	// type differs from its native type.
	ErrTypeMismatch = errors.New("value type does not match marshaller")
)

// BaseMarshaller is implemented by every marshaller.
type BaseMarshaller interface {
	// TypeName is the schema name of the type this marshaller handles.
	TypeName() string
	// NativeType is the Go type this marshaller encodes and decodes.
	NativeType() reflect.Type
}

// EnumMarshaller converts enum values to and from their wire numbers.
type EnumMarshaller interface {
	BaseMarshaller
	Encode(v any) (int32, error)
	Decode(number int32) (any, error)
}

// MessageMarshaller encodes and decodes message instances.
type MessageMarshaller interface {
	BaseMarshaller
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// IsEnum reports whether m is an enum marshaller. A nil marshaller is not.
func IsEnum(m BaseMarshaller) bool {
	if m == nil {
		return false
	}
	_, ok := m.(EnumMarshaller)
	return ok
}
