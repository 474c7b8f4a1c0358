package marshal

import (
	"fmt"
	"reflect"
)

// Enum is a generic EnumMarshaller for Go enums declared as named int32 types.
type Enum[T ~int32] struct {
	typeName string
	known    map[int32]struct{}
}

// NewEnum creates an enum marshaller. When values are given, Encode and Decode
// reject numbers outside that set; with no values every number is accepted.
func NewEnum[T ~int32](typeName string, values ...T) *Enum[T] {
	e := &Enum[T]{typeName: typeName}
	if len(values) > 0 {
		e.known = make(map[int32]struct{}, len(values))
		for _, v := range values {
			e.known[int32(v)] = struct{}{}
		}
	}
	return e
}

// TypeName returns the schema name of the enum.
func (e *Enum[T]) TypeName() string {
	return e.typeName
}

// NativeType returns the Go type T.
func (e *Enum[T]) NativeType() reflect.Type {
	return reflect.TypeOf(T(0))
}

// Encode returns the wire number of v, which must be a T.
func (e *Enum[T]) Encode(v any) (int32, error) {
	tv, ok := v.(T)
	if !ok {
		return 0, fmt.Errorf("%s: got %T: %w", e.typeName, v, ErrTypeMismatch)
	}
	n := int32(tv)
	if !e.accepts(n) {
		return 0, fmt.Errorf("%s: %d: %w", e.typeName, n, ErrUnknownEnumValue)
	}
	return n, nil
}

// Decode returns the T for a wire number.
func (e *Enum[T]) Decode(number int32) (any, error) {
	if !e.accepts(number) {
		return nil, fmt.Errorf("%s: %d: %w", e.typeName, number, ErrUnknownEnumValue)
	}
	return T(number), nil
}

func (e *Enum[T]) accepts(n int32) bool {
	if e.known == nil {
		return true
	}
	_, ok := e.known[n]
	return ok
}
