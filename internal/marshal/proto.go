package marshal

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"
)

// ProtoMessage is a MessageMarshaller for generated protobuf message types.
// Encoding is delegated to google.golang.org/protobuf/proto.
type ProtoMessage struct {
	typeName   string
	nativeType reflect.Type
}

// NewProtoMessage creates a marshaller for the concrete type of prototype.
// The type name is the message's fully qualified protobuf name.
func NewProtoMessage(prototype proto.Message) *ProtoMessage {
	return &ProtoMessage{
		typeName:   string(prototype.ProtoReflect().Descriptor().FullName()),
		nativeType: reflect.TypeOf(prototype),
	}
}

// TypeName returns the fully qualified message name.
func (p *ProtoMessage) TypeName() string {
	return p.typeName
}

// NativeType returns the generated Go type (a pointer type).
func (p *ProtoMessage) NativeType() reflect.Type {
	return p.nativeType
}

// Marshal encodes v, which must be of the marshaller's native type.
func (p *ProtoMessage) Marshal(v any) ([]byte, error) {
	m, err := p.message(v)
	if err != nil {
		return nil, err
	}
	data, err := proto.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", p.typeName, err)
	}
	return data, nil
}

// Unmarshal decodes data into v, which must be of the marshaller's native type.
func (p *ProtoMessage) Unmarshal(data []byte, v any) error {
	m, err := p.message(v)
	if err != nil {
		return err
	}
	if err := proto.Unmarshal(data, m); err != nil {
		return fmt.Errorf("unmarshal %s: %w", p.typeName, err)
	}
	return nil
}

func (p *ProtoMessage) message(v any) (proto.Message, error) {
	if reflect.TypeOf(v) != p.nativeType {
		return nil, fmt.Errorf("%s: got %T: %w", p.typeName, v, ErrTypeMismatch)
	}
	return v.(proto.Message), nil
}
