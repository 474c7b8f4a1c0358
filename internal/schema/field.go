package schema

import (
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// FieldType is the declared protobuf type of a message field.
type FieldType int

const (
	TypeDouble FieldType = iota + 1
	TypeFloat
	TypeInt32
	TypeInt64
	TypeUint32
	TypeUint64
	TypeSint32
	TypeSint64
	TypeFixed32
	TypeFixed64
	TypeSfixed32
	TypeSfixed64
	TypeBool
	TypeString
	TypeBytes

	// TypeMessage and TypeEnum reference another schema type through Field.TypeName.
	TypeMessage
	TypeEnum
)

var fieldTypeKeywords = map[FieldType]string{
	TypeDouble:   "double",
	TypeFloat:    "float",
	TypeInt32:    "int32",
	TypeInt64:    "int64",
	TypeUint32:   "uint32",
	TypeUint64:   "uint64",
	TypeSint32:   "sint32",
	TypeSint64:   "sint64",
	TypeFixed32:  "fixed32",
	TypeFixed64:  "fixed64",
	TypeSfixed32: "sfixed32",
	TypeSfixed64: "sfixed64",
	TypeBool:     "bool",
	TypeString:   "string",
	TypeBytes:    "bytes",
	TypeMessage:  "message",
	TypeEnum:     "enum",
}

// String returns the IDL keyword of the type
func (t FieldType) String() string {
	if s, ok := fieldTypeKeywords[t]; ok {
		return s
	}
	return "unknown"
}

// ParseFieldType converts an IDL keyword to a FieldType
func ParseFieldType(s string) (FieldType, error) {
	for t, keyword := range fieldTypeKeywords {
		if keyword == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown field type: %s", s)
}

// IsScalar reports whether the type is a built-in scalar.
func (t FieldType) IsScalar() bool {
	return t >= TypeDouble && t <= TypeBytes
}

// WireType returns the wire type used to encode a single value of this type.
// Packed repeated fields are length-delimited regardless.
func (t FieldType) WireType() protowire.Type {
	switch t {
	case TypeDouble, TypeFixed64, TypeSfixed64:
		return protowire.Fixed64Type
	case TypeFloat, TypeFixed32, TypeSfixed32:
		return protowire.Fixed32Type
	case TypeString, TypeBytes, TypeMessage:
		return protowire.BytesType
	default:
		return protowire.VarintType
	}
}

// Label is the cardinality of a field.
type Label int

const (
	LabelOptional Label = iota
	LabelRequired
	LabelRepeated
)

// String returns the IDL keyword of the label
func (l Label) String() string {
	switch l {
	case LabelRequired:
		return "required"
	case LabelRepeated:
		return "repeated"
	default:
		return "optional"
	}
}

// ParseLabel converts an IDL keyword to a Label. The empty string is optional.
func ParseLabel(s string) (Label, error) {
	switch s {
	case "", "optional":
		return LabelOptional, nil
	case "required":
		return LabelRequired, nil
	case "repeated":
		return LabelRepeated, nil
	default:
		return 0, fmt.Errorf("unknown field label: %s", s)
	}
}

// Field describes one message field.
type Field struct {
	Name   string
	Number int32
	Type   FieldType
	// TypeName is the referenced type for TypeMessage and TypeEnum fields.
	// A leading dot marks a fully qualified name outside the file's package.
	TypeName      string
	Label         Label
	DefaultValue  string
	Documentation string
	// GoName is the struct field the reflection scanner read this field from.
	GoName string
}

// WireType is the wire type of a single value of the field.
func (f *Field) WireType() protowire.Type {
	return f.Type.WireType()
}

// IsRepeated reports whether the field is repeated.
func (f *Field) IsRepeated() bool {
	return f.Label == LabelRepeated
}

// TypeRef returns the type as written in the IDL.
func (f *Field) TypeRef() string {
	if f.Type == TypeMessage || f.Type == TypeEnum {
		return f.TypeName
	}
	return f.Type.String()
}

func (f *Field) emit(w *SchemaWriter) {
	if f.Documentation != "" {
		w.Comment(f.Documentation)
	}

	var b strings.Builder
	switch {
	case f.Label == LabelRepeated:
		b.WriteString("repeated ")
	case w.Syntax() == SyntaxProto2:
		b.WriteString(f.Label.String())
		b.WriteString(" ")
	case f.Label == LabelRequired:
		// proto3 has no required; keep it visible so validation can report it.
		b.WriteString("required ")
	}

	fmt.Fprintf(&b, "%s %s = %d", f.TypeRef(), f.Name, f.Number)

	if f.DefaultValue != "" {
		fmt.Fprintf(&b, " [default = %s]", f.defaultLiteral())
	}
	b.WriteString(";")

	w.Line(b.String())
}

func (f *Field) defaultLiteral() string {
	if f.Type == TypeString || f.Type == TypeBytes {
		return strconv.Quote(f.DefaultValue)
	}
	return f.DefaultValue
}
