package protogen

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/karesti/protostream/internal/schema"
	utilstrings "github.com/karesti/protostream/internal/util/strings"
)

// ValidationError describes one problem in a type or one of its members.
type ValidationError struct {
	Type    string
	Member  string
	Message string
	Hint    string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	var b strings.Builder

	b.WriteString(e.Type)
	if e.Member != "" {
		b.WriteString(".")
		b.WriteString(e.Member)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)

	if e.Hint != "" {
		b.WriteString("\n  hint: ")
		b.WriteString(e.Hint)
	}

	return b.String()
}

// Validate checks every registered type against the protobuf language rules
// and then links the schema as a descriptor. All structural problems are
// reported together; descriptor linking only runs when there are none.
func (g *Generator) Validate() error {
	v := &validator{syntax: g.opts.Syntax}
	for _, root := range g.types {
		schema.Walk(root, v.validateType)
	}
	if len(v.errors) > 0 {
		errs := make([]error, len(v.errors))
		for i, e := range v.errors {
			errs[i] = e
		}
		return errors.Join(errs...)
	}

	if _, err := g.FileDescriptor(); err != nil {
		return err
	}
	return nil
}

type validator struct {
	syntax schema.Syntax
	errors []*ValidationError
}

func (v *validator) addError(typeName, member, message, hint string) {
	v.errors = append(v.errors, &ValidationError{
		Type:    typeName,
		Member:  member,
		Message: message,
		Hint:    hint,
	})
}

func (v *validator) validateType(md schema.TypeMetadata) {
	switch t := md.(type) {
	case *schema.MessageType:
		v.validateName(t)
		v.validateMessage(t)
	case *schema.EnumType:
		v.validateName(t)
		v.validateEnum(t)
	}
}

func (v *validator) validateName(md schema.TypeMetadata) {
	if !utilstrings.IsIdentifier(md.Name()) {
		v.addError(md.FullName(), "", fmt.Sprintf("%q is not a valid identifier", md.Name()), "")
	}
}

func (v *validator) validateMessage(m *schema.MessageType) {
	name := m.FullName()

	nestedNames := make(map[string]bool)
	for _, n := range m.Nested() {
		if nestedNames[n.Name()] {
			v.addError(name, n.Name(), "duplicate nested type", "")
		}
		nestedNames[n.Name()] = true
	}

	reserved := make(map[int32]bool)
	for _, n := range m.ReservedNumbers() {
		reserved[n] = true
	}
	reservedNames := make(map[string]bool)
	for _, n := range m.ReservedNames() {
		reservedNames[n] = true
	}

	numbers := make(map[int32]string)
	names := make(map[string]bool)
	for _, f := range m.Fields() {
		if !utilstrings.IsIdentifier(f.Name) {
			v.addError(name, f.Name, "invalid field name", "")
		}
		if names[f.Name] {
			v.addError(name, f.Name, "duplicate field name", "")
		}
		names[f.Name] = true

		if reservedNames[f.Name] {
			v.addError(name, f.Name, "field name is reserved", "")
		}

		v.validateFieldNumber(name, f)
		if other, exists := numbers[f.Number]; exists {
			v.addError(name, f.Name, fmt.Sprintf("field number %d already used by %s", f.Number, other), "")
		} else {
			numbers[f.Number] = f.Name
		}
		if reserved[f.Number] {
			v.addError(name, f.Name, fmt.Sprintf("field number %d is reserved", f.Number), "")
		}

		if (f.Type == schema.TypeMessage || f.Type == schema.TypeEnum) && f.TypeName == "" {
			v.addError(name, f.Name, fmt.Sprintf("%s field has no type name", f.Type), "")
		}

		if v.syntax == schema.SyntaxProto3 {
			if f.Label == schema.LabelRequired {
				v.addError(name, f.Name, "required fields are not allowed in proto3", "make the field optional or use proto2")
			}
			if f.DefaultValue != "" {
				v.addError(name, f.Name, "default values are not allowed in proto3", "")
			}
		}
		if f.Type == schema.TypeMessage && f.DefaultValue != "" {
			v.addError(name, f.Name, "message fields cannot have a default value", "")
		}
		if f.Label == schema.LabelRepeated && f.DefaultValue != "" {
			v.addError(name, f.Name, "repeated fields cannot have a default value", "")
		}
	}
}

func (v *validator) validateFieldNumber(typeName string, f *schema.Field) {
	n := protowire.Number(f.Number)
	switch {
	case n < protowire.MinValidNumber || n > protowire.MaxValidNumber:
		v.addError(typeName, f.Name,
			fmt.Sprintf("field number %d out of range", f.Number),
			fmt.Sprintf("use a number between %d and %d", protowire.MinValidNumber, protowire.MaxValidNumber))
	case n >= protowire.FirstReservedNumber && n <= protowire.LastReservedNumber:
		v.addError(typeName, f.Name,
			fmt.Sprintf("field number %d is reserved for the protobuf implementation", f.Number),
			fmt.Sprintf("avoid %d through %d", protowire.FirstReservedNumber, protowire.LastReservedNumber))
	}
}

func (v *validator) validateEnum(e *schema.EnumType) {
	name := e.FullName()
	values := e.Values()

	if len(values) == 0 {
		v.addError(name, "", "enum must declare at least one value", "")
		return
	}
	if v.syntax == schema.SyntaxProto3 && values[0].Number != 0 {
		v.addError(name, values[0].Label, "the first value of a proto3 enum must be zero", "")
	}

	reserved := make(map[int32]bool)
	for _, n := range e.ReservedNumbers() {
		reserved[n] = true
	}
	reservedNames := make(map[string]bool)
	for _, n := range e.ReservedNames() {
		reservedNames[n] = true
	}

	seen := make(map[string]bool)
	for _, val := range values {
		if !utilstrings.IsIdentifier(val.Label) {
			v.addError(name, val.Label, "invalid enum value label", "")
		}
		if seen[val.Label] {
			v.addError(name, val.Label, "duplicate enum value label", "")
		}
		seen[val.Label] = true
		if reserved[val.Number] {
			v.addError(name, val.Label, fmt.Sprintf("enum value number %d is reserved", val.Number), "")
		}
		if reservedNames[val.Label] {
			v.addError(name, val.Label, "enum value label is reserved", "")
		}
	}
}
