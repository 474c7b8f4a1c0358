// Package declfile loads schema type declarations from YAML files.
// JSON files load too, since JSON is valid YAML.
//
// A declaration file describes messages and enums directly, without a backing
// Go type:
//
//	package: demo
//	syntax: proto2
//	options:
//	  java_package: org.demo
//	types:
//	  - message: Outer
//	    doc: The outer message.
//	    fields:
//	      - {name: id, number: 1, type: int32, label: required}
//	      - {name: color, number: 2, type: enum, type_name: Outer.Color}
//	    nested:
//	      - enum: Color
//	        values:
//	          - {label: RED, number: 0}
package declfile

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/karesti/protostream/internal/schema"
)

// ErrInvalidDeclaration is returned for a structurally wrong type entry.
var ErrInvalidDeclaration = errors.New("invalid type declaration")

// File is a loaded declaration file.
type File struct {
	Package string
	// Syntax is empty when the file does not declare one.
	Syntax  schema.Syntax
	Imports []string
	Options map[string]string
	// Types are the top-level types, scanned and ready for emission.
	Types []schema.TypeMetadata
}

type fileDecl struct {
	Package string            `yaml:"package"`
	Syntax  string            `yaml:"syntax"`
	Imports []string          `yaml:"imports"`
	Options map[string]string `yaml:"options"`
	Types   []typeDecl        `yaml:"types"`
}

type typeDecl struct {
	Message       string      `yaml:"message"`
	Enum          string      `yaml:"enum"`
	Doc           string      `yaml:"doc"`
	Reserved      []int32     `yaml:"reserved"`
	ReservedNames []string    `yaml:"reserved_names"`
	Fields        []fieldDecl `yaml:"fields"`
	Values        []valueDecl `yaml:"values"`
	Nested        []typeDecl  `yaml:"nested"`
}

type fieldDecl struct {
	Name     string `yaml:"name"`
	Number   int32  `yaml:"number"`
	Type     string `yaml:"type"`
	TypeName string `yaml:"type_name"`
	Label    string `yaml:"label"`
	Default  string `yaml:"default"`
	Doc      string `yaml:"doc"`
}

type valueDecl struct {
	Label  string `yaml:"label"`
	Number int32  `yaml:"number"`
	Doc    string `yaml:"doc"`
}

// Load reads and parses a declaration file
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read declaration file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse builds metadata from declaration file contents. Nested types are
// built before the types enclosing them, and every type is scanned.
func Parse(data []byte) (*File, error) {
	var decl fileDecl
	if err := yaml.Unmarshal(data, &decl); err != nil {
		return nil, fmt.Errorf("failed to parse declarations: %w", err)
	}

	f := &File{
		Package: decl.Package,
		Imports: decl.Imports,
		Options: decl.Options,
	}
	if decl.Syntax != "" {
		syntax, err := schema.ParseSyntax(decl.Syntax)
		if err != nil {
			return nil, err
		}
		f.Syntax = syntax
	}
	for i := range decl.Types {
		md, err := build(&decl.Types[i], "")
		if err != nil {
			return nil, err
		}
		f.Types = append(f.Types, md)
	}
	return f, nil
}

func build(d *typeDecl, scope string) (schema.TypeMetadata, error) {
	switch {
	case d.Message != "" && d.Enum != "":
		return nil, fmt.Errorf("%w: entry declares both message %q and enum %q", ErrInvalidDeclaration, d.Message, d.Enum)
	case d.Message != "":
		return buildMessage(d, scope)
	case d.Enum != "":
		return buildEnum(d, scope)
	default:
		return nil, fmt.Errorf("%w: entry in %q declares neither message nor enum", ErrInvalidDeclaration, scopeName(scope))
	}
}

func buildMessage(d *typeDecl, scope string) (*schema.MessageType, error) {
	path := join(scope, d.Message)
	if len(d.Values) > 0 {
		return nil, fmt.Errorf("%w: message %s declares enum values", ErrInvalidDeclaration, path)
	}

	nested := make([]schema.TypeMetadata, 0, len(d.Nested))
	for i := range d.Nested {
		md, err := build(&d.Nested[i], path)
		if err != nil {
			return nil, err
		}
		nested = append(nested, md)
	}

	m := schema.NewMessageType(d.Message, nil)
	m.SetDocumentation(d.Doc)
	m.Reserve(d.Reserved...)
	m.ReserveNames(d.ReservedNames...)
	m.AddNested(nested...)

	for _, fd := range d.Fields {
		field, err := buildField(fd)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", path, fd.Name, err)
		}
		m.AddField(field)
	}

	if err := m.ScanMembers(nil); err != nil {
		return nil, err
	}
	return m, nil
}

func buildField(d fieldDecl) (*schema.Field, error) {
	ft, err := schema.ParseFieldType(d.Type)
	if err != nil {
		return nil, err
	}
	label, err := schema.ParseLabel(d.Label)
	if err != nil {
		return nil, err
	}
	if !ft.IsScalar() && d.TypeName == "" {
		return nil, fmt.Errorf("%w: %s field needs type_name", ErrInvalidDeclaration, ft)
	}
	return &schema.Field{
		Name:          d.Name,
		Number:        d.Number,
		Type:          ft,
		TypeName:      d.TypeName,
		Label:         label,
		DefaultValue:  d.Default,
		Documentation: d.Doc,
	}, nil
}

func buildEnum(d *typeDecl, scope string) (*schema.EnumType, error) {
	path := join(scope, d.Enum)
	if len(d.Fields) > 0 || len(d.Nested) > 0 {
		return nil, fmt.Errorf("%w: enum %s declares fields or nested types", ErrInvalidDeclaration, path)
	}

	e := schema.NewEnumType(d.Enum, nil)
	e.SetDocumentation(d.Doc)
	e.Reserve(d.Reserved...)
	e.ReserveNames(d.ReservedNames...)
	for _, v := range d.Values {
		e.AddValue(schema.EnumValue{Label: v.Label, Number: v.Number, Documentation: v.Doc})
	}

	if err := e.ScanMembers(nil); err != nil {
		return nil, err
	}
	return e, nil
}

func join(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

func scopeName(scope string) string {
	if scope == "" {
		return "<file>"
	}
	return scope
}
