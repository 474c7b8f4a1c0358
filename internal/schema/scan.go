package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	utilstrings "github.com/karesti/protostream/internal/util/strings"
)

var (
	// ErrInvalidTag is returned for a malformed proto struct tag.
	ErrInvalidTag = errors.New("invalid proto tag")
	// ErrUnresolvedType is returned when a field refers to a Go type that has
	// no metadata and no scalar mapping.
	ErrUnresolvedType = errors.New("unresolved field type")
	// ErrNotStruct is returned when a message's native type is not a struct.
	ErrNotStruct = errors.New("native type is not a struct")
)

// TagName is the struct tag key read by the reflection scanner.
const TagName = "proto"

// TypeResolver finds the metadata describing a Go type.
type TypeResolver interface {
	Resolve(t reflect.Type) (TypeMetadata, bool)
}

// ResolverFunc adapts a function to TypeResolver.
type ResolverFunc func(reflect.Type) (TypeMetadata, bool)

// Resolve calls f.
func (f ResolverFunc) Resolve(t reflect.Type) (TypeMetadata, bool) { return f(t) }

// scanStructFields reads the tagged fields of a struct type.
//
// Tag grammar: proto:"<number>[,required|optional|repeated][,name=<n>][,type=<t>][,default=<v>]".
// Untagged fields, unexported fields and proto:"-" are skipped.
func scanStructFields(owner string, t reflect.Type, resolver TypeResolver) ([]*Field, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%s: %s: %w", owner, t, ErrNotStruct)
	}

	var fields []*Field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, ok := sf.Tag.Lookup(TagName)
		if !ok || tag == "-" {
			continue
		}

		f, explicit, err := parseTag(sf.Name, tag)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", owner, sf.Name, err)
		}
		if err := resolveFieldType(f, sf.Type, explicit, resolver); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", owner, sf.Name, err)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// tagLabel records which label, if any, the tag spelled out.
type tagLabel struct {
	set   bool
	label Label
}

type explicitParts struct {
	label    tagLabel
	typeName string
}

func parseTag(goName, tag string) (*Field, explicitParts, error) {
	var explicit explicitParts
	parts := strings.Split(tag, ",")

	number, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 32)
	if err != nil {
		return nil, explicit, fmt.Errorf("%w: field number %q", ErrInvalidTag, parts[0])
	}

	f := &Field{
		Name:   utilstrings.ToSnakeCase(goName),
		Number: int32(number),
		GoName: goName,
	}

	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		key, value, hasValue := strings.Cut(part, "=")
		switch {
		case !hasValue && (key == "required" || key == "optional" || key == "repeated"):
			label, _ := ParseLabel(key)
			explicit.label = tagLabel{set: true, label: label}
			f.Label = label
		case hasValue && key == "name":
			if !utilstrings.IsIdentifier(value) {
				return nil, explicit, fmt.Errorf("%w: field name %q", ErrInvalidTag, value)
			}
			f.Name = value
		case hasValue && key == "type":
			explicit.typeName = value
		case hasValue && key == "default":
			f.DefaultValue = value
		default:
			return nil, explicit, fmt.Errorf("%w: unknown option %q", ErrInvalidTag, part)
		}
	}
	return f, explicit, nil
}

func resolveFieldType(f *Field, goType reflect.Type, explicit explicitParts, resolver TypeResolver) error {
	if goType.Kind() == reflect.Slice && goType.Elem().Kind() != reflect.Uint8 {
		if explicit.label.set && explicit.label.label != LabelRepeated {
			return fmt.Errorf("%w: slice field must be repeated, got %s", ErrInvalidTag, explicit.label.label)
		}
		f.Label = LabelRepeated
		goType = goType.Elem()
	}
	refType := goType
	if goType.Kind() == reflect.Pointer {
		goType = goType.Elem()
	}

	if explicit.typeName != "" {
		ft, err := ParseFieldType(explicit.typeName)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTag, err)
		}
		if ft.IsScalar() {
			f.Type = ft
			return nil
		}
	}

	// Only defined types can carry their own metadata; builtin kinds map to scalars.
	if goType.PkgPath() != "" && resolver != nil {
		if md, ok := resolver.Resolve(refType); ok {
			f.TypeName = md.FullName()
			if md.Kind() == KindEnum || md.IsEnum() {
				f.Type = TypeEnum
			} else {
				f.Type = TypeMessage
			}
			return nil
		}
	}

	if explicit.typeName != "" {
		return fmt.Errorf("%s declared as %s: %w", goType, explicit.typeName, ErrUnresolvedType)
	}
	if ft, ok := scalarFor(goType); ok {
		f.Type = ft
		return nil
	}
	return fmt.Errorf("%s: %w", goType, ErrUnresolvedType)
}

func scalarFor(t reflect.Type) (FieldType, bool) {
	switch t.Kind() {
	case reflect.Bool:
		return TypeBool, true
	case reflect.Int32:
		return TypeInt32, true
	case reflect.Int64, reflect.Int:
		return TypeInt64, true
	case reflect.Uint32:
		return TypeUint32, true
	case reflect.Uint64, reflect.Uint:
		return TypeUint64, true
	case reflect.Float32:
		return TypeFloat, true
	case reflect.Float64:
		return TypeDouble, true
	case reflect.String:
		return TypeString, true
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return TypeBytes, true
		}
	}
	return 0, false
}
