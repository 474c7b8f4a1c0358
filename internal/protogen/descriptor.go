package protogen

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"

	// Well-known types, so schemas may import them.
	_ "google.golang.org/protobuf/types/known/anypb"
	_ "google.golang.org/protobuf/types/known/durationpb"
	_ "google.golang.org/protobuf/types/known/emptypb"
	_ "google.golang.org/protobuf/types/known/structpb"
	_ "google.golang.org/protobuf/types/known/timestamppb"
	_ "google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/karesti/protostream/internal/schema"
)

var fieldTypes = map[schema.FieldType]descriptorpb.FieldDescriptorProto_Type{
	schema.TypeDouble:   descriptorpb.FieldDescriptorProto_TYPE_DOUBLE,
	schema.TypeFloat:    descriptorpb.FieldDescriptorProto_TYPE_FLOAT,
	schema.TypeInt32:    descriptorpb.FieldDescriptorProto_TYPE_INT32,
	schema.TypeInt64:    descriptorpb.FieldDescriptorProto_TYPE_INT64,
	schema.TypeUint32:   descriptorpb.FieldDescriptorProto_TYPE_UINT32,
	schema.TypeUint64:   descriptorpb.FieldDescriptorProto_TYPE_UINT64,
	schema.TypeSint32:   descriptorpb.FieldDescriptorProto_TYPE_SINT32,
	schema.TypeSint64:   descriptorpb.FieldDescriptorProto_TYPE_SINT64,
	schema.TypeFixed32:  descriptorpb.FieldDescriptorProto_TYPE_FIXED32,
	schema.TypeFixed64:  descriptorpb.FieldDescriptorProto_TYPE_FIXED64,
	schema.TypeSfixed32: descriptorpb.FieldDescriptorProto_TYPE_SFIXED32,
	schema.TypeSfixed64: descriptorpb.FieldDescriptorProto_TYPE_SFIXED64,
	schema.TypeBool:     descriptorpb.FieldDescriptorProto_TYPE_BOOL,
	schema.TypeString:   descriptorpb.FieldDescriptorProto_TYPE_STRING,
	schema.TypeBytes:    descriptorpb.FieldDescriptorProto_TYPE_BYTES,
	schema.TypeMessage:  descriptorpb.FieldDescriptorProto_TYPE_MESSAGE,
	schema.TypeEnum:     descriptorpb.FieldDescriptorProto_TYPE_ENUM,
}

var labels = map[schema.Label]descriptorpb.FieldDescriptorProto_Label{
	schema.LabelOptional: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL,
	schema.LabelRequired: descriptorpb.FieldDescriptorProto_LABEL_REQUIRED,
	schema.LabelRepeated: descriptorpb.FieldDescriptorProto_LABEL_REPEATED,
}

// Descriptor converts the registered types into a FileDescriptorProto.
// Proxies are left out. Field type names are resolved the way protoc
// resolves them: innermost enclosing scope first, then outwards; names that
// match no registered type are taken as fully qualified.
func (g *Generator) Descriptor() (*descriptorpb.FileDescriptorProto, error) {
	b := &descriptorBuilder{pkg: g.opts.Package, index: g.Index()}

	fd := &descriptorpb.FileDescriptorProto{
		Name:       proto.String(g.opts.FileName),
		Syntax:     proto.String(string(g.opts.Syntax)),
		Dependency: sortedCopy(g.opts.Imports),
		Options:    g.fileOptions(),
	}
	if g.opts.Package != "" {
		fd.Package = proto.String(g.opts.Package)
	}

	for _, t := range g.types {
		switch t := t.(type) {
		case *schema.MessageType:
			dp, err := b.message(t)
			if err != nil {
				return nil, err
			}
			fd.MessageType = append(fd.MessageType, dp)
		case *schema.EnumType:
			fd.EnumType = append(fd.EnumType, b.enum(t))
		}
	}
	return fd, nil
}

// FileDescriptor builds and links the descriptor against the global registry,
// which holds the well-known types.
func (g *Generator) FileDescriptor() (protoreflect.FileDescriptor, error) {
	fdp, err := g.Descriptor()
	if err != nil {
		return nil, err
	}
	fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
	if err != nil {
		return nil, fmt.Errorf("invalid descriptor: %w", err)
	}
	return fd, nil
}

// DescriptorSet encodes a FileDescriptorSet holding the schema.
func (g *Generator) DescriptorSet() ([]byte, error) {
	fdp, err := g.Descriptor()
	if err != nil {
		return nil, err
	}
	data, err := proto.Marshal(&descriptorpb.FileDescriptorSet{File: []*descriptorpb.FileDescriptorProto{fdp}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode descriptor set: %w", err)
	}
	return data, nil
}

// WriteDescriptorSet writes the encoded FileDescriptorSet to path.
func (g *Generator) WriteDescriptorSet(path string) error {
	data, err := g.DescriptorSet()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write descriptor set: %w", err)
	}
	return nil
}

func (g *Generator) fileOptions() *descriptorpb.FileOptions {
	if len(g.opts.Options) == 0 {
		return nil
	}
	opts := &descriptorpb.FileOptions{}
	for k, v := range g.opts.Options {
		switch k {
		case "java_package":
			opts.JavaPackage = proto.String(v)
		case "java_outer_classname":
			opts.JavaOuterClassname = proto.String(v)
		case "java_multiple_files":
			opts.JavaMultipleFiles = proto.Bool(v == "true")
		case "go_package":
			opts.GoPackage = proto.String(v)
		case "csharp_namespace":
			opts.CsharpNamespace = proto.String(v)
		case "objc_class_prefix":
			opts.ObjcClassPrefix = proto.String(v)
		default:
			g.logger.Sugar().Debugf("file option %s has no descriptor field, left out", k)
		}
	}
	return opts
}

type descriptorBuilder struct {
	pkg   string
	index *schema.Index
}

func (b *descriptorBuilder) message(m *schema.MessageType) (*descriptorpb.DescriptorProto, error) {
	dp := &descriptorpb.DescriptorProto{
		Name:         proto.String(m.Name()),
		ReservedName: m.ReservedNames(),
	}
	for _, r := range numberRanges(m.ReservedNumbers()) {
		// Message reserved ranges are end-exclusive.
		dp.ReservedRange = append(dp.ReservedRange, &descriptorpb.DescriptorProto_ReservedRange{
			Start: proto.Int32(r[0]),
			End:   proto.Int32(r[1] + 1),
		})
	}

	for _, n := range m.Nested() {
		switch n := n.(type) {
		case *schema.MessageType:
			nested, err := b.message(n)
			if err != nil {
				return nil, err
			}
			dp.NestedType = append(dp.NestedType, nested)
		case *schema.EnumType:
			dp.EnumType = append(dp.EnumType, b.enum(n))
		}
	}

	for _, f := range m.Fields() {
		fp, err := b.field(m.FullName(), f)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", m.FullName(), f.Name, err)
		}
		dp.Field = append(dp.Field, fp)
	}
	return dp, nil
}

func (b *descriptorBuilder) field(scope string, f *schema.Field) (*descriptorpb.FieldDescriptorProto, error) {
	typ, ok := fieldTypes[f.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported field type %d", f.Type)
	}
	fp := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(f.Name),
		Number: proto.Int32(f.Number),
		Label:  labels[f.Label].Enum(),
		Type:   typ.Enum(),
	}
	if f.Type == schema.TypeMessage || f.Type == schema.TypeEnum {
		if f.TypeName == "" {
			return nil, fmt.Errorf("%s field without a type name", f.Type)
		}
		fp.TypeName = proto.String(b.resolve(scope, f.TypeName))
	}
	if f.DefaultValue != "" {
		fp.DefaultValue = proto.String(f.DefaultValue)
	}
	return fp, nil
}

func (b *descriptorBuilder) enum(e *schema.EnumType) *descriptorpb.EnumDescriptorProto {
	ep := &descriptorpb.EnumDescriptorProto{
		Name:         proto.String(e.Name()),
		ReservedName: e.ReservedNames(),
	}
	for _, v := range e.Values() {
		ep.Value = append(ep.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v.Label),
			Number: proto.Int32(v.Number),
		})
	}
	for _, r := range numberRanges(e.ReservedNumbers()) {
		// Enum reserved ranges are end-inclusive.
		ep.ReservedRange = append(ep.ReservedRange, &descriptorpb.EnumDescriptorProto_EnumReservedRange{
			Start: proto.Int32(r[0]),
			End:   proto.Int32(r[1]),
		})
	}
	if e.HasAliases() {
		ep.Options = &descriptorpb.EnumOptions{AllowAlias: proto.Bool(true)}
	}
	return ep
}

// resolve turns a type reference written inside scope into a fully
// qualified descriptor name.
func (b *descriptorBuilder) resolve(scope, name string) string {
	if name[0] == '.' {
		return name
	}
	for s := scope; ; s = parentScope(s) {
		candidate := name
		if s != "" {
			candidate = s + "." + name
		}
		if md, ok := b.index.Lookup(candidate); ok {
			// Proxies are declared in other files under their own full names.
			if _, isProxy := md.(*schema.Proxy); isProxy {
				return "." + candidate
			}
			return qualify(b.pkg, candidate)
		}
		if s == "" {
			break
		}
	}
	return "." + name
}

// numberRanges sorts numbers and groups consecutive runs as inclusive ranges.
func numberRanges(numbers []int32) [][2]int32 {
	sorted := slices.Clone(numbers)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	var out [][2]int32
	for i := 0; i < len(sorted); {
		j := i
		for j+1 < len(sorted) && sorted[j+1] == sorted[j]+1 {
			j++
		}
		out = append(out, [2]int32{sorted[i], sorted[j]})
		i = j + 1
	}
	return out
}
