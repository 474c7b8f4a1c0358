// Package protogen generates .proto schema files from schema type metadata.
// It owns the file-level concerns (syntax, package, imports, options), drives
// the member scan of every registered type, binds marshallers from a registry,
// validates the result and exports it as a protobuf FileDescriptorProto.
package protogen

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/karesti/protostream/internal/marshal"
	"github.com/karesti/protostream/internal/schema"
)

var (
	// ErrNotTopLevel is returned when a nested type is added to a generator.
	ErrNotTopLevel = errors.New("type is not top level")
	// ErrDuplicateType is returned when two added types share a full name.
	ErrDuplicateType = errors.New("duplicate type")
)

// DefaultFileName is used when Options.FileName is empty.
const DefaultFileName = "schema.proto"

// Options holds the file-level settings of a generated schema.
type Options struct {
	FileName string
	Package  string
	Syntax   schema.Syntax
	Imports  []string
	// Options are file options such as java_package. Values that are not
	// booleans or numbers are written as quoted strings.
	Options    map[string]string
	IndentSize int
}

// Generator collects top-level types and renders them into one schema file.
type Generator struct {
	opts   Options
	logger *zap.Logger
	types  []schema.TypeMetadata
	names  map[string]struct{}
}

// New creates a generator. A nil logger disables logging.
func New(opts Options, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.FileName == "" {
		opts.FileName = DefaultFileName
	}
	if opts.Syntax == "" {
		opts.Syntax = schema.SyntaxProto2
	}
	if opts.IndentSize <= 0 {
		opts.IndentSize = schema.DefaultIndentSize
	}
	return &Generator{
		opts:   opts,
		logger: logger,
		names:  make(map[string]struct{}),
	}
}

// Options returns the generator's effective options.
func (g *Generator) Options() Options {
	return g.opts
}

// Add registers top-level types in emission order.
func (g *Generator) Add(types ...schema.TypeMetadata) error {
	for _, t := range types {
		if !t.IsTopLevel() {
			return fmt.Errorf("%s (enclosed by %s): %w", t.FullName(), t.EnclosingType().FullName(), ErrNotTopLevel)
		}
		if _, exists := g.names[t.FullName()]; exists {
			return fmt.Errorf("%s: %w", t.FullName(), ErrDuplicateType)
		}
		g.names[t.FullName()] = struct{}{}
		g.types = append(g.types, t)
	}
	return nil
}

// Types returns the top-level types in emission order.
func (g *Generator) Types() []schema.TypeMetadata {
	out := make([]schema.TypeMetadata, len(g.types))
	copy(out, g.types)
	return out
}

// Index indexes every registered type, nested ones included.
func (g *Generator) Index() *schema.Index {
	return schema.NewIndex(g.types...)
}

// Scan calls ScanMembers on every type that has not been scanned yet,
// nested types before the types enclosing them. Field types resolve against
// all registered types.
func (g *Generator) Scan() error {
	idx := g.Index()
	all := idx.All()

	for i := len(all) - 1; i >= 0; i-- {
		md := all[i]
		if md.State() != schema.StateConstructed {
			continue
		}
		if err := md.ScanMembers(idx); err != nil {
			return fmt.Errorf("scan %s: %w", md.FullName(), err)
		}
		g.logger.Debug("scanned type",
			zap.String("type", md.FullName()),
			zap.Stringer("kind", md.Kind()),
		)
	}
	return nil
}

// BindMarshallers binds the registry's marshaller to every type whose native
// type has one registered, replacing any marshaller bound before. It returns
// the number of types bound.
func (g *Generator) BindMarshallers(reg *marshal.Registry) int {
	bound := 0
	for _, root := range g.types {
		schema.Walk(root, func(md schema.TypeMetadata) {
			if md.NativeType() == nil {
				return
			}
			m, ok := reg.Lookup(md.NativeType())
			if !ok {
				return
			}
			md.BindMarshaller(m)
			bound++
			g.logger.Debug("bound marshaller",
				zap.String("type", md.FullName()),
				zap.String("marshaller", m.TypeName()),
				zap.Bool("enum", md.IsEnum()),
			)
		})
	}
	return bound
}

// Generate renders the schema file.
func (g *Generator) Generate() string {
	w := schema.NewSchemaWriter(
		schema.WithIndentSize(g.opts.IndentSize),
		schema.WithSyntax(g.opts.Syntax),
	)

	w.Line("// Generated by protostream. DO NOT EDIT.")
	w.Blank()
	w.Linef("syntax = %q;", string(g.opts.Syntax))

	if g.opts.Package != "" {
		w.Blank()
		w.Linef("package %s;", g.opts.Package)
	}

	if len(g.opts.Imports) > 0 {
		w.Blank()
		for _, imp := range sortedCopy(g.opts.Imports) {
			w.Linef("import %q;", imp)
		}
	}

	if len(g.opts.Options) > 0 {
		w.Blank()
		keys := make([]string, 0, len(g.opts.Options))
		for k := range g.opts.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			w.Linef("option %s = %s;", k, optionLiteral(g.opts.Options[k]))
		}
	}

	for _, t := range g.types {
		if t.Kind() == schema.KindProxy {
			continue
		}
		w.Blank()
		t.EmitSchema(w)
		g.logger.Debug("emitted type",
			zap.String("type", t.FullName()),
			zap.Stringer("kind", t.Kind()),
		)
	}

	return w.String()
}

// WriteTo writes the generated schema to out.
func (g *Generator) WriteTo(out io.Writer) (int64, error) {
	n, err := io.WriteString(out, g.Generate())
	return int64(n), err
}

// WriteFile writes the generated schema to path, creating parent directories.
func (g *Generator) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(g.Generate()), 0644); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}
	g.logger.Info("wrote schema", zap.String("path", path), zap.Int("types", len(g.types)))
	return nil
}

func optionLiteral(v string) string {
	if v == "true" || v == "false" {
		return v
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v
	}
	if isEnumConstant(v) {
		return v
	}
	return strconv.Quote(v)
}

// isEnumConstant matches option values like SPEED or LITE_RUNTIME.
func isEnumConstant(v string) bool {
	if v == "" {
		return false
	}
	for _, r := range v {
		if !(r >= 'A' && r <= 'Z' || r == '_' || r >= '0' && r <= '9') {
			return false
		}
	}
	return v[0] >= 'A' && v[0] <= 'Z'
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

func qualify(pkg, name string) string {
	if pkg == "" {
		return "." + name
	}
	return "." + pkg + "." + name
}

func parentScope(scope string) string {
	if i := strings.LastIndexByte(scope, '.'); i >= 0 {
		return scope[:i]
	}
	return ""
}
