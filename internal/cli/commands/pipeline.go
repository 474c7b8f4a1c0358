package commands

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/karesti/protostream/internal/cli/config"
	"github.com/karesti/protostream/internal/declfile"
	"github.com/karesti/protostream/internal/protogen"
	"github.com/karesti/protostream/internal/schema"
)

// generatorFlags are the per-invocation overrides of the config file.
type generatorFlags struct {
	pkg    string
	syntax string
}

func (f *generatorFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.pkg, "package", "", "protobuf package (overrides config and declaration file)")
	cmd.Flags().StringVar(&f.syntax, "syntax", "", "proto2 or proto3 (overrides config and declaration file)")
}

// loadGenerator reads the config and the declaration file and returns a
// generator holding the declared types. Values from flags win over the
// declaration file, which wins over the config file.
func loadGenerator(opts *globalOptions, flags *generatorFlags, declPath string) (*protogen.Generator, *config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}

	decl, err := declfile.Load(declPath)
	if err != nil {
		return nil, nil, err
	}

	genOpts := protogen.Options{
		FileName:   protoFileName(declPath),
		Package:    cfg.Generator.Package,
		Syntax:     cfg.Syntax(),
		Imports:    cfg.Generator.Imports,
		Options:    cfg.Generator.Options,
		IndentSize: cfg.Generator.IndentSize,
	}
	if decl.Package != "" {
		genOpts.Package = decl.Package
	}
	if decl.Syntax != "" {
		genOpts.Syntax = decl.Syntax
	}
	genOpts.Imports = mergeImports(genOpts.Imports, decl.Imports)
	genOpts.Options = mergeOptions(genOpts.Options, decl.Options)

	if flags != nil {
		if flags.pkg != "" {
			genOpts.Package = flags.pkg
		}
		if flags.syntax != "" {
			syntax, err := schema.ParseSyntax(flags.syntax)
			if err != nil {
				return nil, nil, err
			}
			genOpts.Syntax = syntax
		}
	}

	g := protogen.New(genOpts, opts.logger)
	if err := g.Add(decl.Types...); err != nil {
		return nil, nil, err
	}
	return g, cfg, nil
}

// protoFileName names the schema after its declaration file.
func protoFileName(declPath string) string {
	base := filepath.Base(declPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".proto"
}

func mergeImports(base, extra []string) []string {
	var out []string
	for _, imp := range append(append([]string(nil), base...), extra...) {
		if !slices.Contains(out, imp) {
			out = append(out, imp)
		}
	}
	return out
}

func mergeOptions(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
