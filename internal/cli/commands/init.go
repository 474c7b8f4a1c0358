package commands

import (
	"fmt"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/karesti/protostream/internal/cli/config"
	"github.com/karesti/protostream/internal/schema"
)

func newInitCommand(opts *globalOptions) *cobra.Command {
	var (
		interactive bool
		dir         string
		cfg         = config.Config{
			Generator: config.GeneratorConfig{IndentSize: schema.DefaultIndentSize},
			Validate:  true,
		}
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a protostream.yaml config file",
		Long: `Create a protostream.yaml config file in the target directory.

Examples:
  protostream init --package acme.orders --syntax proto3
  protostream init --interactive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interactive {
				if err := askConfig(&cfg); err != nil {
					return err
				}
			}
			if cfg.Generator.Syntax == "" {
				cfg.Generator.Syntax = string(schema.SyntaxProto2)
			}
			if _, err := schema.ParseSyntax(cfg.Generator.Syntax); err != nil {
				return err
			}

			path := filepath.Join(dir, config.FileName)
			if err := config.Write(path, &cfg); err != nil {
				return err
			}
			opts.logger.Sugar().Debugf("config written to %s", path)

			color.New(color.FgGreen, color.Bold).Fprintf(cmd.OutOrStdout(), "✓ Created %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "prompt for each setting")
	cmd.Flags().StringVar(&dir, "dir", ".", "directory to create the config in")
	cmd.Flags().StringVar(&cfg.Generator.Package, "package", "", "default protobuf package")
	cmd.Flags().StringVar(&cfg.Generator.Syntax, "syntax", "", "default syntax, proto2 or proto3")
	cmd.Flags().StringVarP(&cfg.Output, "output", "o", "", "default output .proto file")

	return cmd
}

// askConfig prompts for the settings, using the flag values as defaults.
func askConfig(cfg *config.Config) error {
	questions := []*survey.Question{
		{
			Name:   "package",
			Prompt: &survey.Input{Message: "Protobuf package:", Default: cfg.Generator.Package},
		},
		{
			Name: "syntax",
			Prompt: &survey.Select{
				Message: "Syntax:",
				Options: []string{string(schema.SyntaxProto2), string(schema.SyntaxProto3)},
				Default: defaultSyntax(cfg.Generator.Syntax),
			},
		},
		{
			Name:   "output",
			Prompt: &survey.Input{Message: "Output file (empty for stdout):", Default: cfg.Output},
		},
		{
			Name:   "validate",
			Prompt: &survey.Confirm{Message: "Validate before generating?", Default: cfg.Validate},
		},
	}

	answers := struct {
		Package  string
		Syntax   string
		Output   string
		Validate bool
	}{}
	if err := survey.Ask(questions, &answers); err != nil {
		return fmt.Errorf("prompt cancelled: %w", err)
	}

	cfg.Generator.Package = answers.Package
	cfg.Generator.Syntax = answers.Syntax
	cfg.Output = answers.Output
	cfg.Validate = answers.Validate
	return nil
}

func defaultSyntax(s string) string {
	if s == "" {
		return string(schema.SyntaxProto2)
	}
	return s
}
