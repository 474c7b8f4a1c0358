package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newGenerateCommand(opts *globalOptions) *cobra.Command {
	var (
		flags         generatorFlags
		output        string
		descriptorOut string
		noValidate    bool
	)

	cmd := &cobra.Command{
		Use:     "generate <declarations>",
		Aliases: []string{"g"},
		Short:   "Generate a .proto schema from a declaration file",
		Long: `Generate a .proto schema from a YAML or JSON declaration file.

The schema is validated first unless --no-validate is given or the config
sets validate: false. Without --output the schema is written to stdout.

Examples:
  protostream generate types.yaml
  protostream generate types.yaml -o gen/types.proto --package acme
  protostream generate types.yaml --descriptor-out gen/types.pb`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, cfg, err := loadGenerator(opts, &flags, args[0])
			if err != nil {
				return err
			}

			if output == "" {
				output = cfg.Output
			}
			if descriptorOut == "" {
				descriptorOut = cfg.DescriptorOut
			}

			if cfg.Validate && !noValidate {
				if err := g.Validate(); err != nil {
					return fmt.Errorf("schema is invalid:\n%w", err)
				}
			}

			if descriptorOut != "" {
				if err := g.WriteDescriptorSet(descriptorOut); err != nil {
					return err
				}
			}

			if output == "" {
				_, err := g.WriteTo(cmd.OutOrStdout())
				return err
			}
			if err := g.WriteFile(output); err != nil {
				return err
			}

			successColor := color.New(color.FgGreen, color.Bold)
			successColor.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s (%d types)\n", output, len(g.Types()))
			if descriptorOut != "" {
				successColor.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", descriptorOut)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output .proto file (default stdout)")
	cmd.Flags().StringVar(&descriptorOut, "descriptor-out", "", "also write a binary FileDescriptorSet")
	cmd.Flags().BoolVar(&noValidate, "no-validate", false, "skip schema validation")

	return cmd
}
