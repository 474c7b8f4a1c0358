package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/karesti/protostream/internal/protogen"
	"github.com/karesti/protostream/internal/util/files"
)

func newValidateCommand(opts *globalOptions) *cobra.Command {
	var flags generatorFlags

	cmd := &cobra.Command{
		Use:   "validate <declarations>...",
		Short: "Check declaration files against the protobuf language rules",
		Long: `Check declaration files against the protobuf language rules.

Directories are searched recursively for .yaml, .yml and .json files.

Examples:
  protostream validate orders.yaml
  protostream validate schemas/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := files.ExpandPaths(args)
			if err != nil {
				return err
			}

			total, failed := 0, 0
			for _, path := range paths {
				n, err := validateFile(cmd.OutOrStdout(), opts, &flags, path)
				if err != nil {
					return err
				}
				if n > 0 {
					total += n
					failed++
				}
			}

			switch {
			case total == 0:
				return nil
			case len(paths) == 1:
				return fmt.Errorf("%d problem(s) found in %s", total, paths[0])
			default:
				return fmt.Errorf("%d problem(s) found in %d of %d files", total, failed, len(paths))
			}
		},
	}

	flags.register(cmd)
	return cmd
}

// validateFile reports the problems in one declaration file and returns how
// many there were. The error is only set when the file could not be checked.
func validateFile(out io.Writer, opts *globalOptions, flags *generatorFlags, path string) (int, error) {
	g, _, err := loadGenerator(opts, flags, path)
	if err != nil {
		return 0, err
	}

	err = g.Validate()
	if err == nil {
		color.New(color.FgGreen, color.Bold).Fprintf(out, "✓ %s is valid\n", path)
		return 0, nil
	}

	errorColor := color.New(color.FgRed)
	hintColor := color.New(color.FgYellow)

	problems := validationProblems(err)
	if len(problems) == 0 {
		errorColor.Fprintf(out, "✗ %s\n  %v\n", path, err)
		return 1, nil
	}
	for _, ve := range problems {
		errorColor.Fprintf(out, "✗ %s\n", location(ve))
		fmt.Fprintf(out, "  %s\n", ve.Message)
		if ve.Hint != "" {
			hintColor.Fprintf(out, "  hint: %s\n", ve.Hint)
		}
	}
	return len(problems), nil
}

// validationProblems unpacks the joined errors returned by Validate.
func validationProblems(err error) []*protogen.ValidationError {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return nil
	}
	var out []*protogen.ValidationError
	for _, e := range joined.Unwrap() {
		var ve *protogen.ValidationError
		if errors.As(e, &ve) {
			out = append(out, ve)
		}
	}
	return out
}

func location(ve *protogen.ValidationError) string {
	if ve.Member == "" {
		return ve.Type
	}
	return ve.Type + "." + ve.Member
}
