package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/karesti/protostream/internal/cli/ui"
	"github.com/karesti/protostream/internal/schema"
)

func newDescribeCommand(opts *globalOptions) *cobra.Command {
	var typeName string

	cmd := &cobra.Command{
		Use:   "describe <declarations>",
		Short: "List the types of a declaration file",
		Long: `List every declared type with its full name, kind and member count.

With --type only the named type and the types nested in it are listed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, _, err := loadGenerator(opts, nil, args[0])
			if err != nil {
				return err
			}

			idx := g.Index()
			types := idx.All()
			if typeName != "" {
				root, ok := idx.Lookup(typeName)
				if !ok {
					return unknownTypeError(typeName, types)
				}
				types = types[:0:0]
				schema.Walk(root, func(t schema.TypeMetadata) {
					types = append(types, t)
				})
			}

			out := cmd.OutOrStdout()
			ui.Header(out, fmt.Sprintf("%s (%d types)", args[0], len(types)), opts.noColor)
			table := ui.NewTable(out, opts.noColor, "Full name", "Kind", "Members")
			for _, t := range types {
				table.AddRow(t.FullName(), t.Kind().String(), strconv.Itoa(memberCount(t)))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeName, "type", "t", "", "full name of the type to describe")
	return cmd
}

func memberCount(t schema.TypeMetadata) int {
	switch v := t.(type) {
	case *schema.MessageType:
		return len(v.Fields())
	case *schema.EnumType:
		return len(v.Values())
	default:
		return 0
	}
}

func unknownTypeError(name string, types []schema.TypeMetadata) error {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.FullName()
	}
	msg := fmt.Sprintf("unknown type %q", name)
	if suggestions := ui.Suggest(name, names, 3); len(suggestions) > 0 {
		msg += "; did you mean " + strings.Join(suggestions, ", ") + "?"
	}
	return fmt.Errorf("%s", msg)
}
