package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/karesti/protostream/internal/cli/config"
	"github.com/karesti/protostream/internal/cli/ui"
	"github.com/karesti/protostream/internal/schemastore"
)

// registryStore is a schema registry holding an open connection.
type registryStore interface {
	schemastore.Store
	Close() error
}

// openStore connects to the registry configured in cfg. A non-empty addr
// selects the Redis backend at that address.
func openStore(ctx context.Context, cfg *config.Config, addr string) (registryStore, error) {
	rc := cfg.Registry
	if addr != "" {
		rc.Backend = "redis"
		rc.Addr = addr
	}

	if rc.Backend == "sql" {
		if rc.DSN == "" {
			return nil, fmt.Errorf("registry.dsn is required for the sql backend")
		}
		store, err := schemastore.OpenSQLStore(ctx, schemastore.SQLConfig{
			Driver: rc.Driver,
			DSN:    rc.DSN,
			Table:  rc.Table,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	store, err := schemastore.NewRedisStore(ctx, schemastore.RedisConfig{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
		Prefix:   rc.Prefix,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func newPublishCommand(opts *globalOptions) *cobra.Command {
	var (
		flags        generatorFlags
		registryAddr string
		requireValid bool
	)

	cmd := &cobra.Command{
		Use:   "publish <declarations>",
		Short: "Publish a generated schema to the schema registry",
		Long: `Generate a schema and store it in the schema registry under
<declarations base name>.proto.

An invalid schema is stored together with its validation report so that
consumers can see why it cannot be used, unless --require-valid is given.

Examples:
  protostream publish orders.yaml
  protostream publish orders.yaml --registry redis:6379 --require-valid`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, cfg, err := loadGenerator(opts, &flags, args[0])
			if err != nil {
				return err
			}

			store, err := openStore(cmd.Context(), cfg, registryAddr)
			if err != nil {
				return err
			}
			defer store.Close()

			entry, err := schemastore.Publish(cmd.Context(), store, g, requireValid, opts.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if entry.Valid() {
				color.New(color.FgGreen, color.Bold).Fprintf(out, "✓ Published %s (revision %s)\n", entry.FileName, entry.Revision)
			} else {
				color.New(color.FgYellow, color.Bold).Fprintf(out, "! Published %s with errors (revision %s)\n", entry.FileName, entry.Revision)
				fmt.Fprintln(out, entry.Errors)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&registryAddr, "registry", "", "Redis address (overrides registry.addr)")
	cmd.Flags().BoolVar(&requireValid, "require-valid", false, "refuse to publish a schema that fails validation")
	return cmd
}

func newFetchCommand(opts *globalOptions) *cobra.Command {
	var (
		registryAddr  string
		list          bool
		descriptorOut string
	)

	cmd := &cobra.Command{
		Use:   "fetch [file]",
		Short: "Print a schema stored in the schema registry",
		Long: `Print a published schema, or list the published files with --list.

Examples:
  protostream fetch --list
  protostream fetch orders.proto --descriptor-out orders.pb`,
		Args: func(cmd *cobra.Command, args []string) error {
			if list {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg, registryAddr)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if list {
				names, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				table := ui.NewTable(out, opts.noColor, "File", "Revision", "Valid")
				for _, name := range names {
					entry, err := store.Get(cmd.Context(), name)
					if err != nil {
						return err
					}
					table.AddRow(name, entry.Revision, fmt.Sprint(entry.Valid()))
				}
				table.Render()
				return nil
			}

			entry, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(out, entry.Schema)
			if !entry.Valid() {
				color.New(color.FgYellow).Fprintf(cmd.ErrOrStderr(), "warning: %s was published with errors:\n%s\n", entry.FileName, entry.Errors)
			}

			if descriptorOut != "" {
				if len(entry.Descriptor) == 0 {
					return fmt.Errorf("%s has no descriptor", entry.FileName)
				}
				if err := os.WriteFile(descriptorOut, entry.Descriptor, 0644); err != nil {
					return fmt.Errorf("failed to write descriptor set: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&registryAddr, "registry", "", "Redis address (overrides registry.addr)")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list published files")
	cmd.Flags().StringVar(&descriptorOut, "descriptor-out", "", "write the stored FileDescriptorSet")
	return cmd
}
