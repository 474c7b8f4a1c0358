package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"os/signal"
	"syscall"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/karesti/protostream/internal/cli/config"
	"github.com/karesti/protostream/internal/protogen"
	"github.com/karesti/protostream/internal/registryapi"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	var (
		addr         string
		registryAddr string
		jwtSecret    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the schema registry over HTTP",
		Long: `Serve the configured schema registry over HTTP.

Reads are open. Publishing and deleting require a bearer token signed with
server.jwt_secret when one is set. Create tokens with "protostream token", or
let the users listed under server.users log in at POST /token.

Examples:
  protostream serve
  protostream serve --addr :9090 --registry redis:6379`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if jwtSecret == "" {
				jwtSecret = cfg.Server.JWTSecret
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := openStore(ctx, cfg, registryAddr)
			if err != nil {
				return err
			}
			defer store.Close()

			serverOpts := []registryapi.Option{
				registryapi.WithLogger(opts.logger),
				registryapi.WithDefaults(protogen.Options{
					Package:    cfg.Generator.Package,
					Syntax:     cfg.Syntax(),
					Imports:    cfg.Generator.Imports,
					Options:    cfg.Generator.Options,
					IndentSize: cfg.Generator.IndentSize,
				}),
			}
			if jwtSecret != "" {
				auth := registryapi.NewAuthenticator(jwtSecret)
				auth.SetUsers(cfg.Server.Users)
				auth.SetTokenTTL(cfg.Server.TokenTTL)
				serverOpts = append(serverOpts, registryapi.WithAuthenticator(auth))
			} else {
				color.New(color.FgYellow).Fprintln(cmd.ErrOrStderr(), "! No jwt secret configured; publishing is unauthenticated")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Serving schema registry on %s\n", addr)
			return registryapi.New(store, serverOpts...).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&registryAddr, "registry", "", "Redis address (overrides registry.addr)")
	cmd.Flags().StringVar(&jwtSecret, "jwt-secret", "", "token signing secret (overrides server.jwt_secret)")
	return cmd
}

func newTokenCommand(opts *globalOptions) *cobra.Command {
	var (
		subject   string
		ttl       time.Duration
		jwtSecret string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the registry HTTP API",
		Example: `  protostream token --subject ci
  protostream token --subject alice --ttl 1h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if jwtSecret == "" {
				jwtSecret = cfg.Server.JWTSecret
			}
			if jwtSecret == "" {
				return fmt.Errorf("no jwt secret: set server.jwt_secret or pass --jwt-secret")
			}
			if ttl == 0 {
				ttl = cfg.Server.TokenTTL
			}
			if ttl < 0 {
				return fmt.Errorf("--ttl must be positive, got: %s", ttl)
			}

			token, err := registryapi.NewAuthenticator(jwtSecret).IssueToken(subject, ttl)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "token subject, recorded with each publish")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (overrides server.token_ttl)")
	cmd.Flags().StringVar(&jwtSecret, "jwt-secret", "", "token signing secret (overrides server.jwt_secret)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newHashPasswordCommand() *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password for server.users",
		Long: `Print the bcrypt hash of a password, for use as a server.users entry.

The password is prompted for, or read from the first line of standard input
with --stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if fromStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			} else {
				prompt := &survey.Password{Message: "Password:"}
				if err := survey.AskOne(prompt, &password, survey.WithValidator(survey.Required)); err != nil {
					return err
				}
			}

			hash, err := registryapi.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the password from standard input")
	return cmd
}
