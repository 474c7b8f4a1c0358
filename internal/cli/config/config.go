package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/karesti/protostream/internal/schema"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "protostream.yaml"

// Config represents the protostream configuration
type Config struct {
	Generator     GeneratorConfig `mapstructure:"generator"`
	Output        string          `mapstructure:"output"`
	DescriptorOut string          `mapstructure:"descriptor_out"`
	Validate      bool            `mapstructure:"validate"`
	Registry      RegistryConfig  `mapstructure:"registry"`
	Server        ServerConfig    `mapstructure:"server"`
}

// GeneratorConfig holds the defaults applied to every generated file
type GeneratorConfig struct {
	Package    string            `mapstructure:"package"`
	Syntax     string            `mapstructure:"syntax"`
	IndentSize int               `mapstructure:"indent_size"`
	Imports    []string          `mapstructure:"imports"`
	Options    map[string]string `mapstructure:"options"`
}

// RegistryConfig points at the schema registry used by publish and fetch.
// Backend "redis" uses Addr, Password, DB and Prefix; backend "sql" uses
// Driver, DSN and Table.
type RegistryConfig struct {
	Backend  string `mapstructure:"backend"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
}

// ServerConfig configures the registry HTTP API started by serve. An empty
// JWTSecret leaves the API unauthenticated. Users maps lower-case user names
// to bcrypt password hashes accepted by POST /token.
type ServerConfig struct {
	Addr      string            `mapstructure:"addr"`
	JWTSecret string            `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration     `mapstructure:"token_ttl"`
	Users     map[string]string `mapstructure:"users"`
}

// Load loads the configuration. An empty path searches the working directory
// for protostream.yaml; a missing file there is not an error. An explicit path
// must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("generator.package", "")
	v.SetDefault("generator.syntax", string(schema.SyntaxProto2))
	v.SetDefault("generator.indent_size", schema.DefaultIndentSize)
	v.SetDefault("output", "")
	v.SetDefault("descriptor_out", "")
	v.SetDefault("validate", true)
	v.SetDefault("registry.backend", "redis")
	v.SetDefault("registry.addr", "localhost:6379")
	v.SetDefault("registry.password", "")
	v.SetDefault("registry.db", 0)
	v.SetDefault("registry.prefix", "protostream:")
	v.SetDefault("registry.driver", "sqlite3")
	v.SetDefault("registry.dsn", "")
	v.SetDefault("registry.table", "protostream_schemas")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.token_ttl", "24h")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// PROTOSTREAM_GENERATOR_PACKAGE overrides generator.package
	v.SetEnvPrefix("protostream")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Syntax returns the configured syntax. Load has already validated it.
func (c *Config) Syntax() schema.Syntax {
	s, err := schema.ParseSyntax(c.Generator.Syntax)
	if err != nil {
		return schema.SyntaxProto2
	}
	return s
}

// Write saves cfg as YAML at path, refusing to replace an existing file.
func Write(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("generator.package", cfg.Generator.Package)
	v.Set("generator.syntax", cfg.Generator.Syntax)
	v.Set("generator.indent_size", cfg.Generator.IndentSize)
	if len(cfg.Generator.Imports) > 0 {
		v.Set("generator.imports", cfg.Generator.Imports)
	}
	if len(cfg.Generator.Options) > 0 {
		v.Set("generator.options", cfg.Generator.Options)
	}
	if cfg.Output != "" {
		v.Set("output", cfg.Output)
	}
	if cfg.DescriptorOut != "" {
		v.Set("descriptor_out", cfg.DescriptorOut)
	}
	v.Set("validate", cfg.Validate)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if _, err := schema.ParseSyntax(cfg.Generator.Syntax); err != nil {
		return fmt.Errorf("generator.syntax: %w", err)
	}
	if cfg.Generator.IndentSize < 1 || cfg.Generator.IndentSize > 8 {
		return fmt.Errorf("generator.indent_size must be between 1 and 8, got: %d", cfg.Generator.IndentSize)
	}
	switch cfg.Registry.Backend {
	case "redis", "sql":
	default:
		return fmt.Errorf("registry.backend must be redis or sql, got: %s", cfg.Registry.Backend)
	}
	if cfg.Server.TokenTTL <= 0 {
		return fmt.Errorf("server.token_ttl must be positive, got: %s", cfg.Server.TokenTTL)
	}
	if len(cfg.Server.Users) > 0 && cfg.Server.JWTSecret == "" {
		return fmt.Errorf("server.users requires server.jwt_secret")
	}
	for user, hash := range cfg.Server.Users {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return fmt.Errorf("server.users.%s is not a bcrypt hash: %w", user, err)
		}
	}
	if cfg.Registry.DB < 0 {
		return fmt.Errorf("registry.db must not be negative, got: %d", cfg.Registry.DB)
	}
	if pkg := cfg.Generator.Package; pkg != "" {
		for _, part := range strings.Split(pkg, ".") {
			if part == "" {
				return fmt.Errorf("generator.package must not contain empty segments, got: %s", pkg)
			}
		}
	}
	return nil
}
