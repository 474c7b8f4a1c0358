package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/karesti/protostream/internal/schema"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldWd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "proto2", cfg.Generator.Syntax)
	assert.Equal(t, schema.SyntaxProto2, cfg.Syntax())
	assert.Equal(t, schema.DefaultIndentSize, cfg.Generator.IndentSize)
	assert.Empty(t, cfg.Generator.Package)
	assert.Empty(t, cfg.Output)
	assert.True(t, cfg.Validate)
	assert.Equal(t, "localhost:6379", cfg.Registry.Addr)
	assert.Equal(t, "protostream:", cfg.Registry.Prefix)
	assert.Equal(t, "redis", cfg.Registry.Backend)
	assert.Equal(t, "sqlite3", cfg.Registry.Driver)
	assert.Equal(t, "protostream_schemas", cfg.Registry.Table)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Empty(t, cfg.Server.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.Server.TokenTTL)
	assert.Empty(t, cfg.Server.Users)
}

func TestLoadWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	content := `
generator:
  package: acme.orders
  syntax: proto3
  indent_size: 4
  imports:
    - google/protobuf/timestamp.proto
  options:
    java_package: com.acme.orders
output: gen/orders.proto
descriptor_out: gen/orders.pb
validate: false
registry:
  addr: redis:6380
  db: 2
  prefix: "team:"
server:
  addr: 127.0.0.1:9090
  jwt_secret: s3cret
  token_ttl: 30m
`
	require.NoError(t, os.WriteFile(FileName, []byte(content), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "acme.orders", cfg.Generator.Package)
	assert.Equal(t, schema.SyntaxProto3, cfg.Syntax())
	assert.Equal(t, 4, cfg.Generator.IndentSize)
	assert.Equal(t, []string{"google/protobuf/timestamp.proto"}, cfg.Generator.Imports)
	assert.Equal(t, map[string]string{"java_package": "com.acme.orders"}, cfg.Generator.Options)
	assert.Equal(t, "gen/orders.proto", cfg.Output)
	assert.Equal(t, "gen/orders.pb", cfg.DescriptorOut)
	assert.False(t, cfg.Validate)
	assert.Equal(t, "redis", cfg.Registry.Backend)
	assert.Equal(t, "redis:6380", cfg.Registry.Addr)
	assert.Equal(t, 2, cfg.Registry.DB)
	assert.Equal(t, "team:", cfg.Registry.Prefix)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	assert.Equal(t, "s3cret", cfg.Server.JWTSecret)
	assert.Equal(t, 30*time.Minute, cfg.Server.TokenTTL)
}

func TestLoadServerUsers(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), FileName)
	content := "server:\n  jwt_secret: s3cret\n  users:\n    alice: \"" + string(hash) + "\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Contains(t, cfg.Server.Users, "alice")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(cfg.Server.Users["alice"]), []byte("hunter2")))
}

func TestLoadExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generator:\n  package: custom\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.Generator.Package)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PROTOSTREAM_GENERATOR_PACKAGE", "from.env")
	t.Setenv("PROTOSTREAM_VALIDATE", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from.env", cfg.Generator.Package)
	assert.False(t, cfg.Validate)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown syntax",
			content: "generator:\n  syntax: proto4\n",
			wantErr: "generator.syntax",
		},
		{
			name:    "zero indent",
			content: "generator:\n  indent_size: 0\n",
			wantErr: "generator.indent_size must be between 1 and 8",
		},
		{
			name:    "empty package segment",
			content: "generator:\n  package: acme..orders\n",
			wantErr: "generator.package must not contain empty segments",
		},
		{
			name:    "unknown registry backend",
			content: "registry:\n  backend: etcd\n",
			wantErr: "registry.backend must be redis or sql",
		},
		{
			name:    "negative registry db",
			content: "registry:\n  db: -1\n",
			wantErr: "registry.db must not be negative",
		},
		{
			name:    "users without secret",
			content: "server:\n  users:\n    ci: $2a$10$abcdefghijklmnopqrstuuZ2S1L6LHzVwS2hNfmwpUYQGCDHiUzDi\n",
			wantErr: "server.users requires server.jwt_secret",
		},
		{
			name:    "malformed password hash",
			content: "server:\n  jwt_secret: s\n  users:\n    ci: plain-text\n",
			wantErr: "server.users.ci is not a bcrypt hash",
		},
		{
			name:    "zero token ttl",
			content: "server:\n  token_ttl: 0s\n",
			wantErr: "server.token_ttl must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cfg := &Config{
		Generator: GeneratorConfig{
			Package:    "acme",
			Syntax:     "proto3",
			IndentSize: 2,
			Options:    map[string]string{"go_package": "example.com/acme"},
		},
		Output:   "acme.proto",
		Validate: true,
	}
	require.NoError(t, Write(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Generator.Package, loaded.Generator.Package)
	assert.Equal(t, schema.SyntaxProto3, loaded.Syntax())
	assert.Equal(t, "example.com/acme", loaded.Generator.Options["go_package"])
	assert.Equal(t, "acme.proto", loaded.Output)

	err = Write(path, cfg)
	assert.ErrorContains(t, err, "already exists")
}
