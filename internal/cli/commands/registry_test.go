package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/karesti/protostream/internal/registryapi"
	"github.com/karesti/protostream/internal/schemastore"
)

func TestPublishAndFetch(t *testing.T) {
	mr := miniredis.RunT(t)

	out, err := run(t, "publish", ordersDecl, "--registry", mr.Addr(), "--package", "shop")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Published orders.proto (revision ")
	assert.True(t, mr.Exists(schemastore.DefaultPrefix+"schema:orders.proto"))

	out, err = run(t, "fetch", "orders.proto", "--registry", mr.Addr())
	require.NoError(t, err)
	assert.Contains(t, out, "package shop;")
	assert.Contains(t, out, "message Order {")

	descPath := filepath.Join(t.TempDir(), "orders.pb")
	_, err = run(t, "fetch", "orders.proto", "--registry", mr.Addr(), "--descriptor-out", descPath)
	require.NoError(t, err)
	data, err := os.ReadFile(descPath)
	require.NoError(t, err)
	var set descriptorpb.FileDescriptorSet
	require.NoError(t, proto.Unmarshal(data, &set))
	assert.Equal(t, "orders.proto", set.GetFile()[0].GetName())

	out, err = run(t, "fetch", "--list", "--registry", mr.Addr())
	require.NoError(t, err)
	assert.Contains(t, out, "File")
	assert.Contains(t, out, "orders.proto")
	assert.Contains(t, out, "true")
}

func TestPublishInvalidSchema(t *testing.T) {
	mr := miniredis.RunT(t)

	t.Run("stored with errors", func(t *testing.T) {
		out, err := run(t, "publish", invalidDecl, "--registry", mr.Addr())
		require.NoError(t, err)
		assert.Contains(t, out, "! Published invalid.proto with errors")
		assert.Contains(t, out, "Broken.b: field number 1 already used by a")

		_, err = run(t, "fetch", "invalid.proto", "--registry", mr.Addr(), "--descriptor-out", filepath.Join(t.TempDir(), "x.pb"))
		assert.ErrorContains(t, err, "invalid.proto has no descriptor")
	})

	t.Run("require valid", func(t *testing.T) {
		_, err := run(t, "publish", invalidDecl, "--registry", mr.Addr(), "--require-valid", "--package", "other")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already used by a")
	})
}

func TestFetchErrors(t *testing.T) {
	mr := miniredis.RunT(t)

	_, err := run(t, "fetch", "missing.proto", "--registry", mr.Addr())
	assert.ErrorIs(t, err, schemastore.ErrNotFound)

	_, err = run(t, "fetch", "--registry", mr.Addr())
	assert.Error(t, err)

	_, err = run(t, "fetch", "--list", "extra", "--registry", mr.Addr())
	assert.Error(t, err)

	addr := mr.Addr()
	mr.Close()
	_, err = run(t, "fetch", "--list", "--registry", addr)
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestPublishToSQLRegistry(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "protostream.yaml")
	content := "registry:\n" +
		"  backend: sql\n" +
		"  driver: sqlite3\n" +
		"  dsn: " + filepath.Join(dir, "registry.db") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	out, err := run(t, "--config", cfgPath, "publish", ordersDecl)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Published orders.proto")

	out, err = run(t, "--config", cfgPath, "fetch", "orders.proto")
	require.NoError(t, err)
	assert.Contains(t, out, "enum Status {")

	t.Run("dsn required", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("registry:\n  backend: sql\n"), 0o644))
		_, err := run(t, "--config", bad, "fetch", "--list")
		assert.ErrorContains(t, err, "registry.dsn is required")
	})
}

func TestServeStopsWithContext(t *testing.T) {
	mr := miniredis.RunT(t)

	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"--no-color", "serve", "--addr", "127.0.0.1:0", "--registry", mr.Addr()})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Contains(t, buf.String(), "Serving schema registry on 127.0.0.1:0")
	assert.Contains(t, buf.String(), "publishing is unauthenticated")
}

func TestTokenCommand(t *testing.T) {
	out, err := run(t, "token", "--subject", "ci", "--jwt-secret", "s3cret", "--ttl", "1h")
	require.NoError(t, err)

	subject, err := registryapi.NewAuthenticator("s3cret").Validate(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ci", subject)

	t.Run("secret from config", func(t *testing.T) {
		cfgPath := filepath.Join(t.TempDir(), "protostream.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("server:\n  jwt_secret: from-config\n"), 0o644))

		out, err := run(t, "--config", cfgPath, "token", "--subject", "ci")
		require.NoError(t, err)
		_, err = registryapi.NewAuthenticator("from-config").Validate(strings.TrimSpace(out))
		assert.NoError(t, err)
	})

	t.Run("no secret", func(t *testing.T) {
		_, err := run(t, "token", "--subject", "ci")
		assert.ErrorContains(t, err, "no jwt secret")
	})

	t.Run("subject required", func(t *testing.T) {
		_, err := run(t, "token", "--jwt-secret", "s3cret")
		assert.Error(t, err)
	})
}

func TestHashPasswordCommand(t *testing.T) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader("hunter2\n"))
	cmd.SetArgs([]string{"--no-color", "hash-password", "--stdin"})
	require.NoError(t, cmd.Execute())

	hash := strings.TrimSpace(out.String())
	assert.True(t, registryapi.CheckPassword("hunter2", hash))

	cmd = NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs([]string{"--no-color", "hash-password", "--stdin"})
	assert.Error(t, cmd.Execute())
}
