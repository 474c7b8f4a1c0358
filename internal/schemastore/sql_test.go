package schemastore

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewSQLStore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	store, err := NewSQLStore(ctx, db, "")
	require.NoError(t, err)
	assert.NoError(t, store.Close())

	var name string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=$1", DefaultTable).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, DefaultTable, name)

	// The caller still owns db after Close.
	assert.NoError(t, db.Ping())

	_, err = NewSQLStore(ctx, db, "bad name; DROP")
	assert.ErrorContains(t, err, "invalid table name")
}

func TestSQLStore_PutAndGet(t *testing.T) {
	store, err := NewSQLStore(context.Background(), setupTestDB(t), "")
	require.NoError(t, err)
	ctx := context.Background()

	published := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	entry := &Entry{
		FileName:    "orders.proto",
		Schema:      "message Order {\n}\n",
		Descriptor:  []byte{0x0a, 0x02, 0x08, 0x01},
		Revision:    "rev-1",
		PublishedAt: published,
	}
	require.NoError(t, store.Put(ctx, entry))

	got, err := store.Get(ctx, "orders.proto")
	require.NoError(t, err)
	assert.Equal(t, entry.Schema, got.Schema)
	assert.Equal(t, entry.Descriptor, got.Descriptor)
	assert.Equal(t, "rev-1", got.Revision)
	assert.True(t, published.Equal(got.PublishedAt), got.PublishedAt)

	// Upsert
	require.NoError(t, store.Put(ctx, &Entry{FileName: "orders.proto", Schema: "v2", Errors: "broken", Revision: "rev-2", PublishedAt: published}))
	got, err = store.Get(ctx, "orders.proto")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Schema)
	assert.Nil(t, got.Descriptor)
	assert.False(t, got.Valid())

	_, err = store.Get(ctx, "missing.proto")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLStore_ListAndDelete(t *testing.T) {
	store, err := NewSQLStore(context.Background(), setupTestDB(t), "schemas")
	require.NoError(t, err)
	ctx := context.Background()

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	for _, name := range []string{"c.proto", "a.proto", "b.proto"} {
		require.NoError(t, store.Put(ctx, &Entry{FileName: name, Schema: name, PublishedAt: time.Now()}))
	}

	names, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.proto", "b.proto", "c.proto"}, names)

	require.NoError(t, store.Delete(ctx, "b.proto"))
	assert.ErrorIs(t, store.Delete(ctx, "b.proto"), ErrNotFound)

	names, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.proto", "c.proto"}, names)
}

func TestOpenSQLStore(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "registry.db")

	store, err := OpenSQLStore(ctx, SQLConfig{Driver: "sqlite3", DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, &Entry{FileName: "a.proto", Schema: "x", PublishedAt: time.Now()}))
	require.NoError(t, store.Close())

	// Reopening sees the same data.
	store, err = OpenSQLStore(ctx, SQLConfig{Driver: "sqlite3", DSN: dsn})
	require.NoError(t, err)
	defer store.Close()
	got, err := store.Get(ctx, "a.proto")
	require.NoError(t, err)
	assert.Equal(t, "x", got.Schema)

	_, err = OpenSQLStore(ctx, SQLConfig{Driver: "nosuchdriver"})
	assert.ErrorContains(t, err, "failed to open nosuchdriver database")
}

func TestPublishToSQLStore(t *testing.T) {
	store, err := NewSQLStore(context.Background(), setupTestDB(t), "")
	require.NoError(t, err)

	entry, err := Publish(context.Background(), store, newGenerator(t, true), true, nil)
	require.NoError(t, err)

	got, err := store.Get(context.Background(), "orders.proto")
	require.NoError(t, err)
	assert.Equal(t, entry.Revision, got.Revision)
	assert.NotEmpty(t, got.Descriptor)
}

func TestSQLStore_DatabaseErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS protostream_schemas")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := NewSQLStore(ctx, db, "")
	require.NoError(t, err)

	boom := errors.New("connection reset")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO protostream_schemas")).
		WithArgs("a.proto", "s", sqlmock.AnyArg(), "", "r", sqlmock.AnyArg()).
		WillReturnError(boom)
	err = store.Put(ctx, &Entry{FileName: "a.proto", Schema: "s", Revision: "r"})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "database exec error")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT schema_text, descriptor")).
		WithArgs("a.proto").
		WillReturnError(boom)
	_, err = store.Get(ctx, "a.proto")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT file_name FROM protostream_schemas ORDER BY file_name")).
		WillReturnRows(sqlmock.NewRows([]string{"file_name"}).AddRow("a.proto").AddRow("b.proto"))
	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.proto", "b.proto"}, names)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM protostream_schemas WHERE file_name = $1")).
		WithArgs("a.proto").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, store.Delete(ctx, "a.proto"), ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSQLStore_CreateTableError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	_, err = NewSQLStore(context.Background(), db, "")
	assert.ErrorContains(t, err, "failed to create protostream_schemas table: permission denied")
}
