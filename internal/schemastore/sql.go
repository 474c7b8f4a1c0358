package schemastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	utilstrings "github.com/karesti/protostream/internal/util/strings"
)

// DefaultTable is the table the SQL store keeps schemas in.
const DefaultTable = "protostream_schemas"

// SQLStore implements a schema registry on a SQL database. The queries run
// unchanged on PostgreSQL and SQLite.
type SQLStore struct {
	db    *sql.DB
	table string
	owned bool
}

// SQLConfig holds database store configuration
type SQLConfig struct {
	// Driver is a registered database/sql driver: sqlite3, postgres or pgx
	Driver string
	DSN    string
	// Table defaults to DefaultTable
	Table string
}

// OpenSQLStore opens a database with the configured driver. The store owns
// the connection and closes it on Close.
func OpenSQLStore(ctx context.Context, cfg SQLConfig) (*SQLStore, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Driver, err)
	}

	store, err := NewSQLStore(ctx, db, cfg.Table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store.owned = true
	return store, nil
}

// NewSQLStore creates the schema table if needed. The caller keeps ownership
// of db.
func NewSQLStore(ctx context.Context, db *sql.DB, table string) (*SQLStore, error) {
	if table == "" {
		table = DefaultTable
	}
	if !utilstrings.IsIdentifier(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	store := &SQLStore{db: db, table: table}
	if err := store.createTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create %s table: %w", table, err)
	}
	return store, nil
}

func (s *SQLStore) createTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			file_name VARCHAR(255) PRIMARY KEY,
			schema_text TEXT NOT NULL,
			descriptor BYTEA,
			validation_errors TEXT NOT NULL,
			revision VARCHAR(64) NOT NULL,
			published_at TIMESTAMP NOT NULL
		)
	`, s.table)

	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Put inserts or replaces an entry
func (s *SQLStore) Put(ctx context.Context, e *Entry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (file_name, schema_text, descriptor, validation_errors, revision, published_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (file_name) DO UPDATE SET
			schema_text = excluded.schema_text,
			descriptor = excluded.descriptor,
			validation_errors = excluded.validation_errors,
			revision = excluded.revision,
			published_at = excluded.published_at
	`, s.table)

	_, err := s.db.ExecContext(ctx, query,
		e.FileName, e.Schema, e.Descriptor, e.Errors, e.Revision, e.PublishedAt.UTC())
	if err != nil {
		return fmt.Errorf("database exec error: %w", err)
	}
	return nil
}

// Get retrieves an entry by file name
func (s *SQLStore) Get(ctx context.Context, fileName string) (*Entry, error) {
	query := fmt.Sprintf(`
		SELECT schema_text, descriptor, validation_errors, revision, published_at
		FROM %s
		WHERE file_name = $1
	`, s.table)

	e := &Entry{FileName: fileName}
	var publishedAt time.Time
	err := s.db.QueryRowContext(ctx, query, fileName).Scan(
		&e.Schema,
		&e.Descriptor,
		&e.Errors,
		&e.Revision,
		&publishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fileName)
	}
	if err != nil {
		return nil, fmt.Errorf("database query error: %w", err)
	}
	e.PublishedAt = publishedAt.UTC()
	if len(e.Descriptor) == 0 {
		e.Descriptor = nil
	}
	return e, nil
}

// List returns the stored file names, sorted
func (s *SQLStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT file_name FROM %s ORDER BY file_name`, s.table))
	if err != nil {
		return nil, fmt.Errorf("database query error: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Delete removes an entry. Deleting a missing file returns ErrNotFound.
func (s *SQLStore) Delete(ctx context.Context, fileName string) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE file_name = $1`, s.table), fileName)
	if err != nil {
		return fmt.Errorf("database exec error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, fileName)
	}
	return nil
}

// Close closes the database when the store opened it
func (s *SQLStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
