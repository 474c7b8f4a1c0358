// Package schemastore keeps published schema files in a shared registry so
// that other processes can fetch the schema and descriptor by file name.
package schemastore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/karesti/protostream/internal/protogen"
)

// ErrNotFound is returned when no schema is stored under a file name.
var ErrNotFound = errors.New("schema not found")

// ErrInvalidSchema is returned by Publish when validation is required and fails.
var ErrInvalidSchema = errors.New("schema failed validation")

// Entry is one published schema file.
type Entry struct {
	FileName string
	// Schema is the generated .proto text.
	Schema string
	// Descriptor is an encoded FileDescriptorSet. It is empty when the
	// schema failed validation.
	Descriptor []byte
	// Errors holds the validation report of an invalid schema.
	Errors      string
	Revision    string
	PublishedAt time.Time
}

// Valid reports whether the schema passed validation when it was published.
func (e *Entry) Valid() bool {
	return e.Errors == ""
}

// Store defines the interface for schema registry backends
type Store interface {
	// Put stores e, replacing any entry with the same file name
	Put(ctx context.Context, e *Entry) error

	// Get returns the entry for fileName or ErrNotFound
	Get(ctx context.Context, fileName string) (*Entry, error)

	// List returns the stored file names, sorted
	List(ctx context.Context) ([]string, error)

	// Delete removes the entry for fileName
	Delete(ctx context.Context, fileName string) error
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*SQLStore)(nil)
)

// Publish generates the schema held by g and stores it under the generator's
// file name. An invalid schema is stored with its validation report unless
// requireValid is set, in which case nothing is stored and the validation
// error is returned.
func Publish(ctx context.Context, store Store, g *protogen.Generator, requireValid bool, logger *zap.Logger) (*Entry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	entry := &Entry{
		FileName:    g.Options().FileName,
		Revision:    uuid.NewString(),
		PublishedAt: time.Now().UTC(),
	}

	if err := g.Validate(); err != nil {
		if requireValid {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
		}
		entry.Errors = err.Error()
	} else {
		data, err := g.DescriptorSet()
		if err != nil {
			return nil, err
		}
		entry.Descriptor = data
	}
	entry.Schema = g.Generate()

	if err := store.Put(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to publish %s: %w", entry.FileName, err)
	}

	logger.Info("published schema",
		zap.String("file", entry.FileName),
		zap.String("revision", entry.Revision),
		zap.Bool("valid", entry.Valid()),
	)
	return entry, nil
}
