package schemastore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix is prepended to every key the Redis store writes.
const DefaultPrefix = "protostream:"

// Each file is a hash under <prefix>schema:<file>; the set <prefix>files
// indexes them.
const (
	fieldSchema      = "schema"
	fieldDescriptor  = "descriptor"
	fieldErrors      = "errors"
	fieldRevision    = "revision"
	fieldPublishedAt = "published_at"
)

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to all keys
	Prefix string
}

// DefaultRedisConfig returns a default Redis configuration
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:   "localhost:6379",
		Prefix: DefaultPrefix,
	}
}

// RedisStore implements a Redis-backed schema registry
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and checks the connection
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return NewRedisStoreWithClient(client, cfg.Prefix), nil
}

// NewRedisStoreWithClient creates a store on an existing client
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) entryKey(fileName string) string {
	return r.prefix + "schema:" + fileName
}

func (r *RedisStore) indexKey() string {
	return r.prefix + "files"
}

// Put stores an entry and adds it to the file index atomically
func (r *RedisStore) Put(ctx context.Context, e *Entry) error {
	key := r.entryKey(e.FileName)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldSchema, e.Schema,
			fieldDescriptor, e.Descriptor,
			fieldErrors, e.Errors,
			fieldRevision, e.Revision,
			fieldPublishedAt, e.PublishedAt.Format(time.RFC3339Nano),
		)
		pipe.SAdd(ctx, r.indexKey(), e.FileName)
		return nil
	})
	return err
}

// Get retrieves an entry by file name
func (r *RedisStore) Get(ctx context.Context, fileName string) (*Entry, error) {
	fields, err := r.client.HGetAll(ctx, r.entryKey(fileName)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fileName)
	}

	e := &Entry{
		FileName: fileName,
		Schema:   fields[fieldSchema],
		Errors:   fields[fieldErrors],
		Revision: fields[fieldRevision],
	}
	if d := fields[fieldDescriptor]; d != "" {
		e.Descriptor = []byte(d)
	}
	if ts := fields[fieldPublishedAt]; ts != "" {
		e.PublishedAt, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("corrupt entry %s: %w", fileName, err)
		}
	}
	return e, nil
}

// List returns the names of all stored files
func (r *RedisStore) List(ctx context.Context) ([]string, error) {
	names, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

// Delete removes an entry. Deleting a missing file returns ErrNotFound.
func (r *RedisStore) Delete(ctx context.Context, fileName string) error {
	var removed *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, r.entryKey(fileName))
		pipe.SRem(ctx, r.indexKey(), fileName)
		return nil
	})
	if err != nil {
		return err
	}
	if removed.Val() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, fileName)
	}
	return nil
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
