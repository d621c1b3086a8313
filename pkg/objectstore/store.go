// Package objectstore persists pipeline artifacts as JSON documents.
package objectstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when a requested document does not exist
	ErrNotFound = errors.New("object not found")
)

// Store is the object store boundary. Artifacts are written twice per run:
// once under a uniquely named timestamped key (retained) and once under an
// overwritten latest pointer key.
type Store interface {
	Put(ctx context.Context, key string, doc []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// RedisStore is a Redis-backed document store.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store. Keys are namespaced under
// {prefix}:store:.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

// Put stores a document, overwriting any existing one under the key.
func (s *RedisStore) Put(ctx context.Context, key string, doc []byte) error {
	if err := s.client.Set(ctx, s.storeKey(key), doc, 0).Err(); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	return nil
}

// Get retrieves a document. Missing keys return ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.storeKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	return data, nil
}

// Exists reports whether a document exists under the key.
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.storeKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", key, err)
	}

	return n > 0, nil
}

func (s *RedisStore) storeKey(key string) string {
	return fmt.Sprintf("%s:store:%s", s.prefix, key)
}

// Verify interface compliance at compile time
var _ Store = (*RedisStore)(nil)
