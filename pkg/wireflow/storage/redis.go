package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps state in Redis under prefixed keys. Keys never expire.
type RedisStore struct {
	client redis.Cmdable
	prefix string

	// owned is closed with the store when the store created the client.
	owned  *redis.Client
	mu     sync.RWMutex
	closed bool
}

// NewRedisStore wraps an existing client. The caller keeps ownership of the
// client; Close does not close it.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// DialRedis connects a new client and returns a store that owns it.
func DialRedis(ctx context.Context, addr string, db int, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	s := NewRedisStore(client, prefix)
	s.owned = client
	return s, nil
}

// Key returns the Redis key used for a node label.
func (s *RedisStore) Key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *RedisStore) check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, key string, data []byte) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.Key(key), data, 0).Err(); err != nil {
		return fmt.Errorf("save %q: %w", key, err)
	}
	return nil
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", key, err)
	}
	return data, nil
}

// Has implements Store.
func (s *RedisStore) Has(ctx context.Context, key string) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	n, err := s.client.Exists(ctx, s.Key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("check %q: %w", key, err)
	}
	return n > 0, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.Key(key)).Err(); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.owned != nil {
		return s.owned.Close()
	}
	return nil
}
