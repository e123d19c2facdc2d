package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const scanBatchSize = 256

// RedisStore implements Store on a single Redis instance. All keys are
// placed under a namespace prefix so several deployments can share one
// Redis without colliding.
type RedisStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisStore wraps an existing Redis client. The namespace may be empty.
func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	return &RedisStore{client: client, namespace: namespace}
}

// Ping verifies connectivity, used at startup.
func (store *RedisStore) Ping(ctx context.Context) error {
	return store.client.Ping(ctx).Err()
}

func (store *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := store.client.Get(ctx, store.namespacedKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return value, nil
}

func (store *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := store.client.Set(ctx, store.namespacedKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (store *RedisStore) Delete(ctx context.Context, key string) error {
	if err := store.client.Del(ctx, store.namespacedKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

// List scans for keys under prefix and returns them with the namespace
// stripped, so callers only ever see their own key space.
func (store *RedisStore) List(ctx context.Context, prefix string) ([]string, error) {
	pattern := store.namespacedKey(prefix) + "*"
	trim := store.namespacedKey("")

	var keys []string
	iter := store.client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), trim))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %q: %w", prefix, err)
	}
	return keys, nil
}

func (store *RedisStore) namespacedKey(key string) string {
	if store.namespace == "" {
		return key
	}
	return store.namespace + ":" + key
}
