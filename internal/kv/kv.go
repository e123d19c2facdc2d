package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("kv: key not found")

// Store is the injected key-value persistence capability. Every durable
// piece of state in this service (accounts, channel configurations, push
// history, cached provider tokens) goes through this contract, so state
// lifetime is tied to the backing store rather than the process.
//
// Implementations must support concurrent reads/writes to distinct keys.
// No multi-key transactions are offered.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key. A ttl <= 0 means the value never expires.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns all keys starting with prefix, in no particular order.
	List(ctx context.Context, prefix string) ([]string, error)
}
