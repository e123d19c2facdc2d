package kv

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// MemoryStore is an in-process Store used by tests and the single-binary
// dev mode. Expiry is evaluated lazily on access.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetTimeProvider overrides the clock, for tests.
func (store *MemoryStore) SetTimeProvider(now func() time.Time) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.now = now
}

func (store *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	store.mu.RLock()
	entry, ok := store.entries[key]
	now := store.now()
	store.mu.RUnlock()

	if !ok || store.expired(entry, now) {
		return nil, ErrNotFound
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

func (store *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = store.now().Add(ttl)
	}
	store.entries[key] = entry
	return nil
}

func (store *MemoryStore) Delete(_ context.Context, key string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.entries, key)
	return nil
}

func (store *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	now := store.now()
	var keys []string
	for key, entry := range store.entries {
		if strings.HasPrefix(key, prefix) && !store.expired(entry, now) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (store *MemoryStore) expired(entry memoryEntry, now time.Time) bool {
	return !entry.expiresAt.IsZero() && now.After(entry.expiresAt)
}
