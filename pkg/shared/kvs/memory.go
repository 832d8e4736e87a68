package kvs

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time // zero means no expiration
}

func (i *memoryItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// MemoryStore keeps items in a map. Contents are lost on restart.
type MemoryStore struct {
	closeGuard
	namespace       string
	cleanupInterval time.Duration

	mu      sync.RWMutex
	items   map[string]*memoryItem
	sweeper *sweeper
}

// NewMemoryStore creates an in-memory store whose keys are prefixed by namespace.
func NewMemoryStore(namespace string, cfg MemoryConfig) (*MemoryStore, error) {
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = defaultCleanupInterval
	}

	m := &MemoryStore{
		namespace:       namespace,
		cleanupInterval: interval,
		items:           make(map[string]*memoryItem),
	}
	m.sweeper = startSweeper(interval, m.cleanup)
	return m, nil
}

func (m *MemoryStore) key(k string) string {
	return m.namespace + k
}

// Get retrieves a copy of the value stored under key.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := m.check(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	item, ok := m.items[m.key(key)]
	m.mu.RUnlock()
	if !ok || item.expired(time.Now()) {
		return nil, ErrNotFound
	}

	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, nil
}

// Set stores a copy of value under key.
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := m.check(); err != nil {
		return err
	}

	item := &memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.items[m.key(key)] = item
	m.mu.Unlock()
	return nil
}

// Delete removes key.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := m.check(); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.items, m.key(key))
	m.mu.Unlock()
	return nil
}

// Exists reports whether key is present and live.
func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := m.check(); err != nil {
		return false, err
	}

	m.mu.RLock()
	item, ok := m.items[m.key(key)]
	m.mu.RUnlock()
	return ok && !item.expired(time.Now()), nil
}

// List returns live keys under prefix, without the namespace.
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := m.check(); err != nil {
		return nil, err
	}

	full := m.key(prefix)
	now := time.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k, item := range m.items {
		if !strings.HasPrefix(k, full) || item.expired(now) {
			continue
		}
		keys = append(keys, strings.TrimPrefix(k, m.namespace))
	}
	return keys, nil
}

// Count returns the number of live keys under prefix.
func (m *MemoryStore) Count(ctx context.Context, prefix string) (int, error) {
	keys, err := m.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Close stops the sweeper and drops all items.
func (m *MemoryStore) Close() error {
	if err := m.markClosed(); err != nil {
		return err
	}
	m.sweeper.halt()

	m.mu.Lock()
	m.items = nil
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) cleanup() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, item := range m.items {
		if item.expired(now) {
			delete(m.items, k)
		}
	}
}
