// Package kvs provides the key-value store behind console sessions,
// with in-memory, LevelDB and Redis backends.
package kvs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Store is a key-value store interface that supports TTL and basic operations.
// All implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves a value by key.
	// Returns ErrNotFound if the key does not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value. A ttl of zero or less means the key never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists and has not expired.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns all live keys with the given prefix, in no particular order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Count returns the number of live keys with the given prefix.
	Count(ctx context.Context, prefix string) (int, error)

	// Close releases resources. Later calls return ErrClosed.
	Close() error
}

var (
	// ErrNotFound is returned when a key is not found or has expired.
	ErrNotFound = errors.New("kvs: key not found")

	// ErrClosed is returned when an operation is attempted on a closed store.
	ErrClosed = errors.New("kvs: store is closed")
)

// Backend types accepted in Config.Type.
const (
	TypeMemory  = "memory"
	TypeLevelDB = "leveldb"
	TypeRedis   = "redis"
)

// Config selects and configures a backend.
type Config struct {
	// Type is one of "memory" (default), "leveldb" or "redis".
	Type string `yaml:"type" json:"type"`

	// Namespace isolates keys: a key prefix for memory and redis,
	// a directory suffix for leveldb.
	Namespace string `yaml:"namespace" json:"namespace"`

	Memory  MemoryConfig  `yaml:"memory" json:"memory"`
	LevelDB LevelDBConfig `yaml:"leveldb" json:"leveldb"`
	Redis   RedisConfig   `yaml:"redis" json:"redis"`
}

// MemoryConfig configures the in-memory store.
type MemoryConfig struct {
	// CleanupInterval is how often expired keys are swept. Default: 5 minutes.
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

// LevelDBConfig configures the LevelDB store.
type LevelDBConfig struct {
	// Path is the database directory. Empty means the user cache directory.
	Path string `yaml:"path" json:"path"`

	// SyncWrites fsyncs every write.
	SyncWrites bool `yaml:"sync_writes" json:"sync_writes"`

	// CleanupInterval is how often expired keys are swept. Default: 5 minutes.
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`

	// PoolSize is the maximum number of connections (0 = go-redis default).
	PoolSize int `yaml:"pool_size" json:"pool_size"`
}

const defaultCleanupInterval = 5 * time.Minute

// New creates a store for cfg.
func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case TypeMemory, "":
		return NewMemoryStore(cfg.Namespace, cfg.Memory)
	case TypeLevelDB:
		return NewLevelDBStore(cfg.Namespace, cfg.LevelDB)
	case TypeRedis:
		return NewRedisStore(cfg.Namespace, cfg.Redis)
	default:
		return nil, fmt.Errorf("kvs: unsupported store type: %s", cfg.Type)
	}
}

// ValidType reports whether t names a known backend ("" counts as memory).
func ValidType(t string) bool {
	switch t {
	case "", TypeMemory, TypeLevelDB, TypeRedis:
		return true
	}
	return false
}

// closeGuard tracks the closed state shared by every backend.
type closeGuard struct {
	mu     sync.RWMutex
	closed bool
}

// check returns ErrClosed once markClosed has been called.
func (g *closeGuard) check() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return ErrClosed
	}
	return nil
}

// markClosed flips the guard; it returns ErrClosed if it was already closed.
func (g *closeGuard) markClosed() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	g.closed = true
	return nil
}

// sweeper runs fn on a ticker until stopped.
type sweeper struct {
	stop chan struct{}
	done chan struct{}
}

func startSweeper(interval time.Duration, fn func()) *sweeper {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	s := &sweeper{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-s.stop:
				return
			}
		}
	}()
	return s
}

// halt stops the loop and waits for it to exit.
func (s *sweeper) halt() {
	close(s.stop)
	<-s.done
}
