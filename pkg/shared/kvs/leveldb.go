package kvs

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	lderrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBStore persists items on disk. Each value carries an 8-byte
// big-endian expiry (unix nanoseconds, 0 = never) in front of the payload.
type LevelDBStore struct {
	closeGuard
	namespace string
	path      string
	db        *leveldb.DB
	sweeper   *sweeper
}

// NewLevelDBStore opens (or creates) the database for namespace.
func NewLevelDBStore(namespace string, cfg LevelDBConfig) (*LevelDBStore, error) {
	dbPath := cfg.Path
	if dbPath == "" {
		dbPath = defaultLevelDBPath(namespace)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kvs/leveldb: failed to create directory: %w", err)
	}

	opts := &opt.Options{
		Strict:      opt.DefaultStrict,
		Compression: opt.SnappyCompression,
		NoSync:      !cfg.SyncWrites,
	}

	db, err := leveldb.OpenFile(dbPath, opts)
	if err != nil {
		var corrupted *lderrors.ErrCorrupted
		if errors.As(err, &corrupted) {
			db, err = leveldb.RecoverFile(dbPath, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("kvs/leveldb: failed to open database at %s: %w", dbPath, err)
		}
	}

	l := &LevelDBStore{namespace: namespace, path: dbPath, db: db}
	l.sweeper = startSweeper(cfg.CleanupInterval, l.cleanup)
	return l, nil
}

// defaultLevelDBPath places the database under the user cache directory.
func defaultLevelDBPath(namespace string) string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	dir := "matrixhub-admin"
	if namespace != "" {
		dir += "-" + strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
				return r
			}
			return '-'
		}, namespace)
	}
	return filepath.Join(base, dir)
}

func (l *LevelDBStore) key(k string) []byte {
	return []byte(l.namespace + k)
}

func encodeValue(value []byte, ttl time.Duration) []byte {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).UnixNano()
	}
	encoded := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(encoded[:8], uint64(expiresAt))
	copy(encoded[8:], value)
	return encoded
}

// decodeValue splits an encoded record; expired reports a past deadline.
func decodeValue(encoded []byte) (value []byte, expired bool, err error) {
	if len(encoded) < 8 {
		return nil, false, errors.New("kvs/leveldb: invalid encoded value (too short)")
	}
	expiresAt := int64(binary.BigEndian.Uint64(encoded[:8]))
	if expiresAt > 0 && time.Now().UnixNano() > expiresAt {
		return nil, true, nil
	}
	return encoded[8:], false, nil
}

// Get retrieves the value stored under key.
func (l *LevelDBStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := l.check(); err != nil {
		return nil, err
	}

	encoded, err := l.db.Get(l.key(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("kvs/leveldb: get failed: %w", err)
	}

	value, expired, err := decodeValue(encoded)
	if err != nil {
		return nil, err
	}
	if expired {
		_ = l.db.Delete(l.key(key), nil)
		return nil, ErrNotFound
	}
	return value, nil
}

// Set stores value under key.
func (l *LevelDBStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := l.check(); err != nil {
		return err
	}
	if err := l.db.Put(l.key(key), encodeValue(value, ttl), nil); err != nil {
		return fmt.Errorf("kvs/leveldb: set failed: %w", err)
	}
	return nil
}

// Delete removes key.
func (l *LevelDBStore) Delete(ctx context.Context, key string) error {
	if err := l.check(); err != nil {
		return err
	}
	if err := l.db.Delete(l.key(key), nil); err != nil && !errors.Is(err, leveldb.ErrNotFound) {
		return fmt.Errorf("kvs/leveldb: delete failed: %w", err)
	}
	return nil
}

// Exists reports whether key is present and live.
func (l *LevelDBStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := l.Get(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// List returns live keys under prefix, without the namespace.
func (l *LevelDBStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := l.check(); err != nil {
		return nil, err
	}

	iter := l.db.NewIterator(util.BytesPrefix(l.key(prefix)), nil)
	defer iter.Release()

	var keys []string
	for iter.Next() {
		if _, expired, err := decodeValue(iter.Value()); err != nil || expired {
			continue
		}
		keys = append(keys, strings.TrimPrefix(string(iter.Key()), l.namespace))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("kvs/leveldb: iteration failed: %w", err)
	}
	return keys, nil
}

// Count returns the number of live keys under prefix.
func (l *LevelDBStore) Count(ctx context.Context, prefix string) (int, error) {
	keys, err := l.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Close stops the sweeper and closes the database.
func (l *LevelDBStore) Close() error {
	if err := l.markClosed(); err != nil {
		return err
	}
	l.sweeper.halt()
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("kvs/leveldb: close failed: %w", err)
	}
	return nil
}

// cleanup deletes expired records in one batch.
func (l *LevelDBStore) cleanup() {
	if l.check() != nil {
		return
	}

	iter := l.db.NewIterator(util.BytesPrefix([]byte(l.namespace)), nil)
	batch := new(leveldb.Batch)
	for iter.Next() {
		if _, expired, err := decodeValue(iter.Value()); err == nil && expired {
			batch.Delete(append([]byte(nil), iter.Key()...))
		}
	}
	iter.Release()

	if batch.Len() > 0 {
		_ = l.db.Write(batch, nil)
	}
}
