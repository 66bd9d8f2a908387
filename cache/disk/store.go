// Package disk provides a disk-backed cache.Store implementation.
//
// Each entry lives in its own file named by the sha256 of its key,
// sharded by hex prefix. Writes go through a temp file and rename, so
// a crashed or cancelled write never leaves a partial entry, and
// multiple processes can safely share one cache directory.
package disk

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/meigma/rex/cache"
	"github.com/meigma/rex/digest"
)

const (
	defaultShardPrefixLen = 2
	defaultDirPerm        = 0o700
)

// Store implements cache.Store on the local filesystem with an
// in-memory LRU front.
type Store struct {
	dir            string
	shardPrefixLen int
	dirPerm        os.FileMode
	ttl            cache.TTL
	memory         *cache.LRU // nil when disabled
	logger         *slog.Logger
	now            func() time.Time
}

// Option configures a disk store.
type Option func(*Store)

// WithTTL sets the freshness windows for listing entries.
func WithTTL(ttl cache.TTL) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithMemoryCapacity sets the size of the in-memory front.
// Use a negative value to disable it.
func WithMemoryCapacity(n int) Option {
	return func(s *Store) {
		if n < 0 {
			s.memory = nil
			return
		}
		s.memory = cache.NewLRU(n)
	}
}

// WithShardPrefixLen sets the number of hex characters used for
// sharding. Use 0 to disable sharding. Defaults to 2.
func WithShardPrefixLen(n int) Option {
	return func(s *Store) {
		s.shardPrefixLen = n
	}
}

// WithDirPerm sets the directory permissions used for cache directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(s *Store) {
		s.dirPerm = mode
	}
}

// WithLogger sets the logger for degraded-mode events.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a disk store rooted at dir.
func New(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("cache dir is empty")
	}
	s := &Store{
		dir:            dir,
		shardPrefixLen: defaultShardPrefixLen,
		dirPerm:        defaultDirPerm,
		ttl:            cache.DefaultTTL(),
		memory:         cache.NewLRU(0),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.shardPrefixLen < 0 {
		return nil, errors.New("shard prefix length must be >= 0")
	}
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return nil, fmt.Errorf("%w: %v", cache.ErrIO, err)
	}
	return s, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (s *Store) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Get returns the entry for key if present and fresh. Disk failures
// and corrupt entries degrade to misses; corrupt files are evicted.
func (s *Store) Get(key string, kind cache.Kind) (*cache.Entry, bool) {
	if s.memory != nil {
		if entry, ok := s.memory.Get(key); ok {
			if s.fresh(entry) {
				return entry, true
			}
			s.memory.Remove(key)
		}
	}

	path := s.path(key)
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from the key hash, not user input
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log().Warn("cache read failed", "key", key, "err", err)
		}
		return nil, false
	}

	var entry cache.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.log().Warn("evicting corrupt cache entry", "key", key, "err", err)
		_ = os.Remove(path)
		return nil, false
	}
	if entry.Kind != kind {
		return nil, false
	}
	if !s.fresh(&entry) {
		_ = os.Remove(path)
		return nil, false
	}

	if s.memory != nil {
		s.memory.Set(key, &entry)
	}
	return &entry, true
}

// Put stores an entry. Content-addressed entries are verified against
// their claimed digest before anything touches the disk, and a write
// for an already-present content key is a no-op success.
func (s *Store) Put(entry *cache.Entry) error {
	if entry == nil || entry.Key == "" {
		return errors.New("cache entry has no key")
	}
	if entry.FetchedAt.IsZero() {
		entry.FetchedAt = s.now()
	}

	path := s.path(entry.Key)

	if entry.Kind.ContentAddressed() {
		d, err := digest.Parse(entry.Digest)
		if err != nil {
			return fmt.Errorf("%w: claimed digest %q: %v", cache.ErrIntegrity, entry.Digest, err)
		}
		if !d.Verify(entry.Payload) {
			return fmt.Errorf("%w: %s", cache.ErrIntegrity, entry.Digest)
		}
		if _, err := os.Stat(path); err == nil {
			if s.memory != nil {
				s.memory.Set(entry.Key, entry)
			}
			return nil
		}
	}

	if err := s.write(path, entry); err != nil {
		return err
	}
	if s.memory != nil {
		s.memory.Set(entry.Key, entry)
	}
	return nil
}

// write persists the entry atomically via a temp file and rename.
func (s *Store) write(path string, entry *cache.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: encode entry: %v", cache.ErrCorrupt, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return fmt.Errorf("%w: %v", cache.ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, "entry-*")
	if err != nil {
		return fmt.Errorf("%w: %v", cache.ErrIO, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", cache.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", cache.ErrIO, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		// A concurrent writer winning the rename is fine for
		// content-addressed keys: the content is byte-identical. A
		// listing entry losing the rename keeps stale data, so the
		// failure must surface.
		if entry.Kind.ContentAddressed() {
			if _, statErr := os.Stat(path); statErr == nil {
				return nil
			}
		}
		return fmt.Errorf("%w: %v", cache.ErrIO, err)
	}
	return nil
}

// Invalidate drops the entry for key if present.
func (s *Store) Invalidate(key string) error {
	if s.memory != nil {
		s.memory.Remove(key)
	}
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", cache.ErrIO, err)
	}
	return nil
}

// Stats describes the state of the on-disk cache.
type Stats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// Stats walks the cache directory and reports entry count and size.
func (s *Store) Stats() (Stats, error) {
	var stats Stats
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		stats.Entries++
		stats.Bytes += info.Size()
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %v", cache.ErrIO, err)
	}
	return stats, nil
}

// Prune removes expired listing entries and corrupt files, returning
// the number of files removed and bytes reclaimed.
func (s *Store) Prune() (int, int64, error) {
	var removed int
	var reclaimed int64
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path) //nolint:gosec // walking our own cache dir
		if err != nil {
			return nil
		}
		var entry cache.Entry
		drop := false
		if err := json.Unmarshal(data, &entry); err != nil {
			drop = true
		} else if !s.fresh(&entry) {
			drop = true
		}
		if drop {
			if info, err := d.Info(); err == nil {
				reclaimed += info.Size()
			}
			if os.Remove(path) == nil {
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return removed, reclaimed, fmt.Errorf("%w: %v", cache.ErrIO, err)
	}
	if s.memory != nil {
		s.memory.Clear()
	}
	return removed, reclaimed, nil
}

// Clear removes all cache entries.
func (s *Store) Clear() (int, int64, error) {
	var removed int
	var reclaimed int64
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if info, err := d.Info(); err == nil {
			reclaimed += info.Size()
		}
		if os.Remove(path) == nil {
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, reclaimed, fmt.Errorf("%w: %v", cache.ErrIO, err)
	}
	if s.memory != nil {
		s.memory.Clear()
	}
	return removed, reclaimed, nil
}

// fresh reports whether entry is within its freshness window.
// Content-addressed entries are immutable and always fresh.
func (s *Store) fresh(entry *cache.Entry) bool {
	if entry.Kind.ContentAddressed() {
		return true
	}
	ttl := s.ttl.For(entry.Kind)
	if ttl <= 0 {
		return false
	}
	return s.now().Sub(entry.FetchedAt) <= ttl
}

func (s *Store) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	if s.shardPrefixLen <= 0 {
		return filepath.Join(s.dir, name)
	}
	prefixLen := s.shardPrefixLen
	if prefixLen > len(name) {
		prefixLen = len(name)
	}
	return filepath.Join(s.dir, name[:prefixLen], name)
}
