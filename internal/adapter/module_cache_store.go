package adapter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
	m "luxcov.dev/pkg/luxcov/internal/model"
)

// ModuleCacheStore persists instrumented modules between runs, keyed by
// the content-hash-plus-config cache key. Corrupt or unreadable entries
// are treated as misses: the worst case is one extra instrumentation.
type ModuleCacheStore struct {
	dir string
}

// NewModuleCacheStore builds a store rooted at dir.
func NewModuleCacheStore(dir string) *ModuleCacheStore {
	return &ModuleCacheStore{dir: dir}
}

// Get returns the cached module for key, or false on any miss.
func (s *ModuleCacheStore) Get(key string) (*m.InstrumentedModule, bool) {
	data, err := os.ReadFile(s.entryPath(key))
	if err != nil {
		return nil, false
	}

	var mod m.InstrumentedModule
	if err := msgpack.Unmarshal(data, &mod); err != nil {
		slog.Debug("evicting corrupt cache entry", "key", key, "error", err)
		_ = os.Remove(s.entryPath(key))
		return nil, false
	}
	if mod.CacheKey != key {
		return nil, false
	}

	return &mod, true
}

// Put writes the module under its own cache key.
func (s *ModuleCacheStore) Put(mod *m.InstrumentedModule) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	data, err := msgpack.Marshal(mod)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	return os.WriteFile(s.entryPath(mod.CacheKey), data, 0o600)
}

// Clear removes every cached entry.
func (s *ModuleCacheStore) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".lxm" {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *ModuleCacheStore) entryPath(key string) string {
	return filepath.Join(s.dir, key+".lxm")
}
