package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	m "luxcov.dev/pkg/luxcov/internal/model"
)

// SnapshotFileName is the canonical name of a serialized snapshot.
const SnapshotFileName = "coverage.lxc"

// SnapshotStore persists frozen coverage snapshots. Parallel runs write
// one snapshot per shard_<n> subdirectory; merge reduces them into the
// parent directory.
type SnapshotStore interface {
	SaveSnapshot(dir m.Path, snap m.Snapshot) error
	LoadSnapshot(dir m.Path) (m.Snapshot, error)
	ListShardDirs(dir m.Path) ([]m.Path, error)
}

// LocalSnapshotStore is the msgpack-on-disk implementation.
type LocalSnapshotStore struct{}

// NewSnapshotStore constructs a LocalSnapshotStore.
func NewSnapshotStore() *LocalSnapshotStore {
	return &LocalSnapshotStore{}
}

// SaveSnapshot serializes the snapshot into dir/coverage.lxc.
func (s *LocalSnapshotStore) SaveSnapshot(dir m.Path, snap m.Snapshot) error {
	if err := os.MkdirAll(string(dir), 0o750); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	data, err := msgpack.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	target := filepath.Join(string(dir), SnapshotFileName)
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	return nil
}

// LoadSnapshot reads dir/coverage.lxc back into memory.
func (s *LocalSnapshotStore) LoadSnapshot(dir m.Path) (m.Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(string(dir), SnapshotFileName))
	if err != nil {
		return m.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	var snap m.Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return m.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Files == nil {
		snap.Files = make(map[m.Path]*m.FileCoverage)
	}

	return snap, nil
}

// ListShardDirs returns the shard_* subdirectories of dir in stable order.
func (s *LocalSnapshotStore) ListShardDirs(dir m.Path) ([]m.Path, error) {
	entries, err := os.ReadDir(string(dir))
	if err != nil {
		return nil, fmt.Errorf("list shards: %w", err)
	}

	var shards []m.Path
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), "shard_") {
			shards = append(shards, m.Path(filepath.Join(string(dir), entry.Name())))
		}
	}

	sort.Slice(shards, func(i, j int) bool { return shards[i] < shards[j] })
	return shards, nil
}
