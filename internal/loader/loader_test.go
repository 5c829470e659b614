package loader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"testing"

	"luxcov.dev/pkg/luxcov/internal/domain"
	m "luxcov.dev/pkg/luxcov/internal/model"
)

// memFS is an in-memory FS for loader tests. onHash, when set, runs
// inside HashFile so tests can exercise re-entrant loads.
type memFS struct {
	files  map[m.Path][]byte
	onHash func(path m.Path) error
}

func (f *memFS) ReadFile(path m.Path) ([]byte, error) {
	text, ok := f.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return append([]byte(nil), text...), nil
}

func (f *memFS) HashFile(path m.Path) (string, error) {
	if f.onHash != nil {
		if err := f.onHash(path); err != nil {
			return "", err
		}
	}
	text, ok := f.files[path]
	if !ok {
		return "", os.ErrNotExist
	}
	return fmt.Sprintf("%x", sha256.Sum256(text)), nil
}

func newTestHook(fs *memFS, store CacheStore) (*Hook, *domain.Session) {
	session := domain.NewSession(domain.SessionConfig{})
	session.Start()

	hook := NewHook(session, domain.NewInstrumenter(domain.InstrumentConfig{}), fs, store, Config{
		SearchPaths: []string{"?.lua", "?/init.lua"},
	})
	return hook, session
}

func TestResolve(t *testing.T) {
	fs := &memFS{files: map[m.Path][]byte{
		"calc.lua":      []byte("return 1"),
		"util/init.lua": []byte("return 2"),
	}}
	hook, _ := newTestHook(fs, nil)

	path, err := hook.Resolve("calc")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if path != "calc.lua" {
		t.Fatalf("resolved to %s", path)
	}

	path, err = hook.Resolve("util")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if path != "util/init.lua" {
		t.Fatalf("init template not tried: %s", path)
	}

	if _, err := hook.Resolve("missing"); !errors.Is(err, ErrModuleNotFound) {
		t.Fatalf("expected ErrModuleNotFound, got %v", err)
	}
}

func TestLoadUninstalledServesRawSource(t *testing.T) {
	src := []byte("local x = 1\nreturn x")
	fs := &memFS{files: map[m.Path][]byte{"mod.lua": src}}
	hook, _ := newTestHook(fs, nil)

	mod, err := hook.Load(context.Background(), "mod")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !bytes.Equal(mod.Generated, src) {
		t.Fatalf("uninstalled hook altered the source:\n%s", mod.Generated)
	}
	if domain.IsInstrumented(mod.Generated) {
		t.Fatal("uninstalled hook produced instrumented output")
	}
}

func TestLoadInstrumentsAndRegisters(t *testing.T) {
	fs := &memFS{files: map[m.Path][]byte{"mod.lua": []byte("local x = 1\nreturn x")}}
	hook, session := newTestHook(fs, nil)
	hook.Install()

	mod, err := hook.Load(context.Background(), "mod")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !domain.IsInstrumented(mod.Generated) {
		t.Fatalf("output not instrumented:\n%s", mod.Generated)
	}

	session.MarkExecuted(m.FileKey("mod.lua"), 1)
	snap := session.Stop()

	fc := snap.Files["mod.lua"]
	if fc == nil {
		t.Fatal("loaded module not registered with the session")
	}
	if fc.Lines[1].ExecutionCount != 1 {
		t.Fatalf("tracking call did not land: %+v", fc.Lines[1])
	}
}

func TestLoadMemoryCacheReturnsSameModule(t *testing.T) {
	fs := &memFS{files: map[m.Path][]byte{"mod.lua": []byte("local x = 1")}}
	hook, _ := newTestHook(fs, nil)
	hook.Install()

	first, err := hook.Load(context.Background(), "mod")
	if err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	second, err := hook.Load(context.Background(), "mod")
	if err != nil {
		t.Fatalf("second load failed: %v", err)
	}

	if first != second {
		t.Fatal("second load should come from the in-memory cache")
	}
	if !bytes.Equal(first.Generated, second.Generated) {
		t.Fatal("cached output differs")
	}
}

// countingStore wraps a CacheStore map and counts traffic.
type countingStore struct {
	entries map[string]*m.InstrumentedModule
	gets    int
	hits    int
	puts    int
}

func (s *countingStore) Get(key string) (*m.InstrumentedModule, bool) {
	s.gets++
	mod, ok := s.entries[key]
	if ok {
		s.hits++
	}
	return mod, ok
}

func (s *countingStore) Put(mod *m.InstrumentedModule) error {
	s.puts++
	s.entries[mod.CacheKey] = mod
	return nil
}

func TestLoadDiskCacheSurvivesSessions(t *testing.T) {
	fs := &memFS{files: map[m.Path][]byte{"mod.lua": []byte("local x = 1\nreturn x")}}
	store := &countingStore{entries: make(map[string]*m.InstrumentedModule)}

	hook, _ := newTestHook(fs, store)
	hook.Install()
	first, err := hook.Load(context.Background(), "mod")
	if err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	if store.puts != 1 {
		t.Fatalf("expected one store write, got %d", store.puts)
	}

	// fresh hook and session, same store: must serve the cached bytes
	hook2, _ := newTestHook(fs, store)
	hook2.Install()
	second, err := hook2.Load(context.Background(), "mod")
	if err != nil {
		t.Fatalf("second load failed: %v", err)
	}
	if store.hits != 1 {
		t.Fatalf("expected a store hit, got %d", store.hits)
	}
	if !bytes.Equal(first.Generated, second.Generated) {
		t.Fatal("cache served different bytes for identical input")
	}
}

func TestLoadFallbackOnSyntaxError(t *testing.T) {
	src := []byte("local = = =")
	fs := &memFS{files: map[m.Path][]byte{"broken.lua": src}}
	hook, session := newTestHook(fs, nil)
	hook.Install()

	mod, err := hook.Load(context.Background(), "broken")
	if err != nil {
		t.Fatalf("fallback should not fail the load: %v", err)
	}
	if !bytes.Equal(mod.Generated, src) {
		t.Fatal("fallback must serve the raw source")
	}
	if len(hook.Warnings()) != 1 {
		t.Fatalf("expected one warning, got %d", len(hook.Warnings()))
	}

	snap := session.Stop()
	fc := snap.Files["broken.lua"]
	if fc == nil || !fc.Untracked {
		t.Fatalf("fallback file should be untracked in the snapshot: %+v", fc)
	}
}

func TestLoadFallbackOnOversizedSource(t *testing.T) {
	src := []byte("local x = 1 -- padded beyond the ceiling")
	fs := &memFS{files: map[m.Path][]byte{"big.lua": src}}

	session := domain.NewSession(domain.SessionConfig{})
	session.Start()
	hook := NewHook(session, domain.NewInstrumenter(domain.InstrumentConfig{}), fs, nil, Config{
		SearchPaths:    []string{"?.lua"},
		MaxSourceBytes: 8,
	})
	hook.Install()

	mod, err := hook.Load(context.Background(), "big")
	if err != nil {
		t.Fatalf("oversized file should fall back, not fail: %v", err)
	}
	if domain.IsInstrumented(mod.Generated) {
		t.Fatal("oversized file must not be instrumented")
	}

	warnings := hook.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %d", len(warnings))
	}
	var limitErr *m.ResourceLimitError
	if !errors.As(warnings[0].Cause, &limitErr) {
		t.Fatalf("unexpected cause: %v", warnings[0].Cause)
	}
}

func TestLoadCircularRequire(t *testing.T) {
	fs := &memFS{files: map[m.Path][]byte{"a.lua": []byte("local x = 1")}}
	hook, _ := newTestHook(fs, nil)
	hook.Install()

	// drive a re-entrant load the way an executing module body would
	var reentrant error
	entered := false
	fs.onHash = func(path m.Path) error {
		if entered {
			return nil
		}
		entered = true
		_, reentrant = hook.LoadPath(context.Background(), path)
		return nil
	}

	if _, err := hook.LoadPath(context.Background(), "a.lua"); err != nil {
		t.Fatalf("outer load failed: %v", err)
	}
	if !errors.Is(reentrant, ErrLoadInProgress) {
		t.Fatalf("expected ErrLoadInProgress for the inner load, got %v", reentrant)
	}
}

func TestUninstallStopsInterception(t *testing.T) {
	src := []byte("local x = 1")
	fs := &memFS{files: map[m.Path][]byte{"mod.lua": src}}
	hook, _ := newTestHook(fs, nil)

	hook.Install()
	if !hook.Installed() {
		t.Fatal("hook should report installed")
	}

	hook.Uninstall()
	mod, err := hook.Load(context.Background(), "mod")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if domain.IsInstrumented(mod.Generated) {
		t.Fatal("uninstalled hook still instruments")
	}
}

func TestResetClearsCacheAndWarnings(t *testing.T) {
	fs := &memFS{files: map[m.Path][]byte{"broken.lua": []byte("local = =")}}
	hook, _ := newTestHook(fs, nil)
	hook.Install()

	if _, err := hook.Load(context.Background(), "broken"); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(hook.Warnings()) == 0 {
		t.Fatal("expected a warning before reset")
	}

	hook.Reset()
	if len(hook.Warnings()) != 0 {
		t.Fatal("reset did not clear warnings")
	}
}
