// Package loader intercepts Lua module resolution so `require` serves
// instrumented code while coverage is active. It owns the
// instrumented-module cache and the circular-require guard; per-file
// failures downgrade to an uninstrumented fallback instead of aborting
// the run.
package loader

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"luxcov.dev/pkg/luxcov/internal/domain"
	m "luxcov.dev/pkg/luxcov/internal/model"
	"luxcov.dev/pkg/luxcov/internal/parser"
)

// ErrLoadInProgress signals a circular require. The host resolves it
// with standard partial-module semantics; the loader never re-enters
// instrumentation for the same module.
var ErrLoadInProgress = errors.New("module load already in progress")

// ErrModuleNotFound reports that no search template matched the name.
var ErrModuleNotFound = errors.New("module not found")

// FS is the slice of filesystem behavior the loader needs.
type FS interface {
	ReadFile(path m.Path) ([]byte, error)
	HashFile(path m.Path) (string, error)
}

// CacheStore persists instrumented modules between runs. Implementations
// may fail soft: a broken store only costs re-instrumentation.
type CacheStore interface {
	Get(key string) (*m.InstrumentedModule, bool)
	Put(mod *m.InstrumentedModule) error
}

// Config bounds and shapes the load pipeline.
type Config struct {
	// SearchPaths are `?`-templates tried in order, package.path style
	// (e.g. "./?.lua;./?/init.lua").
	SearchPaths []string
	// ParseTimeout bounds one parse; zero disables the watchdog.
	ParseTimeout time.Duration
	// MaxSourceBytes is forwarded to the parser.
	MaxSourceBytes int64
}

// Hook wires module loading to a coverage session. Install it at
// session start and remove it at session stop so non-test code paths
// stay untouched when coverage is off.
type Hook struct {
	session      *domain.Session
	instrumenter *domain.Instrumenter
	fs           FS
	store        CacheStore // optional
	cfg          Config

	installed bool
	memory    map[string]*m.InstrumentedModule
	loading   []m.Path
	warnings  []m.LoaderFallbackWarning
}

// NewHook builds a loader hook bound to one session.
func NewHook(session *domain.Session, instrumenter *domain.Instrumenter, fs FS, store CacheStore, cfg Config) *Hook {
	if len(cfg.SearchPaths) == 0 {
		cfg.SearchPaths = []string{"./?.lua", "./?/init.lua"}
	}
	return &Hook{
		session:      session,
		instrumenter: instrumenter,
		fs:           fs,
		store:        store,
		cfg:          cfg,
		memory:       make(map[string]*m.InstrumentedModule),
	}
}

// Install activates interception.
func (h *Hook) Install() {
	h.installed = true
}

// Uninstall deactivates interception; Load then serves raw source.
func (h *Hook) Uninstall() {
	h.installed = false
	h.loading = nil
}

// Installed reports whether the hook is active.
func (h *Hook) Installed() bool {
	return h.installed
}

// Warnings returns the per-file fallback diagnostics collected so far.
func (h *Hook) Warnings() []m.LoaderFallbackWarning {
	return h.warnings
}

// Reset evicts every cached module and clears diagnostics.
func (h *Hook) Reset() {
	h.memory = make(map[string]*m.InstrumentedModule)
	h.warnings = nil
	h.loading = nil
}

// Resolve maps a dotted module name onto the first matching search
// template. It only shapes the candidate path; existence is checked by
// the subsequent read.
func (h *Hook) Resolve(name string) (m.Path, error) {
	slashed := strings.ReplaceAll(name, ".", string(filepath.Separator))
	for _, tmpl := range h.cfg.SearchPaths {
		candidate := strings.ReplaceAll(tmpl, "?", slashed)
		if _, err := h.fs.ReadFile(m.Path(candidate)); err == nil {
			return m.Path(candidate), nil
		}
	}
	return "", ErrModuleNotFound
}

// Load resolves and returns the instrumented module for a require'd
// name. While uninstalled it returns the raw source untouched.
func (h *Hook) Load(ctx context.Context, name string) (*m.InstrumentedModule, error) {
	path, err := h.Resolve(name)
	if err != nil {
		return nil, err
	}
	return h.LoadPath(ctx, path)
}

// LoadPath runs the cache-or-instrument pipeline for a concrete path.
func (h *Hook) LoadPath(ctx context.Context, path m.Path) (*m.InstrumentedModule, error) {
	text, err := h.fs.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if !h.installed {
		return rawModule(path, text, ""), nil
	}

	for _, inProgress := range h.loading {
		if inProgress == path {
			return nil, ErrLoadInProgress
		}
	}
	h.loading = append(h.loading, path)
	defer func() { h.loading = h.loading[:len(h.loading)-1] }()

	hash, err := h.fs.HashFile(path)
	if err != nil {
		return nil, err
	}
	key := domain.CacheKey(hash, h.instrumenter.Config())

	if mod, ok := h.memory[key]; ok {
		return h.register(mod, text)
	}
	if h.store != nil {
		if mod, ok := h.store.Get(key); ok {
			h.memory[key] = mod
			return h.register(mod, text)
		}
	}

	mod, err := h.instrumentFile(ctx, path, text, hash)
	if err != nil {
		return h.fallback(path, text, err)
	}

	h.memory[key] = mod
	if h.store != nil {
		if err := h.store.Put(mod); err != nil {
			slog.Debug("module cache write failed", "path", path, "error", err)
		}
	}
	return h.register(mod, text)
}

func (h *Hook) instrumentFile(ctx context.Context, path m.Path, text []byte, hash string) (*m.InstrumentedModule, error) {
	if h.cfg.ParseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.ParseTimeout)
		defer cancel()
	}

	block, err := parser.Parse(ctx, text, string(path), parser.Options{
		MaxSourceBytes: h.cfg.MaxSourceBytes,
	})
	if err != nil {
		return nil, err
	}

	sf := &m.SourceFile{
		Path:    path,
		Text:    text,
		Hash:    hash,
		MaxLine: countLines(text),
	}
	return h.instrumenter.Instrument(ctx, sf, block)
}

// register binds a module (fresh or cached) to the session so its
// tracking calls resolve. Disk-cache hits rebuild the source view from
// persisted analysis results.
func (h *Hook) register(mod *m.InstrumentedModule, text []byte) (*m.InstrumentedModule, error) {
	sf := mod.Source
	if sf == nil {
		sf = mod.RebuildSource(text)
	}
	if _, err := h.session.RegisterFile(sf); err != nil {
		return h.fallback(mod.Path, text, err)
	}
	return mod, nil
}

// fallback serves the raw source and records the file as untrackable.
func (h *Hook) fallback(path m.Path, text []byte, cause error) (*m.InstrumentedModule, error) {
	warning := m.LoaderFallbackWarning{Path: path, Cause: cause}
	h.warnings = append(h.warnings, warning)
	h.session.RecordSkip(warning)
	return rawModule(path, text, ""), nil
}

func rawModule(path m.Path, text []byte, key string) *m.InstrumentedModule {
	return &m.InstrumentedModule{
		Path:      path,
		Generated: text,
		CacheKey:  key,
		CreatedAt: time.Now(),
		MaxLine:   countLines(text),
	}
}

func countLines(text []byte) int {
	if len(text) == 0 {
		return 0
	}
	n := bytes.Count(text, []byte("\n"))
	if text[len(text)-1] != '\n' {
		n++
	}
	return n
}
