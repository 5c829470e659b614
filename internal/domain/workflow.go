package domain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"
	"luxcov.dev/pkg/luxcov/internal/adapter"
	"luxcov.dev/pkg/luxcov/internal/ast"
	m "luxcov.dev/pkg/luxcov/internal/model"
	"luxcov.dev/pkg/luxcov/internal/parser"
	"luxcov.dev/pkg/luxcov/pkg"
)

// ScanArgs selects the source files a command operates on.
type ScanArgs struct {
	Paths     []m.Path
	Exclude   []string // regular expressions matched against slash paths
	Recursive bool
}

// InstrumentArgs drives batch instrumentation of a source tree.
type InstrumentArgs struct {
	ScanArgs
	Out            m.Path
	Threads        uint
	MaxSourceBytes int64
	ParseTimeout   time.Duration // per file; zero disables the watchdog
	UseCache       bool
}

// FileIssue records a per-file failure that did not abort the batch.
type FileIssue struct {
	Path m.Path
	Err  error
}

// InstrumentSummary is the outcome of one Instrument run.
type InstrumentSummary struct {
	Instrumented int
	Issues       []FileIssue
}

// ModuleCache persists instrumented modules between runs, keyed by the
// content-hash-plus-config cache key.
type ModuleCache interface {
	Get(key string) (*m.InstrumentedModule, bool)
	Put(mod *m.InstrumentedModule) error
}

// Workflow is the use-case layer behind the CLI commands.
type Workflow interface {
	Scan(ctx context.Context, args ScanArgs) ([]m.Path, error)
	Analyze(ctx context.Context, path m.Path) (*m.SourceFile, error)
	Instrument(ctx context.Context, args InstrumentArgs) (InstrumentSummary, error)
	MergeShards(ctx context.Context, dir m.Path) (m.Snapshot, error)
	LoadSnapshot(dir m.Path) (m.Snapshot, error)
}

type workflow struct {
	adapter.SourceFSAdapter
	adapter.SnapshotStore

	cache ModuleCache // optional
	ins   *Instrumenter
}

// NewWorkflow creates a Workflow instance with the provided dependencies.
// The cache may be nil, in which case every run re-instruments.
func NewWorkflow(fsAdapter adapter.SourceFSAdapter, store adapter.SnapshotStore, cache ModuleCache, ins *Instrumenter) Workflow {
	return &workflow{
		SourceFSAdapter: fsAdapter,
		SnapshotStore:   store,
		cache:           cache,
		ins:             ins,
	}
}

// Scan walks the given roots and returns every matching source file in
// sorted order. A root that is itself a file is taken as-is.
func (w *workflow) Scan(ctx context.Context, args ScanArgs) ([]m.Path, error) {
	exclude, err := compileExcludes(args.Exclude)
	if err != nil {
		return nil, err
	}

	seen := make(map[m.Path]struct{})

	var files []m.Path

	for _, root := range args.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := w.FileInfo(root)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", root, err)
		}

		if !info.IsDir() {
			if keepSource(string(root), exclude) {
				addPath(root, seen, &files)
			}

			continue
		}

		walkErr := w.Walk(root, args.Recursive, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if fi.IsDir() || !keepSource(path, exclude) {
				return nil
			}

			addPath(m.Path(path), seen, &files)

			return nil
		})
		if walkErr != nil {
			return nil, fmt.Errorf("scan %s: %w", root, walkErr)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i] < files[j] })

	return files, nil
}

// Analyze parses one file and fills in its executable-line set and
// function table without generating instrumented output.
func (w *workflow) Analyze(ctx context.Context, path m.Path) (*m.SourceFile, error) {
	sf, block, err := w.parseFile(ctx, path, 0)
	if err != nil {
		return nil, err
	}

	sf.ExecutableLines = ExecutableLines(block, w.ins.Config().Policy)
	sf.Functions = Functions(block, path)

	return sf, nil
}

// instrumentedOutput is the unit spilled to disk between the parallel
// instrumentation phase and the sequential write phase. SideCar holds
// the msgpack-encoded source map written next to the generated file.
type instrumentedOutput struct {
	Rel     m.Path
	Data    []byte
	SideCar []byte
}

// Instrument rewrites every scanned file and writes the generated
// sources under args.Out, mirroring the layout relative to the first
// scan root. Per-file failures are collected, not fatal.
func (w *workflow) Instrument(ctx context.Context, args InstrumentArgs) (InstrumentSummary, error) {
	files, err := w.Scan(ctx, args.ScanArgs)
	if err != nil {
		return InstrumentSummary{}, err
	}

	spill, err := pkg.NewFileSpill[instrumentedOutput]()
	if err != nil {
		return InstrumentSummary{}, fmt.Errorf("create spill: %w", err)
	}

	defer func() {
		_ = spill.Close()
	}()

	base := scanBase(args.Paths)

	var (
		summary InstrumentSummary
		mu      sync.Mutex
	)

	group, groupCtx := errgroup.WithContext(ctx)
	if args.Threads > 0 {
		group.SetLimit(int(args.Threads))
	}

	for _, file := range files {
		currentFile := file

		group.Go(func() error {
			mod, err := w.instrumentOne(groupCtx, currentFile, args)
			if err != nil {
				mu.Lock()
				summary.Issues = append(summary.Issues, FileIssue{Path: currentFile, Err: err})
				mu.Unlock()

				return nil
			}

			rel, err := w.relTo(base, currentFile)
			if err != nil {
				return err
			}

			sidecar, err := msgpack.Marshal(&mod.Map)
			if err != nil {
				return fmt.Errorf("encode source map for %s: %w", currentFile, err)
			}

			if err := spill.Append(instrumentedOutput{Rel: rel, Data: mod.Generated, SideCar: sidecar}); err != nil {
				return err
			}

			mu.Lock()
			summary.Instrumented++
			mu.Unlock()

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return summary, err
	}

	writeErr := spill.Range(func(_ uint64, out instrumentedOutput) error {
		target := w.JoinPath(string(args.Out), string(out.Rel))
		if err := w.WriteFile(target, out.Data, 0o600); err != nil {
			return err
		}

		return w.WriteFile(target+".map", out.SideCar, 0o600)
	})
	if writeErr != nil {
		return summary, fmt.Errorf("write instrumented sources: %w", writeErr)
	}

	return summary, nil
}

// MergeShards folds every shard_* snapshot under dir into one dataset
// and stores the result back in dir.
func (w *workflow) MergeShards(ctx context.Context, dir m.Path) (m.Snapshot, error) {
	shards, err := w.ListShardDirs(dir)
	if err != nil {
		return m.Snapshot{}, err
	}

	if len(shards) == 0 {
		return m.Snapshot{}, fmt.Errorf("no shard snapshots under %s", dir)
	}

	snapshots := make([]m.Snapshot, 0, len(shards))

	for _, shard := range shards {
		if err := ctx.Err(); err != nil {
			return m.Snapshot{}, err
		}

		snap, err := w.SnapshotStore.LoadSnapshot(shard)
		if err != nil {
			return m.Snapshot{}, fmt.Errorf("load shard %s: %w", shard, err)
		}

		snapshots = append(snapshots, snap)
	}

	merged := Merge(snapshots...)

	if err := w.SaveSnapshot(dir, merged); err != nil {
		return m.Snapshot{}, err
	}

	return merged, nil
}

// LoadSnapshot reads the stored snapshot from dir.
func (w *workflow) LoadSnapshot(dir m.Path) (m.Snapshot, error) {
	return w.SnapshotStore.LoadSnapshot(dir)
}

// MeetsThreshold reports whether the snapshot clears a minimum
// assertion-covered percentage. Untracked files never count toward the
// total, so a snapshot full of fallbacks can still fail loudly via
// Summary.UntrackedFiles.
func MeetsThreshold(s m.Snapshot, min float64) bool {
	return s.Summary.CoveredPercent >= min
}

func (w *workflow) instrumentOne(ctx context.Context, path m.Path, args InstrumentArgs) (*m.InstrumentedModule, error) {
	if args.ParseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, args.ParseTimeout)

		defer cancel()
	}

	useCache := args.UseCache && w.cache != nil

	var key string

	if useCache {
		hash, err := w.HashFile(path)
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", path, err)
		}

		key = CacheKey(hash, w.ins.Config())
		if mod, ok := w.cache.Get(key); ok {
			return mod, nil
		}
	}

	sf, block, err := w.parseFile(ctx, path, args.MaxSourceBytes)
	if err != nil {
		return nil, err
	}

	mod, err := w.ins.Instrument(ctx, sf, block)
	if err != nil {
		return nil, err
	}

	if useCache {
		if putErr := w.cache.Put(mod); putErr != nil {
			slog.Debug("module cache write failed", "path", path, "error", putErr)
		}
	}

	return mod, nil
}

func (w *workflow) parseFile(ctx context.Context, path m.Path, maxBytes int64) (*m.SourceFile, *ast.Block, error) {
	text, err := w.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	hash, err := w.HashFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("hash %s: %w", path, err)
	}

	block, err := parser.Parse(ctx, text, string(path), parser.Options{MaxSourceBytes: maxBytes})
	if err != nil {
		return nil, nil, err
	}

	sf := &m.SourceFile{
		Path:    path,
		Text:    text,
		Hash:    hash,
		MaxLine: countTextLines(text),
	}

	return sf, block, nil
}

// relTo maps an absolute or root-relative file onto the output layout.
func (w *workflow) relTo(base, file m.Path) (m.Path, error) {
	if base == "" {
		return m.Path(filepath.Base(string(file))), nil
	}

	return w.RelPath(base, file)
}

// scanBase picks the directory the output tree mirrors: the first scan
// root, or its directory when the root is a single file.
func scanBase(paths []m.Path) m.Path {
	if len(paths) == 0 {
		return ""
	}

	root := string(paths[0])
	if filepath.Ext(root) == sourceExt {
		return m.Path(filepath.Dir(root))
	}

	return m.Path(root)
}

const sourceExt = ".lua"

func keepSource(path string, exclude []*regexp.Regexp) bool {
	if filepath.Ext(path) != sourceExt {
		return false
	}

	slashed := filepath.ToSlash(path)
	for _, re := range exclude {
		if re.MatchString(slashed) {
			return false
		}
	}

	return true
}

func compileExcludes(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))

	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}

		compiled = append(compiled, re)
	}

	return compiled, nil
}

func addPath(path m.Path, seen map[m.Path]struct{}, files *[]m.Path) {
	if _, dup := seen[path]; dup {
		return
	}

	seen[path] = struct{}{}
	*files = append(*files, path)
}

func countTextLines(text []byte) int {
	if len(text) == 0 {
		return 0
	}

	n := 0
	for _, b := range text {
		if b == '\n' {
			n++
		}
	}

	if text[len(text)-1] != '\n' {
		n++
	}

	return n
}
