package domain

import (
	"fmt"
	"log/slog"

	m "luxcov.dev/pkg/luxcov/internal/model"
)

// SessionConfig carries the runtime policies of one coverage session.
type SessionConfig struct {
	// CoverFailedAssertions decides whether a failing assertion still
	// marks the exercised lines as covered. This is an explicit policy
	// choice surfaced in configuration, not a built-in default.
	CoverFailedAssertions bool
}

// Session owns the live coverage state of one process. It is the
// explicit object the loader hook and the assertion integration hold a
// reference to, so multiple isolated sessions can coexist in tests.
//
// A session follows the cooperative single-threaded execution model of
// the host runtime: all tracking calls for a session arrive from one
// goroutine, in program order. Parallel runs use one session per worker
// process and merge the resulting snapshots.
type Session struct {
	cfg     SessionConfig
	active  bool
	files   map[m.FileID]*fileState
	byPath  map[m.Path]m.FileID
	skipped []m.LoaderFallbackWarning
}

// fileState is the mutable per-file store. Counter slices are sized at
// registration so the tracking hot path is a bounds check plus an
// increment: O(1), no allocation.
type fileState struct {
	source *m.SourceFile
	counts []uint64 // indexed by line, 1-based; index 0 unused
	cover  []bool
	fnHits []bool
	broken bool
}

// NewSession creates an inactive session with the given policies.
func NewSession(cfg SessionConfig) *Session {
	return &Session{
		cfg:    cfg,
		files:  make(map[m.FileID]*fileState),
		byPath: make(map[m.Path]m.FileID),
	}
}

// Start clears any previous state and begins accepting tracking calls.
func (s *Session) Start() {
	s.files = make(map[m.FileID]*fileState)
	s.byPath = make(map[m.Path]m.FileID)
	s.skipped = nil
	s.active = true
}

// Active reports whether the session is accepting tracking calls.
func (s *Session) Active() bool {
	return s.active
}

// RegisterFile makes a source file trackable and returns its FileID.
// The ID is the deterministic FileKey of the path; a colliding key from
// a different path is rejected so counts never mix between files.
func (s *Session) RegisterFile(sf *m.SourceFile) (m.FileID, error) {
	fid := m.FileKey(sf.Path)
	if existing, ok := s.files[fid]; ok {
		if existing.source.Path != sf.Path {
			return m.NoFileID, fmt.Errorf("file key collision: %s vs %s", existing.source.Path, sf.Path)
		}
		return fid, nil
	}

	s.files[fid] = &fileState{
		source: sf,
		counts: make([]uint64, sf.MaxLine+1),
		cover:  make([]bool, sf.MaxLine+1),
		fnHits: make([]bool, len(sf.Functions)),
	}
	s.byPath[sf.Path] = fid
	return fid, nil
}

// RecordSkip notes a file that loaded uninstrumented; it shows up as
// untracked in the snapshot instead of as deliberate zero coverage.
func (s *Session) RecordSkip(warning m.LoaderFallbackWarning) {
	s.skipped = append(s.skipped, warning)
	slog.Warn("file loaded without instrumentation", "path", warning.Path, "cause", warning.Cause)
}

// MarkExecuted is the hot-path entry point fed by instrumented code.
// Out-of-range lines mean corrupted tracking data; the file's record is
// reset rather than letting the corruption propagate to callers.
func (s *Session) MarkExecuted(fid m.FileID, line int) {
	fs, ok := s.files[fid]
	if !ok || fs.broken {
		return
	}
	if line <= 0 || line >= len(fs.counts) {
		s.quarantine(fs, line)
		return
	}
	fs.counts[line]++
}

// MarkFunctionEntered records that a function body began executing.
func (s *Session) MarkFunctionEntered(fid m.FileID, fnID int) {
	fs, ok := s.files[fid]
	if !ok || fs.broken {
		return
	}
	if fnID < 0 || fnID >= len(fs.fnHits) {
		s.quarantine(fs, fnID)
		return
	}
	fs.fnHits[fnID] = true
}

// MarkFunctionExited is the release half of the function guard. An exit
// without a matching entry means the tracking stream is corrupted.
func (s *Session) MarkFunctionExited(fid m.FileID, fnID int) {
	fs, ok := s.files[fid]
	if !ok || fs.broken {
		return
	}
	if fnID < 0 || fnID >= len(fs.fnHits) || !fs.fnHits[fnID] {
		s.quarantine(fs, fnID)
	}
}

// MarkCovered is invoked by the assertion integration when an assertion
// evaluates against a source range. It may arrive from deferred work at
// any point before Stop. Lines that never executed are left uncovered:
// covered implies executed, never the reverse.
func (s *Session) MarkCovered(path m.Path, startLine, endLine int, passed bool) {
	if !s.active {
		return
	}
	if !passed && !s.cfg.CoverFailedAssertions {
		return
	}
	fid, ok := s.byPath[path]
	if !ok {
		return
	}
	fs := s.files[fid]
	if fs.broken {
		return
	}

	if startLine < 1 {
		startLine = 1
	}
	if last := len(fs.counts) - 1; endLine > last {
		endLine = last
	}

	for line := startLine; line <= endLine; line++ {
		if fs.counts[line] == 0 {
			slog.Debug("assertion covered an unexecuted line, ignoring",
				"path", path, "line", line)
			continue
		}
		fs.cover[line] = true
	}
}

// Stop freezes live state into an immutable snapshot and clears the
// session for reuse.
func (s *Session) Stop() m.Snapshot {
	snap := m.Snapshot{Files: make(map[m.Path]*m.FileCoverage)}

	for _, fs := range s.files {
		if fs.broken {
			snap.Files[fs.source.Path] = &m.FileCoverage{
				Path:      fs.source.Path,
				Untracked: true,
				Reason:    "tracking data corrupted",
			}
			continue
		}

		fc := &m.FileCoverage{
			Path:  fs.source.Path,
			Lines: make(map[int]m.LineRecord, len(fs.source.ExecutableLines)),
		}
		for line := range fs.source.ExecutableLines {
			count := uint64(0)
			covered := false
			if line < len(fs.counts) {
				count = fs.counts[line]
				covered = fs.cover[line]
			}
			fc.Lines[line] = m.LineRecord{
				File:               fs.source.Path,
				Line:               line,
				ExecutionCount:     count,
				CoveredByAssertion: covered,
			}
		}
		fc.Functions = make([]m.FunctionRecord, len(fs.source.Functions))
		copy(fc.Functions, fs.source.Functions)
		for i := range fc.Functions {
			fc.Functions[i].Executed = i < len(fs.fnHits) && fs.fnHits[i]
		}
		snap.Files[fs.source.Path] = fc
	}

	for _, warning := range s.skipped {
		if _, exists := snap.Files[warning.Path]; exists {
			continue
		}
		snap.Files[warning.Path] = &m.FileCoverage{
			Path:      warning.Path,
			Untracked: true,
			Reason:    warning.Cause.Error(),
		}
	}

	snap.Recalc()

	s.files = make(map[m.FileID]*fileState)
	s.byPath = make(map[m.Path]m.FileID)
	s.skipped = nil
	s.active = false
	return snap
}

func (s *Session) quarantine(fs *fileState, value int) {
	slog.Error("coverage tracking corrupted, resetting file record",
		"path", fs.source.Path, "value", value)
	fs.broken = true
	fs.counts = make([]uint64, len(fs.counts))
	fs.cover = make([]bool, len(fs.cover))
	fs.fnHits = make([]bool, len(fs.fnHits))
}
