// Package model defines the data structures for assertion-aware coverage.
package model

// LineState classifies a line in the three-state coverage model.
type LineState int

const (
	// LineNotCovered means the line was never executed.
	LineNotCovered LineState = iota
	// LineExecuted means the line ran but no assertion verified it.
	LineExecuted
	// LineCovered means an assertion evaluated against the line.
	LineCovered
)

func (s LineState) String() string {
	switch s {
	case LineExecuted:
		return "executed"
	case LineCovered:
		return "covered"
	default:
		return "not-covered"
	}
}

// LineRecord is the per-line coverage cell. Counts only grow during a
// session; covered is never set on a line with a zero count.
type LineRecord struct {
	File               Path   `msgpack:"file"`
	Line               int    `msgpack:"line"`
	ExecutionCount     uint64 `msgpack:"execution_count"`
	CoveredByAssertion bool   `msgpack:"covered"`
}

// State returns the three-state classification of the record.
func (r LineRecord) State() LineState {
	switch {
	case r.CoveredByAssertion:
		return LineCovered
	case r.ExecutionCount > 0:
		return LineExecuted
	default:
		return LineNotCovered
	}
}

// FunctionRecord describes one function body and whether it ran.
type FunctionRecord struct {
	File      Path     `msgpack:"file"`
	Name      string   `msgpack:"name"`
	StartLine int      `msgpack:"start_line"`
	EndLine   int      `msgpack:"end_line"` // half-open: first line after the body
	Params    []string `msgpack:"params"`
	IsVararg  bool     `msgpack:"is_vararg"`
	Executed  bool     `msgpack:"executed"`
}

// FileCoverage is the frozen per-file dataset inside a Snapshot.
type FileCoverage struct {
	Path      Path               `msgpack:"path"`
	Lines     map[int]LineRecord `msgpack:"lines"`
	Functions []FunctionRecord   `msgpack:"functions"`

	// Untracked marks files that loaded uninstrumented (parse or
	// instrumentation failure); their zero counts are not real zeros.
	Untracked bool   `msgpack:"untracked"`
	Reason    string `msgpack:"reason,omitempty"`
}

// Summary aggregates a snapshot for reporting and CI gating.
type Summary struct {
	TotalLines     int     `msgpack:"total_lines"`
	ExecutedLines  int     `msgpack:"executed_lines"`
	CoveredLines   int     `msgpack:"covered_lines"`
	TotalFuncs     int     `msgpack:"total_functions"`
	ExecutedFuncs  int     `msgpack:"executed_functions"`
	UntrackedFiles int     `msgpack:"untracked_files"`
	CoveredPercent float64 `msgpack:"covered_percent"`
}

// Snapshot is an immutable, mergeable coverage dataset produced when a
// session stops. Key names are stable; reporting layers depend on them.
type Snapshot struct {
	Files   map[Path]*FileCoverage `msgpack:"files"`
	Summary Summary                `msgpack:"summary"`
}

// Recalc recomputes the summary from the per-file data.
func (s *Snapshot) Recalc() {
	sum := Summary{}
	for _, fc := range s.Files {
		if fc.Untracked {
			sum.UntrackedFiles++
			continue
		}
		for _, lr := range fc.Lines {
			sum.TotalLines++
			if lr.ExecutionCount > 0 {
				sum.ExecutedLines++
			}
			if lr.CoveredByAssertion {
				sum.CoveredLines++
			}
		}
		for _, fr := range fc.Functions {
			sum.TotalFuncs++
			if fr.Executed {
				sum.ExecutedFuncs++
			}
		}
	}
	if sum.TotalLines > 0 {
		sum.CoveredPercent = 100.0 * float64(sum.CoveredLines) / float64(sum.TotalLines)
	}
	s.Summary = sum
}
