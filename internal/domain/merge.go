package domain

import (
	m "luxcov.dev/pkg/luxcov/internal/model"
)

// Merge folds snapshots from independent worker processes into one.
// Execution counts sum, covered flags OR, untracked flags OR; the
// operation is associative and commutative, so shard order never
// changes the result.
func Merge(snapshots ...m.Snapshot) m.Snapshot {
	out := m.Snapshot{Files: make(map[m.Path]*m.FileCoverage)}

	for _, snap := range snapshots {
		for path, fc := range snap.Files {
			existing, ok := out.Files[path]
			if !ok {
				out.Files[path] = cloneFileCoverage(fc)
				continue
			}
			mergeFileCoverage(existing, fc)
		}
	}

	out.Recalc()
	return out
}

func cloneFileCoverage(fc *m.FileCoverage) *m.FileCoverage {
	clone := &m.FileCoverage{
		Path:      fc.Path,
		Lines:     make(map[int]m.LineRecord, len(fc.Lines)),
		Functions: make([]m.FunctionRecord, len(fc.Functions)),
		Untracked: fc.Untracked,
		Reason:    fc.Reason,
	}
	for line, lr := range fc.Lines {
		clone.Lines[line] = lr
	}
	copy(clone.Functions, fc.Functions)
	return clone
}

func mergeFileCoverage(dst, src *m.FileCoverage) {
	// untracked in any shard taints the file: its zeros are not real
	dst.Untracked = dst.Untracked || src.Untracked
	if dst.Reason == "" {
		dst.Reason = src.Reason
	}

	for line, lr := range src.Lines {
		merged, ok := dst.Lines[line]
		if !ok {
			dst.Lines[line] = lr
			continue
		}
		merged.ExecutionCount += lr.ExecutionCount
		merged.CoveredByAssertion = merged.CoveredByAssertion || lr.CoveredByAssertion
		dst.Lines[line] = merged
	}

	if len(dst.Functions) == 0 {
		dst.Functions = make([]m.FunctionRecord, len(src.Functions))
		copy(dst.Functions, src.Functions)
		return
	}
	byStart := make(map[int]int, len(dst.Functions))
	for i, fr := range dst.Functions {
		byStart[fr.StartLine] = i
	}
	for _, fr := range src.Functions {
		if i, ok := byStart[fr.StartLine]; ok {
			dst.Functions[i].Executed = dst.Functions[i].Executed || fr.Executed
			continue
		}
		dst.Functions = append(dst.Functions, fr)
		byStart[fr.StartLine] = len(dst.Functions) - 1
	}
}
