package domain

import (
	"testing"

	m "luxcov.dev/pkg/luxcov/internal/model"
)

func shard(path m.Path, lines map[int]m.LineRecord, untracked bool) m.Snapshot {
	snap := m.Snapshot{Files: map[m.Path]*m.FileCoverage{
		path: {
			Path:      path,
			Lines:     lines,
			Untracked: untracked,
		},
	}}
	snap.Recalc()
	return snap
}

func record(line int, count uint64, covered bool) m.LineRecord {
	return m.LineRecord{File: "a.lua", Line: line, ExecutionCount: count, CoveredByAssertion: covered}
}

func TestMergeSumsCountsAndOrsFlags(t *testing.T) {
	left := shard("a.lua", map[int]m.LineRecord{1: record(1, 3, false)}, false)
	right := shard("a.lua", map[int]m.LineRecord{1: record(1, 1, true)}, false)

	merged := Merge(left, right)

	got := merged.Files["a.lua"].Lines[1]
	if got.ExecutionCount != 4 {
		t.Fatalf("counts should sum: got %d", got.ExecutionCount)
	}
	if !got.CoveredByAssertion {
		t.Fatal("covered flag should survive the merge")
	}
}

func TestMergeCommutative(t *testing.T) {
	left := shard("a.lua", map[int]m.LineRecord{1: record(1, 2, true), 2: record(2, 0, false)}, false)
	right := shard("a.lua", map[int]m.LineRecord{1: record(1, 5, false), 3: record(3, 1, false)}, false)

	ab := Merge(left, right)
	ba := Merge(right, left)

	for line := 1; line <= 3; line++ {
		if ab.Files["a.lua"].Lines[line] != ba.Files["a.lua"].Lines[line] {
			t.Fatalf("merge order changed line %d: %+v vs %+v",
				line, ab.Files["a.lua"].Lines[line], ba.Files["a.lua"].Lines[line])
		}
	}
	if ab.Summary != ba.Summary {
		t.Fatalf("summaries differ: %+v vs %+v", ab.Summary, ba.Summary)
	}
}

func TestMergeAssociative(t *testing.T) {
	a := shard("a.lua", map[int]m.LineRecord{1: record(1, 1, false)}, false)
	b := shard("a.lua", map[int]m.LineRecord{1: record(1, 2, true)}, false)
	c := shard("a.lua", map[int]m.LineRecord{1: record(1, 4, false)}, false)

	leftFirst := Merge(Merge(a, b), c)
	rightFirst := Merge(a, Merge(b, c))

	if leftFirst.Files["a.lua"].Lines[1] != rightFirst.Files["a.lua"].Lines[1] {
		t.Fatalf("associativity broken: %+v vs %+v",
			leftFirst.Files["a.lua"].Lines[1], rightFirst.Files["a.lua"].Lines[1])
	}
}

func TestMergeDisjointFiles(t *testing.T) {
	left := shard("a.lua", map[int]m.LineRecord{1: record(1, 1, false)}, false)
	right := shard("b.lua", map[int]m.LineRecord{1: record(1, 1, true)}, false)

	merged := Merge(left, right)

	if len(merged.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(merged.Files))
	}
	if merged.Summary.TotalLines != 2 || merged.Summary.CoveredLines != 1 {
		t.Fatalf("unexpected summary: %+v", merged.Summary)
	}
}

func TestMergeUntrackedTaints(t *testing.T) {
	tracked := shard("a.lua", map[int]m.LineRecord{1: record(1, 1, false)}, false)
	untracked := shard("a.lua", nil, true)

	merged := Merge(tracked, untracked)

	if !merged.Files["a.lua"].Untracked {
		t.Fatal("untracked shard must taint the merged file")
	}
	if merged.Summary.UntrackedFiles != 1 {
		t.Fatalf("untracked count: %d", merged.Summary.UntrackedFiles)
	}
}

func TestMergeFunctionExecution(t *testing.T) {
	fn := m.FunctionRecord{File: "a.lua", Name: "f", StartLine: 1, EndLine: 3}

	ran := fn
	ran.Executed = true

	left := m.Snapshot{Files: map[m.Path]*m.FileCoverage{
		"a.lua": {Path: "a.lua", Functions: []m.FunctionRecord{fn}},
	}}
	right := m.Snapshot{Files: map[m.Path]*m.FileCoverage{
		"a.lua": {Path: "a.lua", Functions: []m.FunctionRecord{ran}},
	}}

	merged := Merge(left, right)

	funcs := merged.Files["a.lua"].Functions
	if len(funcs) != 1 {
		t.Fatalf("expected 1 function, got %d", len(funcs))
	}
	if !funcs[0].Executed {
		t.Fatal("executed flag should OR across shards")
	}
}

func TestMergeEmpty(t *testing.T) {
	merged := Merge()

	if len(merged.Files) != 0 {
		t.Fatalf("empty merge produced files: %+v", merged.Files)
	}
	if merged.Summary.CoveredPercent != 0 {
		t.Fatalf("empty merge has nonzero percent: %f", merged.Summary.CoveredPercent)
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	left := shard("a.lua", map[int]m.LineRecord{1: record(1, 1, false)}, false)
	right := shard("a.lua", map[int]m.LineRecord{1: record(1, 2, false)}, false)

	_ = Merge(left, right)

	if left.Files["a.lua"].Lines[1].ExecutionCount != 1 {
		t.Fatal("merge mutated its left input")
	}
	if right.Files["a.lua"].Lines[1].ExecutionCount != 2 {
		t.Fatal("merge mutated its right input")
	}
}
