package controller

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "luxcov.dev/pkg/luxcov/internal/model"
)

func trackedFile(path m.Path, lines map[int]m.LineRecord) *m.FileCoverage {
	return &m.FileCoverage{Path: path, Lines: lines}
}

func TestTUI_ViewSnapshotPrintsShortOutput(t *testing.T) {
	out := &bytes.Buffer{}
	tui := NewTUI(out)

	snap := m.Snapshot{Files: map[m.Path]*m.FileCoverage{
		"calc.lua": trackedFile("calc.lua", map[int]m.LineRecord{
			1: {File: "calc.lua", Line: 1, ExecutionCount: 2, CoveredByAssertion: true},
			2: {File: "calc.lua", Line: 2, ExecutionCount: 1},
			3: {File: "calc.lua", Line: 3},
		}),
		"broken.lua": {Path: "broken.lua", Untracked: true, Reason: "syntax error"},
	}}
	snap.Recalc()

	require.NoError(t, tui.ViewSnapshot(snap))

	output := out.String()
	assert.Contains(t, output, "calc.lua")
	assert.Contains(t, output, "line 2: executed, no assertion")
	assert.Contains(t, output, "line 3: never executed")
	assert.Contains(t, output, "untracked (syntax error)")
}

func TestBuildSnapshotLinesSortsFiles(t *testing.T) {
	snap := m.Snapshot{Files: map[m.Path]*m.FileCoverage{
		"b.lua": trackedFile("b.lua", map[int]m.LineRecord{1: {Line: 1}}),
		"a.lua": trackedFile("a.lua", map[int]m.LineRecord{1: {Line: 1}}),
	}}

	lines := buildSnapshotLines(snap)
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "a.lua")
}

func TestWorstLinesCapsOutput(t *testing.T) {
	records := make(map[int]m.LineRecord, 8)
	for i := 1; i <= 8; i++ {
		records[i] = m.LineRecord{Line: i}
	}

	out := worstLines(trackedFile("big.lua", records))

	// five entries plus the continuation marker
	require.Len(t, out, 6)
	assert.Contains(t, out[5], "...")
}

func TestCoverageBar(t *testing.T) {
	assert.Empty(t, coverageBar(0, 0, 0))

	bar := coverageBar(4, 3, 2)
	assert.NotEmpty(t, bar)
}
