package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "luxcov.dev/pkg/luxcov/internal/model"
)

func TestViewCmd_PrintsShortSnapshot(t *testing.T) {
	var gotDir m.Path
	swapWorkflow(t, &fakeWorkflow{
		loadFn: func(dir m.Path) (m.Snapshot, error) {
			gotDir = dir
			snap := m.Snapshot{Files: map[m.Path]*m.FileCoverage{
				"calc.lua": {
					Path: "calc.lua",
					Lines: map[int]m.LineRecord{
						1: {File: "calc.lua", Line: 1, ExecutionCount: 2, CoveredByAssertion: true},
						2: {File: "calc.lua", Line: 2},
					},
				},
			}}
			snap.Recalc()
			return snap, nil
		},
	})

	cmd := newTestRoot(t, newViewCmd())
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"view"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, m.Path(defaultSnapshotDir), gotDir)
	assert.Contains(t, out.String(), "calc.lua")
	assert.Contains(t, out.String(), "never executed")
}

func TestViewCmd_RootOutputFlagIsPassedThrough(t *testing.T) {
	var gotDir m.Path
	swapWorkflow(t, &fakeWorkflow{
		loadFn: func(dir m.Path) (m.Snapshot, error) {
			gotDir = dir
			return m.Snapshot{}, nil
		},
	})

	cmd := newTestRoot(t, newViewCmd())
	cmd.SetArgs([]string{"view", "--output", "./coverage-out"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, m.Path("./coverage-out"), gotDir)
}

func TestViewCmd_PropagatesLoadError(t *testing.T) {
	wantErr := errors.New("snapshot missing")
	swapWorkflow(t, &fakeWorkflow{
		loadFn: func(_ m.Path) (m.Snapshot, error) {
			return m.Snapshot{}, wantErr
		},
	})

	cmd := newTestRoot(t, newViewCmd())
	cmd.SetArgs([]string{"view"})

	require.ErrorIs(t, cmd.Execute(), wantErr)
}

func TestViewCmd_PositionalArgsAreRejected(t *testing.T) {
	swapWorkflow(t, &fakeWorkflow{})

	cmd := newTestRoot(t, newViewCmd())
	cmd.SetArgs([]string{"view", "./somewhere"})

	require.Error(t, cmd.Execute())
}
