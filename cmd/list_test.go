package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"luxcov.dev/pkg/luxcov/internal/controller"
	"luxcov.dev/pkg/luxcov/internal/domain"
	m "luxcov.dev/pkg/luxcov/internal/model"
)

func TestListCmd_DisplaysAnalyzedFiles(t *testing.T) {
	var gotScan domain.ScanArgs
	swapWorkflow(t, &fakeWorkflow{
		scanFn: func(_ context.Context, args domain.ScanArgs) ([]m.Path, error) {
			gotScan = args
			return []m.Path{"src/calc.lua", "src/util.lua"}, nil
		},
		analyzeFn: func(_ context.Context, path m.Path) (*m.SourceFile, error) {
			return &m.SourceFile{
				Path:    path,
				MaxLine: 10,
				ExecutableLines: map[int]struct{}{
					1: {}, 4: {}, 7: {},
				},
				Functions: []m.FunctionRecord{
					{File: path, Name: "add", StartLine: 1, EndLine: 5},
				},
			}, nil
		},
	})
	displays := &fakeUI{}
	swapUI(t, displays)

	cmd := newTestRoot(t, newListCmd())
	cmd.SetArgs([]string{"list", "src"})

	require.NoError(t, cmd.Execute())

	assert.Equal(t, []m.Path{"src"}, gotScan.Paths)
	assert.True(t, gotScan.Recursive)

	require.Len(t, displays.fileLists, 1)
	rows := displays.fileLists[0]
	require.Len(t, rows, 2)
	assert.Equal(t, controller.FileSummary{
		Path:       "src/calc.lua",
		Lines:      10,
		Executable: 3,
		Functions:  1,
	}, rows[0])
}

func TestListCmd_NonRecursive(t *testing.T) {
	var gotScan domain.ScanArgs
	swapWorkflow(t, &fakeWorkflow{
		scanFn: func(_ context.Context, args domain.ScanArgs) ([]m.Path, error) {
			gotScan = args
			return nil, nil
		},
	})
	displays := &fakeUI{}
	swapUI(t, displays)

	cmd := newTestRoot(t, newListCmd())
	cmd.SetArgs([]string{"list", "--recursive=false", "src"})

	require.NoError(t, cmd.Execute())
	assert.False(t, gotScan.Recursive)
	require.Len(t, displays.fileLists, 1)
	assert.Empty(t, displays.fileLists[0])
}

func TestListCmd_PropagatesScanError(t *testing.T) {
	wantErr := errors.New("bad exclude pattern")
	swapWorkflow(t, &fakeWorkflow{
		scanFn: func(_ context.Context, _ domain.ScanArgs) ([]m.Path, error) {
			return nil, wantErr
		},
	})
	swapUI(t, &fakeUI{})

	cmd := newTestRoot(t, newListCmd())
	cmd.SetArgs([]string{"list"})

	require.ErrorIs(t, cmd.Execute(), wantErr)
}

func TestListCmd_PropagatesAnalyzeError(t *testing.T) {
	wantErr := errors.New("parse failed")
	swapWorkflow(t, &fakeWorkflow{
		scanFn: func(_ context.Context, _ domain.ScanArgs) ([]m.Path, error) {
			return []m.Path{"broken.lua"}, nil
		},
		analyzeFn: func(_ context.Context, _ m.Path) (*m.SourceFile, error) {
			return nil, wantErr
		},
	})
	displays := &fakeUI{}
	swapUI(t, displays)

	cmd := newTestRoot(t, newListCmd())
	cmd.SetArgs([]string{"list"})

	require.ErrorIs(t, cmd.Execute(), wantErr)
	assert.Empty(t, displays.fileLists)
}
