package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "luxcov.dev/pkg/luxcov/internal/model"
)

func TestMergeCmd_UsesRootOutputFlagByDefault(t *testing.T) {
	var gotDir m.Path
	swapWorkflow(t, &fakeWorkflow{
		mergeShardsFn: func(_ context.Context, dir m.Path) (m.Snapshot, error) {
			gotDir = dir
			return m.Snapshot{}, nil
		},
	})
	displays := &fakeUI{}
	swapUI(t, displays)

	cmd := newTestRoot(t, newMergeCmd())
	cmd.SetArgs([]string{"merge"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, m.Path(defaultSnapshotDir), gotDir)
	assert.Len(t, displays.snapshots, 1)
}

func TestMergeCmd_RootOutputFlagIsPassedThrough(t *testing.T) {
	var gotDir m.Path
	swapWorkflow(t, &fakeWorkflow{
		mergeShardsFn: func(_ context.Context, dir m.Path) (m.Snapshot, error) {
			gotDir = dir
			return m.Snapshot{}, nil
		},
	})
	swapUI(t, &fakeUI{})

	cmd := newTestRoot(t, newMergeCmd())
	cmd.SetArgs([]string{"merge", "--output", "./shards"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, m.Path("./shards"), gotDir)
}

func TestMergeCmd_PropagatesWorkflowError(t *testing.T) {
	wantErr := errors.New("no shard directories")
	swapWorkflow(t, &fakeWorkflow{
		mergeShardsFn: func(_ context.Context, _ m.Path) (m.Snapshot, error) {
			return m.Snapshot{}, wantErr
		},
	})
	displays := &fakeUI{}
	swapUI(t, displays)

	cmd := newTestRoot(t, newMergeCmd())
	cmd.SetArgs([]string{"merge"})

	err := cmd.Execute()
	require.ErrorIs(t, err, wantErr)
	assert.Empty(t, displays.snapshots)
}

func TestMergeCmd_PositionalArgsAreRejected(t *testing.T) {
	swapWorkflow(t, &fakeWorkflow{})
	swapUI(t, &fakeUI{})

	cmd := newTestRoot(t, newMergeCmd())
	cmd.SetArgs([]string{"merge", "./shards"})

	require.Error(t, cmd.Execute())
}
