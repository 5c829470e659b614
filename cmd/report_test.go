package cmd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "luxcov.dev/pkg/luxcov/internal/model"
)

func reportSnapshot(coveredPercent float64) m.Snapshot {
	return m.Snapshot{
		Files: map[m.Path]*m.FileCoverage{
			"calc.lua": {Path: "calc.lua"},
		},
		Summary: m.Summary{CoveredPercent: coveredPercent},
	}
}

func TestReportCmd_DisplaysSnapshot(t *testing.T) {
	var gotDir m.Path
	swapWorkflow(t, &fakeWorkflow{
		loadFn: func(dir m.Path) (m.Snapshot, error) {
			gotDir = dir
			return reportSnapshot(50), nil
		},
	})
	displays := &fakeUI{}
	swapUI(t, displays)

	cmd := newTestRoot(t, newReportCmd())
	cmd.SetArgs([]string{"report"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, m.Path(defaultSnapshotDir), gotDir)
	require.Len(t, displays.snapshots, 1)

	// without --threshold there must be no gate verdict
	assert.Empty(t, displays.thresholds)
}

func TestReportCmd_ThresholdFailureExitsNonZero(t *testing.T) {
	swapWorkflow(t, &fakeWorkflow{
		loadFn: func(_ m.Path) (m.Snapshot, error) {
			return reportSnapshot(50), nil
		},
	})
	displays := &fakeUI{}
	swapUI(t, displays)

	cmd := newTestRoot(t, newReportCmd())
	cmd.SetArgs([]string{"report", "--threshold", "80"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below threshold")

	require.Len(t, displays.thresholds, 1)
	assert.Equal(t, thresholdCall{threshold: 80, passed: false}, displays.thresholds[0])
}

func TestReportCmd_ThresholdMetAtBoundary(t *testing.T) {
	swapWorkflow(t, &fakeWorkflow{
		loadFn: func(_ m.Path) (m.Snapshot, error) {
			return reportSnapshot(80), nil
		},
	})
	displays := &fakeUI{}
	swapUI(t, displays)

	cmd := newTestRoot(t, newReportCmd())
	cmd.SetArgs([]string{"report", "--threshold", "80"})

	require.NoError(t, cmd.Execute())
	require.Len(t, displays.thresholds, 1)
	assert.Equal(t, thresholdCall{threshold: 80, passed: true}, displays.thresholds[0])
}

func TestReportCmd_PropagatesLoadError(t *testing.T) {
	wantErr := errors.New("snapshot missing")
	swapWorkflow(t, &fakeWorkflow{
		loadFn: func(_ m.Path) (m.Snapshot, error) {
			return m.Snapshot{}, wantErr
		},
	})
	displays := &fakeUI{}
	swapUI(t, displays)

	cmd := newTestRoot(t, newReportCmd())
	cmd.SetArgs([]string{"report"})

	require.ErrorIs(t, cmd.Execute(), wantErr)
	assert.Empty(t, displays.snapshots)
}
