package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"luxcov.dev/pkg/luxcov/internal/domain"
	m "luxcov.dev/pkg/luxcov/internal/model"
)

// newInstrumentRoot rebinds the parallel flag back to the package
// command afterwards, mirroring what newTestRoot does for the root flags.
func newInstrumentRoot(t *testing.T) *cobra.Command {
	t.Helper()

	root := newTestRoot(t, newInstrumentCmd())

	t.Cleanup(func() {
		bindFlagToConfig(instrumentCmd.Flags().Lookup(parallelFlagName), parallelConfigKey)
	})

	return root
}

func TestInstrumentCmd_Defaults(t *testing.T) {
	var gotArgs domain.InstrumentArgs
	swapWorkflow(t, &fakeWorkflow{
		instrumentFn: func(_ context.Context, args domain.InstrumentArgs) (domain.InstrumentSummary, error) {
			gotArgs = args
			return domain.InstrumentSummary{Instrumented: 2}, nil
		},
	})
	displays := &fakeUI{}
	swapUI(t, displays)

	cmd := newInstrumentRoot(t)
	cmd.SetArgs([]string{"instrument", "src"})

	require.NoError(t, cmd.Execute())

	assert.Equal(t, []m.Path{"src"}, gotArgs.Paths)
	assert.True(t, gotArgs.Recursive)
	assert.Equal(t, m.Path(instrumentOutDefault), gotArgs.Out)
	assert.Equal(t, uint(defaultParallel), gotArgs.Threads)
	assert.Equal(t, int64(defaultMaxSourceBytes), gotArgs.MaxSourceBytes)
	assert.Equal(t, 10*time.Second, gotArgs.ParseTimeout)
	assert.True(t, gotArgs.UseCache)

	require.Len(t, displays.summaries, 1)
	assert.Equal(t, 2, displays.summaries[0].Instrumented)
}

func TestInstrumentCmd_FlagsOverrideDefaults(t *testing.T) {
	var gotArgs domain.InstrumentArgs
	swapWorkflow(t, &fakeWorkflow{
		instrumentFn: func(_ context.Context, args domain.InstrumentArgs) (domain.InstrumentSummary, error) {
			gotArgs = args
			return domain.InstrumentSummary{}, nil
		},
	})
	swapUI(t, &fakeUI{})

	cmd := newInstrumentRoot(t)
	cmd.SetArgs([]string{
		"instrument",
		"--out", "build",
		"--parallel", "4",
		"--no-cache",
		"src", "lib",
	})

	require.NoError(t, cmd.Execute())

	assert.Equal(t, []m.Path{"src", "lib"}, gotArgs.Paths)
	assert.Equal(t, m.Path("build"), gotArgs.Out)
	assert.Equal(t, uint(4), gotArgs.Threads)
	assert.False(t, gotArgs.UseCache)
}

func TestInstrumentCmd_ReportsIssues(t *testing.T) {
	swapWorkflow(t, &fakeWorkflow{
		instrumentFn: func(_ context.Context, _ domain.InstrumentArgs) (domain.InstrumentSummary, error) {
			return domain.InstrumentSummary{
				Instrumented: 1,
				Issues: []domain.FileIssue{
					{Path: "broken.lua", Err: errors.New("parse failed")},
				},
			}, nil
		},
	})
	displays := &fakeUI{}
	swapUI(t, displays)

	cmd := newInstrumentRoot(t)
	cmd.SetArgs([]string{"instrument"})

	require.NoError(t, cmd.Execute())
	require.Len(t, displays.summaries, 1)
	require.Len(t, displays.summaries[0].Issues, 1)
	assert.Equal(t, m.Path("broken.lua"), displays.summaries[0].Issues[0].Path)
}

func TestInstrumentCmd_PropagatesWorkflowError(t *testing.T) {
	wantErr := errors.New("output dir not writable")
	swapWorkflow(t, &fakeWorkflow{
		instrumentFn: func(_ context.Context, _ domain.InstrumentArgs) (domain.InstrumentSummary, error) {
			return domain.InstrumentSummary{}, wantErr
		},
	})
	displays := &fakeUI{}
	swapUI(t, displays)

	cmd := newInstrumentRoot(t)
	cmd.SetArgs([]string{"instrument"})

	require.ErrorIs(t, cmd.Execute(), wantErr)
	assert.Empty(t, displays.summaries)
}
