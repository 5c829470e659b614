package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"luxcov.dev/pkg/luxcov/internal/controller"
	"luxcov.dev/pkg/luxcov/internal/domain"
	m "luxcov.dev/pkg/luxcov/internal/model"
)

// fakeWorkflow implements domain.Workflow with per-call hooks so command
// tests can script the use-case layer.
type fakeWorkflow struct {
	scanFn        func(ctx context.Context, args domain.ScanArgs) ([]m.Path, error)
	analyzeFn     func(ctx context.Context, path m.Path) (*m.SourceFile, error)
	instrumentFn  func(ctx context.Context, args domain.InstrumentArgs) (domain.InstrumentSummary, error)
	mergeShardsFn func(ctx context.Context, dir m.Path) (m.Snapshot, error)
	loadFn        func(dir m.Path) (m.Snapshot, error)
}

func (f *fakeWorkflow) Scan(ctx context.Context, args domain.ScanArgs) ([]m.Path, error) {
	if f.scanFn == nil {
		return nil, nil
	}

	return f.scanFn(ctx, args)
}

func (f *fakeWorkflow) Analyze(ctx context.Context, path m.Path) (*m.SourceFile, error) {
	if f.analyzeFn == nil {
		return &m.SourceFile{Path: path}, nil
	}

	return f.analyzeFn(ctx, path)
}

func (f *fakeWorkflow) Instrument(ctx context.Context, args domain.InstrumentArgs) (domain.InstrumentSummary, error) {
	if f.instrumentFn == nil {
		return domain.InstrumentSummary{}, nil
	}

	return f.instrumentFn(ctx, args)
}

func (f *fakeWorkflow) MergeShards(ctx context.Context, dir m.Path) (m.Snapshot, error) {
	if f.mergeShardsFn == nil {
		return m.Snapshot{}, nil
	}

	return f.mergeShardsFn(ctx, dir)
}

func (f *fakeWorkflow) LoadSnapshot(dir m.Path) (m.Snapshot, error) {
	if f.loadFn == nil {
		return m.Snapshot{}, nil
	}

	return f.loadFn(dir)
}

type thresholdCall struct {
	threshold float64
	passed    bool
}

// fakeUI records every display call.
type fakeUI struct {
	fileLists  [][]controller.FileSummary
	summaries  []domain.InstrumentSummary
	snapshots  []m.Snapshot
	thresholds []thresholdCall
}

func (f *fakeUI) DisplayFileList(_ context.Context, files []controller.FileSummary) error {
	f.fileLists = append(f.fileLists, files)
	return nil
}

func (f *fakeUI) DisplayInstrumentSummary(_ context.Context, summary domain.InstrumentSummary) error {
	f.summaries = append(f.summaries, summary)
	return nil
}

func (f *fakeUI) DisplaySnapshot(_ context.Context, snap m.Snapshot) error {
	f.snapshots = append(f.snapshots, snap)
	return nil
}

func (f *fakeUI) DisplayThresholdResult(_ context.Context, _ m.Snapshot, threshold float64, passed bool) {
	f.thresholds = append(f.thresholds, thresholdCall{threshold: threshold, passed: passed})
}

func swapWorkflow(t *testing.T, fake domain.Workflow) {
	t.Helper()

	original := workflow
	workflow = fake
	t.Cleanup(func() { workflow = original })
}

func swapUI(t *testing.T, fake controller.UI) {
	t.Helper()

	original := ui
	ui = fake
	t.Cleanup(func() { ui = original })
}

// newTestRoot builds a fresh root command with the persistent flags
// registered and the given subcommand attached. Flag-to-config bindings
// are restored to the package root command afterwards so tests do not
// leak parsed flag values into each other through viper.
func newTestRoot(t *testing.T, sub *cobra.Command) *cobra.Command {
	t.Helper()

	cmd := baseRootCmd()
	configureRootFlags(cmd)
	cmd.AddCommand(sub)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	t.Cleanup(func() {
		bindFlagToConfig(rootCmd.PersistentFlags().Lookup(outputFlagName), outputFlagName)
		bindFlagToConfig(rootCmd.PersistentFlags().Lookup(noCacheFlagName), noCacheFlagName)
		bindFlagToConfig(rootCmd.PersistentFlags().Lookup(excludeFlagName), excludeConfigKey)
		bindFlagToConfig(rootCmd.PersistentFlags().Lookup("verbose"), logVerboseKey)
	})

	return cmd
}
