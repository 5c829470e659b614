package controller

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"luxcov.dev/pkg/luxcov/internal/domain"
	m "luxcov.dev/pkg/luxcov/internal/model"
)

// SimpleUI implements UI using cobra Command's output stream.
type SimpleUI struct {
	cmd *cobra.Command
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// DisplayFileList prints the scanned files with their analysis counts.
func (s *SimpleUI) DisplayFileList(ctx context.Context, files []FileSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Path", "Lines", "Executable", "Functions"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER,
	})

	totalExecutable := 0
	totalFunctions := 0

	for _, file := range files {
		table.Append([]string{
			file.Path,
			fmt.Sprintf("%d", file.Lines),
			fmt.Sprintf("%d", file.Executable),
			fmt.Sprintf("%d", file.Functions),
		})

		totalExecutable += file.Executable
		totalFunctions += file.Functions
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Files %d", len(files)),
		"",
		fmt.Sprintf("%d", totalExecutable),
		fmt.Sprintf("%d", totalFunctions),
	})

	table.Render()
	s.printf("\n%s", buf.String())

	return nil
}

// DisplayInstrumentSummary prints the batch instrumentation outcome,
// including every per-file failure.
func (s *SimpleUI) DisplayInstrumentSummary(ctx context.Context, summary domain.InstrumentSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("Instrumented %d file(s)\n", summary.Instrumented)

	if len(summary.Issues) == 0 {
		return nil
	}

	warn := color.New(color.FgYellow)
	s.printf("%s\n", warn.Sprintf("Skipped %d file(s):", len(summary.Issues)))

	for _, issue := range summary.Issues {
		s.printf("  %s: %v\n", issue.Path, issue.Err)
	}

	return nil
}

// DisplaySnapshot renders the per-file coverage table with three-state
// counts and the aggregate summary.
func (s *SimpleUI) DisplaySnapshot(ctx context.Context, snap m.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Path", "Executable", "Executed", "Covered", "Coverage"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_RIGHT,
	})

	for _, path := range sortedPaths(snap) {
		fc := snap.Files[path]
		if fc.Untracked {
			table.Append([]string{string(path), "-", "-", "-", untrackedLabel(fc)})
			continue
		}

		executable, executed, covered := countLines(fc)
		table.Append([]string{
			string(path),
			fmt.Sprintf("%d", executable),
			fmt.Sprintf("%d", executed),
			fmt.Sprintf("%d", covered),
			formatPercent(covered, executable),
		})
	}

	sum := snap.Summary
	table.SetFooter([]string{
		fmt.Sprintf("Total Files %d", len(snap.Files)),
		fmt.Sprintf("%d", sum.TotalLines),
		fmt.Sprintf("%d", sum.ExecutedLines),
		fmt.Sprintf("%d", sum.CoveredLines),
		fmt.Sprintf("%.1f%%", sum.CoveredPercent),
	})

	table.Render()
	s.printf("\n%s", buf.String())

	s.printf("Functions executed: %d/%d\n", sum.ExecutedFuncs, sum.TotalFuncs)

	if sum.UntrackedFiles > 0 {
		warn := color.New(color.FgYellow)
		s.printf("%s\n", warn.Sprintf("Untracked files: %d (loaded without instrumentation)", sum.UntrackedFiles))
	}

	return nil
}

// DisplayThresholdResult prints the CI gate verdict.
func (s *SimpleUI) DisplayThresholdResult(ctx context.Context, snap m.Snapshot, threshold float64, passed bool) {
	if err := ctx.Err(); err != nil {
		return
	}

	if passed {
		ok := color.New(color.FgGreen, color.Bold)
		s.printf("%s\n", ok.Sprintf("PASS: %.1f%% covered (threshold %.1f%%)", snap.Summary.CoveredPercent, threshold))

		return
	}

	fail := color.New(color.FgRed, color.Bold)
	s.printf("%s\n", fail.Sprintf("FAIL: %.1f%% covered (threshold %.1f%%)", snap.Summary.CoveredPercent, threshold))
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}

func sortedPaths(snap m.Snapshot) []m.Path {
	paths := make([]m.Path, 0, len(snap.Files))
	for path := range snap.Files {
		paths = append(paths, path)
	}

	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })

	return paths
}

func countLines(fc *m.FileCoverage) (executable, executed, covered int) {
	for _, lr := range fc.Lines {
		executable++

		if lr.ExecutionCount > 0 {
			executed++
		}

		if lr.CoveredByAssertion {
			covered++
		}
	}

	return executable, executed, covered
}

func formatPercent(covered, executable int) string {
	if executable == 0 {
		return "0.0%"
	}

	return fmt.Sprintf("%.1f%%", 100.0*float64(covered)/float64(executable))
}

func untrackedLabel(fc *m.FileCoverage) string {
	if fc.Reason != "" {
		return "untracked: " + fc.Reason
	}

	return "untracked"
}
