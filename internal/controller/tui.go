package controller

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	m "luxcov.dev/pkg/luxcov/internal/model"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).Padding(0, 1)
	coveredStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	executedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	uncoveredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	untrackedStyle = lipgloss.NewStyle().Faint(true)
	helpStyle      = lipgloss.NewStyle().Faint(true)
)

// shortOutputLimit is the line count below which the TUI just prints
// instead of entering the interactive viewer.
const shortOutputLimit = 25

// TUI implements an interactive snapshot viewer using Bubble Tea.
type TUI struct {
	output io.Writer
}

// NewTUI creates a new TUI.
func NewTUI(output io.Writer) *TUI {
	return &TUI{output: output}
}

// ViewSnapshot renders the snapshot interactively: one section per
// file with a three-state breakdown bar and the worst uncovered lines.
func (t *TUI) ViewSnapshot(snap m.Snapshot) error {
	lines := buildSnapshotLines(snap)

	if len(lines) <= shortOutputLimit {
		_, err := fmt.Fprintln(t.output, strings.Join(lines, "\n"))
		return err
	}

	model := newSnapshotModel(lines, snap.Summary)

	program := tea.NewProgram(model, tea.WithOutput(t.output), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return err
	}

	return nil
}

func buildSnapshotLines(snap m.Snapshot) []string {
	paths := make([]m.Path, 0, len(snap.Files))
	for path := range snap.Files {
		paths = append(paths, path)
	}

	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })

	var lines []string

	for _, path := range paths {
		fc := snap.Files[path]

		if fc.Untracked {
			lines = append(lines, untrackedStyle.Render(fmt.Sprintf("%s  untracked (%s)", path, fc.Reason)))
			lines = append(lines, "")

			continue
		}

		executable, executed, covered := countLines(fc)
		lines = append(lines, fmt.Sprintf("%s  %s", path, formatPercent(covered, executable)))
		lines = append(lines, "  "+coverageBar(executable, executed, covered))

		for _, uncovered := range worstLines(fc) {
			lines = append(lines, "  "+uncovered)
		}

		lines = append(lines, "")
	}

	return lines
}

// coverageBar renders a fixed-width three-state bar: covered, then
// executed-only, then never executed.
func coverageBar(executable, executed, covered int) string {
	const width = 40

	if executable == 0 {
		return ""
	}

	coveredCells := width * covered / executable
	executedCells := width*executed/executable - coveredCells

	if executedCells < 0 {
		executedCells = 0
	}

	rest := width - coveredCells - executedCells

	var b strings.Builder
	b.WriteString(coveredStyle.Render(strings.Repeat("█", coveredCells)))
	b.WriteString(executedStyle.Render(strings.Repeat("█", executedCells)))
	b.WriteString(uncoveredStyle.Render(strings.Repeat("░", rest)))

	return b.String()
}

// worstLines lists lines that executed without assertion coverage and
// lines that never ran, capped so one file cannot flood the view.
func worstLines(fc *m.FileCoverage) []string {
	const maxShown = 5

	nums := make([]int, 0, len(fc.Lines))
	for line := range fc.Lines {
		nums = append(nums, line)
	}

	sort.Ints(nums)

	var out []string

	for _, line := range nums {
		if len(out) >= maxShown {
			out = append(out, untrackedStyle.Render("..."))
			break
		}

		lr := fc.Lines[line]
		switch lr.State() {
		case m.LineNotCovered:
			out = append(out, uncoveredStyle.Render(fmt.Sprintf("line %d: never executed", line)))
		case m.LineExecuted:
			out = append(out, executedStyle.Render(fmt.Sprintf("line %d: executed, no assertion", line)))
		case m.LineCovered:
		}
	}

	return out
}

// snapshotModel is the Bubble Tea model wrapping a viewport over the
// rendered snapshot.
type snapshotModel struct {
	viewport viewport.Model
	lines    []string
	summary  m.Summary
	ready    bool
}

func newSnapshotModel(lines []string, summary m.Summary) snapshotModel {
	return snapshotModel{lines: lines, summary: summary}
}

func (sm snapshotModel) Init() tea.Cmd {
	return nil
}

func (sm snapshotModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := lipgloss.Height(sm.headerView())
		footerHeight := lipgloss.Height(sm.footerView())

		if !sm.ready {
			sm.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			sm.viewport.SetContent(strings.Join(sm.lines, "\n"))
			sm.ready = true
		} else {
			sm.viewport.Width = msg.Width
			sm.viewport.Height = msg.Height - headerHeight - footerHeight
		}

		return sm, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return sm, tea.Quit
		}
	}

	var cmd tea.Cmd
	sm.viewport, cmd = sm.viewport.Update(msg)

	return sm, cmd
}

func (sm snapshotModel) View() string {
	if !sm.ready {
		return "loading..."
	}

	return sm.headerView() + "\n" + sm.viewport.View() + "\n" + sm.footerView()
}

func (sm snapshotModel) headerView() string {
	title := titleStyle.Render(fmt.Sprintf(
		"luxcov  %.1f%% covered | %d/%d lines asserted | %d/%d executed",
		sm.summary.CoveredPercent,
		sm.summary.CoveredLines, sm.summary.TotalLines,
		sm.summary.ExecutedLines, sm.summary.TotalLines,
	))

	return title
}

func (sm snapshotModel) footerView() string {
	return helpStyle.Render("  ↑/k: up | ↓/j: down | pgup/pgdn | q: quit")
}
