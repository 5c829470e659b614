// Package controller provides output adapters for displaying coverage
// results.
package controller

import (
	"context"

	"luxcov.dev/pkg/luxcov/internal/domain"
	m "luxcov.dev/pkg/luxcov/internal/model"
)

// FileSummary is one row of the `list` output.
type FileSummary struct {
	Path       string
	Lines      int
	Executable int
	Functions  int
}

// UI defines the interface for displaying scan and coverage results.
// Implementations can use different output methods (simple text, TUI, etc).
type UI interface {
	DisplayFileList(ctx context.Context, files []FileSummary) error
	DisplayInstrumentSummary(ctx context.Context, summary domain.InstrumentSummary) error
	DisplaySnapshot(ctx context.Context, snap m.Snapshot) error
	DisplayThresholdResult(ctx context.Context, snap m.Snapshot, threshold float64, passed bool)
}
