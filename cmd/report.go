package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"luxcov.dev/pkg/luxcov/internal/domain"
	m "luxcov.dev/pkg/luxcov/internal/model"
)

var reportThresholdFlag float64

// reportCmd represents the report command.
var reportCmd = newReportCmd()

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show a stored coverage snapshot, optionally gating on a threshold",
		Long: `Render the coverage snapshot from the snapshot directory. With
--threshold set, exit non-zero when the assertion-covered percentage is
below the given value, which makes the command usable as a CI gate.
Untracked files are listed separately: a file that loaded without
instrumentation reports no lines at all, which is not the same as a
tracked file measuring 0%.`,
		Args:          cobra.ExactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			dir := m.Path(viper.GetString(outputFlagName))

			snap, err := workflow.LoadSnapshot(dir)
			if err != nil {
				return err
			}

			if err := ui.DisplaySnapshot(ctx, snap); err != nil {
				return err
			}

			if !cmd.Flags().Changed(thresholdFlagName) {
				return nil
			}

			passed := domain.MeetsThreshold(snap, reportThresholdFlag)
			ui.DisplayThresholdResult(ctx, snap, reportThresholdFlag, passed)

			if !passed {
				return fmt.Errorf("coverage %.1f%% below threshold %.1f%%",
					snap.Summary.CoveredPercent, reportThresholdFlag)
			}

			return nil
		},
	}

	cmd.Flags().Float64VarP(&reportThresholdFlag, thresholdFlagName, "t", 0, "minimum assertion-covered percentage (0-100)")

	return cmd
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
