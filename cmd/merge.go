package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	m "luxcov.dev/pkg/luxcov/internal/model"
)

// mergeCmd represents the merge command.
var mergeCmd = newMergeCmd()

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge sharded snapshots into a single dataset",
		Long: `Merge coverage snapshots from shard_* subdirectories of the snapshot
directory into one dataset. Execution counts sum and covered flags OR,
so the result is independent of shard order.`,
		Args: cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			dir := m.Path(viper.GetString(outputFlagName))

			merged, err := workflow.MergeShards(ctx, dir)
			if err != nil {
				return err
			}

			return ui.DisplaySnapshot(ctx, merged)
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
