package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"luxcov.dev/pkg/luxcov/internal/controller"
	m "luxcov.dev/pkg/luxcov/internal/model"
)

// viewCmd represents the view command.
var viewCmd = newViewCmd()

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Browse a coverage snapshot interactively",
		Long: `Open the stored coverage snapshot in an interactive viewer with a
per-file three-state breakdown. Short snapshots print directly.`,
		Args: cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir := m.Path(viper.GetString(outputFlagName))

			snap, err := workflow.LoadSnapshot(dir)
			if err != nil {
				return err
			}

			tui := controller.NewTUI(cmd.OutOrStdout())

			return tui.ViewSnapshot(snap)
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(viewCmd)
}
