package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"luxcov.dev/pkg/luxcov/internal/controller"
)

var listRecursiveFlag bool

// listCmd represents the list command.
var listCmd = newListCmd()

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [paths...]",
		Short: "List source files with executable-line and function counts",
		Long: `Scan for source files and show what coverage would measure in each:
the executable-line count and the function table size.

` + pathsHelp,
		RunE: func(_ *cobra.Command, args []string) error {
			ctx := context.Background()

			files, err := workflow.Scan(ctx, scanArgsFromFlags(args, listRecursiveFlag))
			if err != nil {
				return err
			}

			summaries := make([]controller.FileSummary, 0, len(files))

			for _, file := range files {
				sf, err := workflow.Analyze(ctx, file)
				if err != nil {
					return err
				}

				summaries = append(summaries, controller.FileSummary{
					Path:       string(file),
					Lines:      sf.MaxLine,
					Executable: len(sf.ExecutableLines),
					Functions:  len(sf.Functions),
				})
			}

			return ui.DisplayFileList(ctx, summaries)
		},
	}

	cmd.Flags().BoolVarP(&listRecursiveFlag, recursiveFlagName, "r", true, "descend into subdirectories")

	return cmd
}

func init() {
	rootCmd.AddCommand(listCmd)
}
