package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"luxcov.dev/pkg/luxcov/internal/domain"
	m "luxcov.dev/pkg/luxcov/internal/model"
)

var instrumentParallelFlag int
var instrumentOutFlag string
var instrumentRecursiveFlag bool

// instrumentCmd represents the instrument command.
var instrumentCmd = newInstrumentCmd()

func newInstrumentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instrument [paths...]",
		Short: "Rewrite sources with coverage tracking calls",
		Long: `Instrument every matching source file and write the generated output
under the --out directory, mirroring the input layout. Generated code
keeps a 1:1 line mapping with the original, so runtime stack traces
still point at real lines. Already-instrumented files are reported as
skipped rather than double-instrumented.

` + pathsHelp,
		RunE: func(_ *cobra.Command, args []string) error {
			ctx := context.Background()

			summary, err := workflow.Instrument(ctx, domain.InstrumentArgs{
				ScanArgs:       scanArgsFromFlags(args, instrumentRecursiveFlag),
				Out:            m.Path(instrumentOutFlag),
				Threads:        uint(instrumentParallelFlag),
				MaxSourceBytes: viper.GetInt64(maxSourceBytesKey),
				ParseTimeout:   time.Duration(viper.GetInt64(parseTimeoutKey)) * time.Second,
				UseCache:       !viper.GetBool(noCacheFlagName),
			})
			if err != nil {
				return err
			}

			return ui.DisplayInstrumentSummary(ctx, summary)
		},
	}

	cmd.Flags().IntVarP(&instrumentParallelFlag, parallelFlagName, "p", viper.GetInt(parallelConfigKey), "number of parallel instrumentation workers")
	bindFlagToConfig(cmd.Flags().Lookup(parallelFlagName), parallelConfigKey)
	cmd.Flags().StringVar(&instrumentOutFlag, outDirFlagName, instrumentOutDefault, "directory for generated sources")
	cmd.Flags().BoolVarP(&instrumentRecursiveFlag, recursiveFlagName, "r", true, "descend into subdirectories")

	return cmd
}

func init() {
	rootCmd.AddCommand(instrumentCmd)
}
