// Package cmd provides the root command and CLI setup for luxcov.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"luxcov.dev/pkg/luxcov/internal/adapter"
	"luxcov.dev/pkg/luxcov/internal/controller"
	"luxcov.dev/pkg/luxcov/internal/domain"
	m "luxcov.dev/pkg/luxcov/internal/model"
)

var fsAdapter adapter.SourceFSAdapter
var snapshotStore adapter.SnapshotStore
var moduleCache *adapter.ModuleCacheStore
var instrumenter *domain.Instrumenter
var workflow domain.Workflow
var ui controller.UI

// snapshotDirFlag is a root-level flag shared by commands that read or
// write coverage snapshots.
var snapshotDirFlag string

// noCacheFlag disables the instrumented-module disk cache when set.
var noCacheFlag bool

// excludePatterns is a root-level flag that filters files for applicable commands.
var excludePatterns []string

// verboseFlag raises the log level to debug.
var verboseFlag bool

func init() {
	configureRootFlags(rootCmd)

	// Initialize shared dependencies.
	ui = controller.NewSimpleUI(rootCmd)
	fsAdapter = adapter.NewLocalSourceFSAdapter()
	snapshotStore = adapter.NewSnapshotStore()
	moduleCache = adapter.NewModuleCacheStore(viper.GetString(cacheDirKey))
	instrumenter = domain.NewInstrumenter(domain.InstrumentConfig{
		Policy: domain.AnalysisPolicy{
			CountControlKeywords: viper.GetBool(countControlKeywordsKey),
		},
	})
	workflow = domain.NewWorkflow(fsAdapter, snapshotStore, moduleCache, instrumenter)
}

const pathsHelp = `Paths may be directories (scanned for .lua files) or single files:
  - luxcov list src/            scan a directory
  - luxcov list src/ vendor/    scan multiple directories
  - luxcov list src/init.lua    a single file`

const rootLongDescription = `Luxcov measures assertion-aware coverage for Lua test suites. Beyond
plain line execution it distinguishes lines that were merely run from
lines whose behavior an assertion actually verified, and gates CI on
the stricter number.

` + pathsHelp

var rootCmd = baseRootCmd()

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "luxcov",
		Short: "Assertion-aware Lua coverage tool",
		Long:  rootLongDescription,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger("", viper.GetBool(logVerboseKey))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&snapshotDirFlag, outputFlagName, "o",
			viper.GetString(outputFlagName),
			"directory for coverage snapshots",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outputFlagName), outputFlagName)

	cmd.PersistentFlags().BoolVar(&noCacheFlag, noCacheFlagName, viper.GetBool(noCacheFlagName), "disable the instrumented-module disk cache")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(noCacheFlagName), noCacheFlagName)

	cmd.PersistentFlags().StringArrayVarP(&excludePatterns, excludeFlagName, "x", viper.GetStringSlice(excludeConfigKey), "exclude files matching regex (can be repeated)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(excludeFlagName), excludeConfigKey)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", viper.GetBool(logVerboseKey), "log at debug level")
	bindFlagToConfig(cmd.PersistentFlags().Lookup("verbose"), logVerboseKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func parsePaths(args []string) []m.Path {
	paths := make([]m.Path, 0, len(args))
	for _, arg := range args {
		paths = append(paths, m.Path(arg))
	}

	return paths
}

func scanArgsFromFlags(args []string, recursive bool) domain.ScanArgs {
	paths := parsePaths(args)
	if len(paths) == 0 {
		paths = []m.Path{"."}
	}

	return domain.ScanArgs{
		Paths:     paths,
		Exclude:   viper.GetStringSlice(excludeConfigKey),
		Recursive: recursive,
	}
}
