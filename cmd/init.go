package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// initCmd represents the init command.
var initCmd = newInitCmd()

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate a default luxcov.yaml configuration file",
		Long: `Create a luxcov.yaml in the current working directory populated with the
current CLI defaults so it can be edited manually.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			targetPath := filepath.Join(configFolderPath, configFileName)

			if _, err := os.Stat(targetPath); err == nil {
				return fmt.Errorf("config file %s already exists", targetPath)
			}

			data, err := yaml.Marshal(defaultConfigDocument())
			if err != nil {
				return fmt.Errorf("failed to render config: %w", err)
			}

			if err := os.WriteFile(targetPath, data, 0o644); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}

			return nil
		},
	}
}

// defaultConfigDocument mirrors the viper defaults registered in config.go.
func defaultConfigDocument() map[string]any {
	return map[string]any{
		configVersionKey: currentConfigVersion,
		outputFlagName:   defaultSnapshotDir,
		noCacheFlagName:  defaultNoCache,
		"run": map[string]any{
			"parallel": defaultParallel,
		},
		"paths": map[string]any{
			"exclude": []string{},
		},
		"cache": map[string]any{
			"dir": defaultCacheDir,
		},
		"limits": map[string]any{
			"max_source_bytes": defaultMaxSourceBytes,
			"parse_timeout":    int(defaultParseTimeout.Seconds()),
		},
		"instrument": map[string]any{
			"count_control_keywords": false,
		},
		"assert": map[string]any{
			"cover_failed": false,
		},
		"log": map[string]any{
			"filename":    defaultLogFilename,
			"level":       defaultLogLevel,
			"verbose":     defaultLogVerbose,
			"max_size":    defaultLogMaxSize,
			"max_backups": defaultLogMaxBackups,
			"max_age":     defaultLogMaxAge,
			"compress":    defaultLogCompress,
		},
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
}
