package cmd

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigConstants(t *testing.T) {
	assert.Equal(t, "luxcov", configBaseName)
	assert.Equal(t, "luxcov.yaml", configFileName)
	assert.Equal(t, ".", configFolderPath)
	assert.Equal(t, "output", outputFlagName)
	assert.Equal(t, "no-cache", noCacheFlagName)
	assert.Equal(t, "exclude", excludeFlagName)
	assert.Equal(t, "parallel", parallelFlagName)
	assert.Equal(t, "threshold", thresholdFlagName)
	assert.Equal(t, "run.parallel", parallelConfigKey)
	assert.Equal(t, "paths.exclude", excludeConfigKey)
	assert.Equal(t, ".luxcov", defaultSnapshotDir)
	assert.Equal(t, ".luxcov-cache", defaultCacheDir)
	assert.Equal(t, ".luxcov-build", instrumentOutDefault)
	assert.Equal(t, false, defaultNoCache)
	assert.Equal(t, 1, defaultParallel)
	assert.Equal(t, 1<<20, defaultMaxSourceBytes)
	assert.Equal(t, 10*time.Second, defaultParseTimeout)
	assert.Equal(t, "LUXCOV", envPrefix)
}

func TestConfigVersionConstants(t *testing.T) {
	assert.Equal(t, "version", configVersionKey)
	assert.Equal(t, 1, currentConfigVersion)
}

func TestParseSlogLevel(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  slog.Level
	}{
		{"empty uses default", "", slog.LevelWarn},
		{"debug", "debug", slog.LevelDebug},
		{"info", "info", slog.LevelInfo},
		{"warn", "warn", slog.LevelWarn},
		{"warning alias", "warning", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"mixed case", "DeBuG", slog.LevelDebug},
		{"surrounding space", "  info  ", slog.LevelInfo},
		{"numeric", "-4", slog.LevelDebug},
		{"garbage uses default", "loud", slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseSlogLevel(tt.value, slog.LevelWarn))
		})
	}
}
