package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("../../config/mgtune.yaml")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"mpirun", "-np", "4", "./mpinc"}, cfg.Runner.Command)
	assert.Equal(t, "mgRun", cfg.Runner.Routine)
	assert.True(t, cfg.Runner.ShouldClean())

	timeout, err := cfg.Runner.GetTimeout()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, timeout)

	assert.Equal(t, 10.0, cfg.Search.Initial.CoarseSolve)
	assert.Equal(t, 2, cfg.Search.Initial.Levels)
	assert.Equal(t, 100, cfg.Search.MaxTries)
	assert.Equal(t, 2, cfg.Search.OuterIterations)

	require.NotNil(t, cfg.Retry)
	assert.Equal(t, "exponential", cfg.Retry.Backoff)
	require.NotNil(t, cfg.Journal)
	assert.Equal(t, "mgtune.db", cfg.Journal.Path)
	require.NotNil(t, cfg.Monitor)
	assert.Equal(t, ":50051", cfg.Monitor.GRPCAddr)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("nonexistent.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("runner: [unclosed"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestResultsPath(t *testing.T) {
	tests := []struct {
		name    string
		workDir string
		path    string
		want    string
	}{
		{"relative joined", "/data/run", "timer.h5", filepath.Join("/data/run", "timer.h5")},
		{"absolute kept", "/data/run", "/tmp/timer.h5", "/tmp/timer.h5"},
		{"no work dir", "", "timer.h5", "timer.h5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Runner:  Runner{WorkDir: tt.workDir},
				Results: Results{Path: tt.path},
			}
			assert.Equal(t, tt.want, cfg.ResultsPath())
		})
	}
}

func TestDefaultResults(t *testing.T) {
	res := DefaultResults()
	assert.Equal(t, "test_timer.xy.h5", res.Path)
	assert.Equal(t, "time", res.TimeDataset)
	assert.Equal(t, "cycles", res.CyclesDataset)
	assert.Equal(t, 2, res.Columns, "two columns per row")
	assert.Equal(t, 1, res.ValueColumn, "value in column 1")
}
