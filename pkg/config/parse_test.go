package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigYAMLDefaults(t *testing.T) {
	cfg, err := ParseConfigYAMLString(`
runner:
  command: ["./mpinc"]
`)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "mgRun", cfg.Runner.Routine)
	assert.Equal(t, 1, cfg.Runner.MGCycles)
	assert.Equal(t, "multigrid:nCoarseSolve", cfg.Runner.Keys.CoarseSolve)
	assert.Equal(t, "test_timer.xy.h5", cfg.Results.Path)
	assert.Equal(t, 2, cfg.Results.Columns)
	assert.Equal(t, 1, cfg.Results.ValueColumn)
	assert.Equal(t, InitialSettings{PreSmooth: 10, PostSmooth: 10, CoarseSolve: 10, Levels: 2}, cfg.Search.Initial)
	assert.Equal(t, 100, cfg.Search.MaxTries)
	assert.Equal(t, 2, cfg.Search.OuterIterations)
	assert.Nil(t, cfg.Retry)
	assert.Nil(t, cfg.Journal)
	assert.Nil(t, cfg.Monitor)
}

func TestParseConfigYAMLCleanDefaults(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		wantClean bool
		wantGlobs []string
	}{
		{"unset cleans h5 output", "runner: {command: [./mpinc]}\n", true, []string{"*.h5"}},
		{"explicit true", "runner: {command: [./mpinc], clean: true}\n", true, []string{"*.h5"}},
		{"custom globs kept", "runner: {command: [./mpinc], clean_globs: [\"*.xy.h5\"]}\n", true, []string{"*.xy.h5"}},
		{"disabled", "runner: {command: [./mpinc], clean: false}\n", false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfigYAMLString(tt.yaml)
			require.NoError(t, err)
			assert.Equal(t, tt.wantClean, cfg.Runner.ShouldClean())
			assert.Equal(t, tt.wantGlobs, cfg.Runner.CleanGlobs)
		})
	}
}

func TestShouldCleanZeroValue(t *testing.T) {
	assert.True(t, (&Runner{}).ShouldClean())
}

func TestParseConfigYAMLRetryJitter(t *testing.T) {
	cfg, err := ParseConfigYAMLString("runner: {command: [./mpinc]}\nretry: {max_retries: 2, jitter: true}\n")
	require.NoError(t, err)
	require.NotNil(t, cfg.Retry)
	assert.True(t, cfg.Retry.Jitter)
	assert.Equal(t, "exponential", cfg.Retry.Backoff)
}

func TestParseConfigYAMLValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing command",
			yaml:    "log_level: info\n",
			wantErr: "command must name the PINC executable",
		},
		{
			name:    "bad log level",
			yaml:    "log_level: loud\nrunner: {command: [./mpinc]}\n",
			wantErr: "invalid log_level",
		},
		{
			name:    "bad log format",
			yaml:    "log_format: xml\nrunner: {command: [./mpinc]}\n",
			wantErr: "invalid log_format",
		},
		{
			name:    "bad timeout",
			yaml:    "runner: {command: [./mpinc], timeout: soon}\n",
			wantErr: "invalid timeout",
		},
		{
			name:    "value column out of range",
			yaml:    "runner: {command: [./mpinc]}\nresults: {columns: 2, value_column: 2}\n",
			wantErr: "value_column must be in",
		},
		{
			name:    "negative coarse",
			yaml:    "runner: {command: [./mpinc]}\nsearch: {initial: {coarse_solve: -1}}\n",
			wantErr: "coarse_solve must be positive",
		},
		{
			name:    "negative max tries",
			yaml:    "runner: {command: [./mpinc]}\nsearch: {max_tries: -5}\n",
			wantErr: "max_tries must be positive",
		},
		{
			name:    "bad backoff",
			yaml:    "runner: {command: [./mpinc]}\nretry: {max_retries: 2, backoff: random}\n",
			wantErr: "invalid backoff type",
		},
		{
			name:    "negative retries",
			yaml:    "runner: {command: [./mpinc]}\nretry: {max_retries: -1}\n",
			wantErr: "max_retries cannot be negative",
		},
		{
			name:    "bad glob",
			yaml:    "runner: {command: [./mpinc], clean_globs: [\"[\"]}\n",
			wantErr: "invalid clean glob",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfigYAMLString(tt.yaml)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMarshalConfigYAMLRoundTrip(t *testing.T) {
	cfg, err := ParseConfigYAMLString("runner: {command: [./mpinc], round_coarse: true}\n")
	require.NoError(t, err)
	out, err := MarshalConfigYAML(cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "round_coarse: true")
	assert.Contains(t, out, "nCoarseSolve")
	assert.Contains(t, out, "clean: true")
}
