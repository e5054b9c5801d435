package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinc-sim/mgtune/internal/journal"
	"github.com/pinc-sim/mgtune/internal/tuner"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mgtune.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidatePrintsEffectiveConfig(t *testing.T) {
	path := writeConfig(t, `
runner:
  command: ["./mpinc"]
search:
  initial:
    coarse_solve: 16
`)
	out, err := execute("--config", path, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "routine: mgRun")
	assert.Contains(t, out, "coarse_solve: 16")
	assert.Contains(t, out, "time_dataset: time")
	assert.Contains(t, out, "max_tries: 100")
}

func TestValidateRejectsBadConfig(t *testing.T) {
	path := writeConfig(t, `
runner:
  command: []
`)
	_, err := execute("--config", path, "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command")
}

func TestInspectMissingFile(t *testing.T) {
	_, err := execute("inspect", filepath.Join(t.TempDir(), "missing.h5"))
	require.Error(t, err)
}

func TestInspectRequiresPath(t *testing.T) {
	_, err := execute("inspect")
	require.Error(t, err)
}

func TestRunRecordsFailedSession(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "journal.db")
	path := writeConfig(t, fmt.Sprintf(`
log_level: error
runner:
  command: ["sh", "-c", "exit 3", "mpinc"]
  work_dir: %q
search:
  max_tries: 3
  outer_iterations: 1
journal:
  path: %q
monitor:
  http_addr: "127.0.0.1:0"
  grpc_addr: "127.0.0.1:0"
`, dir, dbPath))

	out, err := execute("--config", path, "run")
	require.Error(t, err)
	var rf *tuner.RunnerFailure
	require.True(t, errors.As(err, &rf), "got %v", err)
	assert.Equal(t, 0, rf.RunIndex)
	assert.Contains(t, out, "No trial produced a measurement.")

	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer j.Close()
	sessions, err := j.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "failed", sessions[0].Status)
	assert.NotEmpty(t, sessions[0].Error)

	out, err = execute("--config", path, "history")
	require.NoError(t, err)
	assert.Contains(t, out, sessions[0].ID)
	assert.Contains(t, out, "failed")
}

func TestRunMissingConfig(t *testing.T) {
	_, err := execute("--config", filepath.Join(t.TempDir(), "nope.yaml"), "run")
	require.Error(t, err)
}

func TestHistoryWithoutJournal(t *testing.T) {
	path := writeConfig(t, `
runner:
  command: ["./mpinc"]
`)
	_, err := execute("--config", path, "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no journal")
}
