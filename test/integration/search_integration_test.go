//go:build integration
// +build integration

package integration_test

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinc-sim/mgtune/internal/journal"
	"github.com/pinc-sim/mgtune/internal/monitor"
	"github.com/pinc-sim/mgtune/internal/runner"
	"github.com/pinc-sim/mgtune/internal/tuner"
)

// bowlSolver stands in for PINC: its solve time has a single minimum in
// coarse steps (at 40) and grows with distance from 3 levels.
type bowlSolver struct {
	mu    sync.Mutex
	times map[int]float64
}

func newBowlSolver() *bowlSolver {
	return &bowlSolver{times: map[int]float64{}}
}

func (b *bowlSolver) Run(_ context.Context, runIndex int, s tuner.Settings) error {
	d := math.Log2(s.CoarseSolve / 40)
	t := 1e6 + 1e5*d*d + 2e5*math.Abs(float64(s.Levels-3))
	b.mu.Lock()
	b.times[runIndex] = t
	b.mu.Unlock()
	return nil
}

func (b *bowlSolver) Read(_ context.Context, runIndex int) (tuner.Measurement, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return tuner.Measurement{Time: b.times[runIndex], Cycles: 20}, nil
}

var initial = tuner.Settings{PreSmooth: 10, PostSmooth: 10, CoarseSolve: 10, Levels: 2}

// TestIntegration_SearchFeedsMonitorAndJournal runs a full search and checks
// the HTTP surface and the journal agree with the report.
func TestIntegration_SearchFeedsMonitorAndJournal(t *testing.T) {
	ctx := context.Background()
	j, err := journal.Open(filepath.Join(t.TempDir(), "mgtune.db"))
	require.NoError(t, err)
	defer j.Close()

	metrics := monitor.NewMetrics()
	store := monitor.NewSessionStore(initial, metrics)
	require.NoError(t, j.StartSession(ctx, store.ID(), initial))

	solver := newBowlSolver()
	tn := tuner.NewTuner(runner.NewRetryRunner(solver, 1, nil), solver, 20, 3).
		WithObserver(store).
		WithObserver(j.Observer(store.ID()))

	store.Start()
	report, err := tn.Search(ctx, initial)
	store.Finish(err)
	require.NoError(t, err)
	require.NoError(t, j.FinishSession(ctx, store.ID(), nil))

	best, ok := report.Best.Settings()
	require.True(t, ok, "expected a best configuration")
	assert.Equal(t, 3, best.Levels)
	assert.Equal(t, 40.0, best.CoarseSolve)
	for _, e := range report.Trials {
		assert.GreaterOrEqual(t, e.Measurement.Time, report.Best.Time(), "run %d beats reported best", e.RunIndex)
	}

	srv := httptest.NewServer(monitor.NewHTTPServer(store, metrics).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/best")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got monitor.BestTrial
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, report.Best.RunIndex(), got.RunIndex)

	trials, err := j.Trials(ctx, store.ID())
	require.NoError(t, err)
	assert.Len(t, trials, len(report.Trials))
	jbest, err := j.Best(ctx, store.ID())
	require.NoError(t, err)
	assert.Equal(t, report.Best.RunIndex(), jbest.RunIndex)

	sess, err := j.Session(ctx, store.ID())
	require.NoError(t, err)
	assert.Equal(t, "completed", sess.Status)

	snap := store.Snapshot()
	assert.Equal(t, monitor.SessionCompleted, snap.Status)
	assert.Equal(t, len(report.Trials), snap.TrialRuns)
}
