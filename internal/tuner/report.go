package tuner

import (
	"fmt"
	"io"
	"strings"

	"github.com/pinc-sim/mgtune/pkg/utils"
)

// Report is the outcome of a search
type Report struct {
	Initial Settings       `json:"initial"`
	Best    Best           `json:"-"`
	Trials  []TrialEvent   `json:"trials"`
	Outer   []OuterSummary `json:"outer"`
}

// String renders the proposed run with PINC's ini key names
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nBest runtime \t= %g ns\n", r.Best.Time())

	s, ok := r.Best.Settings()
	if !ok {
		b.WriteString("\nNo trial produced a measurement.\n")
		return b.String()
	}
	m, _ := r.Best.Measurement()

	b.WriteString("\nProposed run:\n")
	fmt.Fprintf(&b, "mgCycles \t= %d\n", m.Cycles)
	fmt.Fprintf(&b, "mgLevels \t= %d\n", s.Levels)
	fmt.Fprintf(&b, "nPreSmooth \t= %d\n", s.PreSmooth)
	fmt.Fprintf(&b, "nPostSmooth \t= %d\n", s.PostSmooth)
	fmt.Fprintf(&b, "nCoarseSolve \t= %g\n", s.CoarseSolve)
	fmt.Fprintf(&b, "\n%d trials, best from run %d\n", len(r.Trials), r.Best.RunIndex())
	return b.String()
}

// WriteTo writes the human-readable summary to w
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, r.String())
	return int64(n), err
}

// LevelStats summarizes the solver times measured at one level count
type LevelStats struct {
	Levels int           `json:"levels"`
	Time   utils.Summary `json:"time_ns"`
}

// LevelStats groups trial times by level count, in the order the levels
// were visited.
func (r *Report) LevelStats() []LevelStats {
	var (
		order []int
		times = map[int][]float64{}
	)
	for _, e := range r.Trials {
		lv := e.Settings.Levels
		if _, seen := times[lv]; !seen {
			order = append(order, lv)
		}
		times[lv] = append(times[lv], e.Measurement.Time)
	}
	out := make([]LevelStats, 0, len(order))
	for _, lv := range order {
		out = append(out, LevelStats{Levels: lv, Time: utils.Summarize(times[lv])})
	}
	return out
}
