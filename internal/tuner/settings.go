package tuner

import (
	"encoding/json"
	"fmt"
	"math"
)

// Settings is one multigrid solver configuration handed to PINC.
// Values are immutable; the With* helpers return modified copies.
type Settings struct {
	PreSmooth   int     `json:"pre_smooth"`
	PostSmooth  int     `json:"post_smooth"`
	CoarseSolve float64 `json:"coarse_solve"` // may become fractional while searching
	Levels      int     `json:"levels"`
}

// WithCoarseSolve returns a copy with the coarse solve step count replaced
func (s Settings) WithCoarseSolve(steps float64) Settings {
	s.CoarseSolve = steps
	return s
}

// WithLevels returns a copy with the grid level count replaced
func (s Settings) WithLevels(levels int) Settings {
	s.Levels = levels
	return s
}

// Validate checks that every step count is positive
func (s Settings) Validate() error {
	if s.PreSmooth <= 0 {
		return fmt.Errorf("pre smooth steps must be positive, got %d", s.PreSmooth)
	}
	if s.PostSmooth <= 0 {
		return fmt.Errorf("post smooth steps must be positive, got %d", s.PostSmooth)
	}
	if !(s.CoarseSolve > 0) || math.IsInf(s.CoarseSolve, 1) {
		return fmt.Errorf("coarse solve steps must be positive and finite, got %g", s.CoarseSolve)
	}
	if s.Levels <= 0 {
		return fmt.Errorf("levels must be positive, got %d", s.Levels)
	}
	return nil
}

func (s Settings) String() string {
	return fmt.Sprintf("levels=%d pre=%d post=%d coarse=%g", s.Levels, s.PreSmooth, s.PostSmooth, s.CoarseSolve)
}

// Measurement is what one PINC run reports back
type Measurement struct {
	Time   float64 `json:"time_ns"`
	Cycles int     `json:"cycles"`
}

type measurementJSON struct {
	Time   *float64 `json:"time_ns"`
	Cycles int      `json:"cycles"`
}

// MarshalJSON writes a NaN or infinite time as null
func (m Measurement) MarshalJSON() ([]byte, error) {
	out := measurementJSON{Cycles: m.Cycles}
	if !math.IsNaN(m.Time) && !math.IsInf(m.Time, 0) {
		out.Time = &m.Time
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a null or missing time back as NaN
func (m *Measurement) UnmarshalJSON(data []byte) error {
	var in measurementJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	m.Cycles = in.Cycles
	m.Time = math.NaN()
	if in.Time != nil {
		m.Time = *in.Time
	}
	return nil
}

// Best tracks the fastest configuration seen so far. The zero value is
// unmeasured and loses against any real measurement.
type Best struct {
	settings    Settings
	measurement Measurement
	runIndex    int
	measured    bool
}

// Measured reports whether any trial has been recorded
func (b Best) Measured() bool {
	return b.measured
}

// Time returns the best time, or +Inf while unmeasured
func (b Best) Time() float64 {
	if !b.measured {
		return math.Inf(1)
	}
	return b.measurement.Time
}

// Settings returns the best configuration and whether one exists
func (b Best) Settings() (Settings, bool) {
	return b.settings, b.measured
}

// Measurement returns the measurement of the best configuration
func (b Best) Measurement() (Measurement, bool) {
	return b.measurement, b.measured
}

// RunIndex returns the run index that produced the best configuration, -1 while unmeasured
func (b Best) RunIndex() int {
	if !b.measured {
		return -1
	}
	return b.runIndex
}

// offer replaces the snapshot on strict improvement only. NaN never improves.
func (b *Best) offer(runIndex int, s Settings, m Measurement) bool {
	if math.IsNaN(m.Time) {
		return false
	}
	if b.measured && !(m.Time < b.measurement.Time) {
		return false
	}
	b.settings = s
	b.measurement = m
	b.runIndex = runIndex
	b.measured = true
	return true
}
