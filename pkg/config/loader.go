package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// LoadConfig loads and parses a configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ResultsPath returns the results file location, relative paths resolved
// against the runner working directory.
func (c *Config) ResultsPath() string {
	if filepath.IsAbs(c.Results.Path) || c.Runner.WorkDir == "" {
		return c.Results.Path
	}
	return filepath.Join(c.Runner.WorkDir, c.Results.Path)
}

// applyDefaults fills unset fields with the values of the reference mgRun setup
func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}

	r := &cfg.Runner
	if r.WorkDir == "" {
		r.WorkDir = "."
	}
	if r.Routine == "" {
		r.Routine = "mgRun"
	}
	if r.MGCycles == 0 {
		r.MGCycles = 1
	}
	if r.Clean == nil {
		clean := true
		r.Clean = &clean
	}
	if *r.Clean && len(r.CleanGlobs) == 0 {
		r.CleanGlobs = []string{"*.h5"}
	}
	setDefault(&r.Keys.Routine, "methods:mode")
	setDefault(&r.Keys.MGCycles, "multigrid:mgCycles")
	setDefault(&r.Keys.StartTime, "time:startTime")
	setDefault(&r.Keys.PreSmooth, "multigrid:nPreSmooth")
	setDefault(&r.Keys.PostSmooth, "multigrid:nPostSmooth")
	setDefault(&r.Keys.CoarseSolve, "multigrid:nCoarseSolve")
	setDefault(&r.Keys.Levels, "multigrid:mgLevels")

	applyResultsDefaults(&cfg.Results)

	s := &cfg.Search
	if s.Initial.PreSmooth == 0 {
		s.Initial.PreSmooth = 10
	}
	if s.Initial.PostSmooth == 0 {
		s.Initial.PostSmooth = 10
	}
	if s.Initial.CoarseSolve == 0 {
		s.Initial.CoarseSolve = 10
	}
	if s.Initial.Levels == 0 {
		s.Initial.Levels = 2
	}
	if s.MaxTries == 0 {
		s.MaxTries = 100
	}
	if s.OuterIterations == 0 {
		s.OuterIterations = 2
	}

	if cfg.Retry != nil && cfg.Retry.Backoff == "" {
		cfg.Retry.Backoff = "exponential"
	}
}

// DefaultResults returns the results section used when none is configured
func DefaultResults() Results {
	var res Results
	applyResultsDefaults(&res)
	return res
}

func applyResultsDefaults(res *Results) {
	setDefault(&res.Path, "test_timer.xy.h5")
	setDefault(&res.TimeDataset, "time")
	setDefault(&res.CyclesDataset, "cycles")
	if res.Columns == 0 {
		res.Columns = 2
		if res.ValueColumn == 0 {
			res.ValueColumn = 1
		}
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// validateConfig performs validation on the configuration
func validateConfig(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("invalid log_format: %s (must be text or json)", cfg.LogFormat)
	}

	if err := validateRunner(&cfg.Runner); err != nil {
		return fmt.Errorf("runner validation failed: %w", err)
	}
	if err := validateResults(&cfg.Results); err != nil {
		return fmt.Errorf("results validation failed: %w", err)
	}
	if err := validateSearch(&cfg.Search); err != nil {
		return fmt.Errorf("search validation failed: %w", err)
	}

	if cfg.Retry != nil {
		if err := validateRetry(cfg.Retry); err != nil {
			return fmt.Errorf("retry validation failed: %w", err)
		}
	}

	return nil
}

// validateRunner validates the runner section
func validateRunner(r *Runner) error {
	if len(r.Command) == 0 || r.Command[0] == "" {
		return fmt.Errorf("command must name the PINC executable")
	}
	if r.MGCycles < 0 {
		return fmt.Errorf("mg_cycles cannot be negative, got %d", r.MGCycles)
	}
	if _, err := r.GetTimeout(); err != nil {
		return fmt.Errorf("invalid timeout %s: %w", r.Timeout, err)
	}
	for _, g := range r.CleanGlobs {
		if _, err := filepath.Match(g, ""); err != nil {
			return fmt.Errorf("invalid clean glob %q: %w", g, err)
		}
	}
	return nil
}

// validateResults validates the results section
func validateResults(res *Results) error {
	if res.Columns <= 0 {
		return fmt.Errorf("columns must be positive, got %d", res.Columns)
	}
	if res.ValueColumn < 0 || res.ValueColumn >= res.Columns {
		return fmt.Errorf("value_column must be in [0, %d), got %d", res.Columns, res.ValueColumn)
	}
	return nil
}

// validateSearch validates the search parameters
func validateSearch(s *Search) error {
	if s.Initial.PreSmooth <= 0 {
		return fmt.Errorf("initial pre_smooth must be positive, got %d", s.Initial.PreSmooth)
	}
	if s.Initial.PostSmooth <= 0 {
		return fmt.Errorf("initial post_smooth must be positive, got %d", s.Initial.PostSmooth)
	}
	if s.Initial.CoarseSolve <= 0 {
		return fmt.Errorf("initial coarse_solve must be positive, got %g", s.Initial.CoarseSolve)
	}
	if s.Initial.Levels <= 0 {
		return fmt.Errorf("initial levels must be positive, got %d", s.Initial.Levels)
	}
	if s.MaxTries <= 0 {
		return fmt.Errorf("max_tries must be positive, got %d", s.MaxTries)
	}
	if s.OuterIterations <= 0 {
		return fmt.Errorf("outer_iterations must be positive, got %d", s.OuterIterations)
	}
	return nil
}

// validateRetry validates the retry policy
func validateRetry(r *Retry) error {
	if r.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", r.MaxRetries)
	}
	validBackoffs := map[string]bool{
		"exponential": true,
		"linear":      true,
		"constant":    true,
	}
	if !validBackoffs[r.Backoff] {
		return fmt.Errorf("invalid backoff type: %s (must be exponential, linear, or constant)", r.Backoff)
	}
	if r.BaseMs < 0 {
		return fmt.Errorf("base_ms cannot be negative, got %d", r.BaseMs)
	}
	if r.MaxMs < 0 {
		return fmt.Errorf("max_ms cannot be negative, got %d", r.MaxMs)
	}
	return nil
}
