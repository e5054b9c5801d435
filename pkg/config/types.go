package config

import "time"

// Config represents the tuning session configuration
type Config struct {
	LogLevel  string   `yaml:"log_level"`
	LogFormat string   `yaml:"log_format"` // text or json
	Runner    Runner   `yaml:"runner"`
	Results   Results  `yaml:"results"`
	Search    Search   `yaml:"search"`
	Retry     *Retry   `yaml:"retry,omitempty"`
	Journal   *Journal `yaml:"journal,omitempty"`
	Monitor   *Monitor `yaml:"monitor,omitempty"`
}

// Runner describes how the PINC binary is invoked for one trial
type Runner struct {
	Command     []string   `yaml:"command"` // argv prefix, e.g. [mpirun, -np, "4", ./mpinc]
	IniPath     string     `yaml:"ini_path"`
	WorkDir     string     `yaml:"work_dir"`
	Routine     string     `yaml:"routine"`
	MGCycles    int        `yaml:"mg_cycles"`
	RoundCoarse bool       `yaml:"round_coarse"`
	Timeout     string     `yaml:"timeout"` // e.g. "10m"; empty means no limit
	Clean       *bool      `yaml:"clean"`   // unset means true
	CleanGlobs  []string   `yaml:"clean_globs"`
	Keys        RunnerKeys `yaml:"keys"`
}

// RunnerKeys are the "section:key" names PINC accepts as command line overrides
type RunnerKeys struct {
	Routine     string `yaml:"routine"`
	MGCycles    string `yaml:"mg_cycles"`
	StartTime   string `yaml:"start_time"`
	PreSmooth   string `yaml:"pre_smooth"`
	PostSmooth  string `yaml:"post_smooth"`
	CoarseSolve string `yaml:"coarse_solve"`
	Levels      string `yaml:"levels"`
}

// Results locates the timer datasets written by the mgRun routine
type Results struct {
	Path          string `yaml:"path"`
	TimeDataset   string `yaml:"time_dataset"`
	CyclesDataset string `yaml:"cycles_dataset"`
	Columns       int    `yaml:"columns"`      // values per row
	ValueColumn   int    `yaml:"value_column"` // column holding the measurement
}

// Search holds the hill-climb parameters
type Search struct {
	Initial         InitialSettings `yaml:"initial"`
	MaxTries        int             `yaml:"max_tries"`
	OuterIterations int             `yaml:"outer_iterations"`
}

// InitialSettings is the multigrid configuration the search starts from
type InitialSettings struct {
	PreSmooth   int     `yaml:"pre_smooth"`
	PostSmooth  int     `yaml:"post_smooth"`
	CoarseSolve float64 `yaml:"coarse_solve"`
	Levels      int     `yaml:"levels"`
}

// Retry configures bounded retries around a failed runner invocation
type Retry struct {
	MaxRetries int    `yaml:"max_retries"`
	Backoff    string `yaml:"backoff"` // exponential, linear, constant
	BaseMs     int    `yaml:"base_ms"`
	MaxMs      int    `yaml:"max_ms"`
	Jitter     bool   `yaml:"jitter"` // scale exponential delays by a random factor in [0.5, 1.5)
}

// Journal configures the sqlite trial log
type Journal struct {
	Path string `yaml:"path"`
}

// Monitor configures the status endpoints exposed while a search runs
type Monitor struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
}

// ShouldClean reports whether old outputs are removed before the search
func (r *Runner) ShouldClean() bool {
	return r.Clean == nil || *r.Clean
}

// GetTimeout parses the per-trial timeout. An empty value yields zero.
func (r *Runner) GetTimeout() (time.Duration, error) {
	if r.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(r.Timeout)
}
