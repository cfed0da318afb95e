package config

import "time"

// Document is the declarative description of one fitter run.
type Document struct {
	LogLevel      string             `yaml:"log_level"`
	LogFormat     string             `yaml:"log_format,omitempty"`
	Parameters    []ParameterSpec    `yaml:"parameters"`
	SampleCount   int                `yaml:"sample_count"`
	MaxIterations int                `yaml:"max_iterations"`
	Seed          int64              `yaml:"seed,omitempty"`
	Optimizer     OptimizerSpec      `yaml:"optimizer"`
	Fitness       FitnessSpec        `yaml:"fitness"`
	Resume        bool               `yaml:"resume"`
	LogPath       string             `yaml:"log_path,omitempty"`
	ArtifactStore *ArtifactStoreSpec `yaml:"artifact_store,omitempty"`
	BaseConfig    string             `yaml:"base_config"`
	Workers       WorkersSpec        `yaml:"workers"`
	Convergence   *ConvergenceSpec   `yaml:"convergence,omitempty"`
}

// ParameterSpec names one searchable parameter and its inclusive bounds.
type ParameterSpec struct {
	Name  string  `yaml:"name"`
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper"`
}

// OptimizerSpec selects the strategy and its free parameters.
type OptimizerSpec struct {
	Name string   `yaml:"name"`
	CR   *float64 `yaml:"cr,omitempty"`
	F    *float64 `yaml:"f,omitempty"`
}

// FitnessSpec selects the fitness function and simulator run by workers.
type FitnessSpec struct {
	Name                string  `yaml:"name"`
	Simulator           string  `yaml:"simulator"`
	Observed            string  `yaml:"observed"`
	ObservedUncertainty float64 `yaml:"observed_uncertainty,omitempty"`
}

// ConvergenceSpec enables stopping before max_iterations once the best
// fitness per iteration stops moving.
type ConvergenceSpec struct {
	Strategy      string  `yaml:"strategy"`
	Patience      int     `yaml:"patience,omitempty"`
	Tolerance     float64 `yaml:"tolerance,omitempty"`
	MinIterations int     `yaml:"min_iterations,omitempty"`
}

// ArtifactStoreSpec locates the spectral store.
type ArtifactStoreSpec struct {
	Path string `yaml:"path"`
}

// WorkersSpec configures the evaluation backend. With no addresses the
// fitter evaluates in-process.
type WorkersSpec struct {
	Addresses        []string `yaml:"addresses,omitempty"`
	Parallelism      int      `yaml:"parallelism,omitempty"`
	PollTimeoutMs    int      `yaml:"poll_timeout_ms,omitempty"`
	MaxPollTimeoutMs int      `yaml:"max_poll_timeout_ms,omitempty"`
	PollBackoff      string   `yaml:"poll_backoff,omitempty"`
	SharedData       string   `yaml:"shared_data,omitempty"`
}

// PollTimeout returns the initial wait window, defaulting to 500ms.
func (w WorkersSpec) PollTimeout() time.Duration {
	if w.PollTimeoutMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(w.PollTimeoutMs) * time.Millisecond
}

// MaxPollTimeout caps the growing wait window, defaulting to 10s.
func (w WorkersSpec) MaxPollTimeout() time.Duration {
	if w.MaxPollTimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(w.MaxPollTimeoutMs) * time.Millisecond
}

// Names returns the parameter names in declaration order.
func (d *Document) Names() []string {
	names := make([]string, len(d.Parameters))
	for i, p := range d.Parameters {
		names[i] = p.Name
	}
	return names
}

// Bounds returns the lower and upper bound vectors in declaration order.
func (d *Document) Bounds() (lower, upper []float64) {
	lower = make([]float64, len(d.Parameters))
	upper = make([]float64, len(d.Parameters))
	for i, p := range d.Parameters {
		lower[i] = p.Lower
		upper[i] = p.Upper
	}
	return lower, upper
}
