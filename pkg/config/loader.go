package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// LoadDocument loads and parses a fitter document. Relative file references
// inside it are resolved against the document's directory.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fitter document %s: %w", path, err)
	}
	doc, err := ParseDocumentYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fitter document %s: %w", path, err)
	}
	doc.resolvePaths(filepath.Dir(path))
	return doc, nil
}

func (d *Document) resolvePaths(dir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	d.BaseConfig = resolve(d.BaseConfig)
	d.LogPath = resolve(d.LogPath)
	d.Fitness.Observed = resolve(d.Fitness.Observed)
	d.Workers.SharedData = resolve(d.Workers.SharedData)
	if d.ArtifactStore != nil {
		d.ArtifactStore.Path = resolve(d.ArtifactStore.Path)
	}
}

// validateDocument performs validation on the fitter document
func validateDocument(d *Document) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[d.LogLevel] {
		return &ConfigurationError{Field: "log_level", Reason: fmt.Sprintf("%q must be debug, info, warn, or error", d.LogLevel)}
	}

	if len(d.Parameters) == 0 {
		return &ConfigurationError{Field: "parameters", Reason: "at least one parameter must be defined"}
	}
	names := make(map[string]bool)
	for i, p := range d.Parameters {
		if p.Name == "" {
			return &ConfigurationError{Field: fmt.Sprintf("parameters[%d].name", i), Reason: "cannot be empty"}
		}
		if names[p.Name] {
			return &ConfigurationError{Field: "parameters", Reason: "duplicate parameter name " + p.Name}
		}
		names[p.Name] = true
		if p.Lower > p.Upper {
			return &ConfigurationError{Field: p.Name, Reason: fmt.Sprintf("lower bound %g exceeds upper bound %g", p.Lower, p.Upper)}
		}
	}

	if d.SampleCount <= 0 {
		return &ConfigurationError{Field: "sample_count", Reason: fmt.Sprintf("must be positive, got %d", d.SampleCount)}
	}
	if d.MaxIterations <= 0 {
		return &ConfigurationError{Field: "max_iterations", Reason: fmt.Sprintf("must be positive, got %d", d.MaxIterations)}
	}

	if d.Optimizer.Name == "" {
		return &ConfigurationError{Field: "optimizer.name", Reason: "cannot be empty"}
	}
	if d.Optimizer.CR != nil && (*d.Optimizer.CR < 0 || *d.Optimizer.CR > 1) {
		return &ConfigurationError{Field: "optimizer.cr", Reason: fmt.Sprintf("must be between 0 and 1, got %g", *d.Optimizer.CR)}
	}
	if d.Optimizer.F != nil && (*d.Optimizer.F <= 0 || *d.Optimizer.F > 2) {
		return &ConfigurationError{Field: "optimizer.f", Reason: fmt.Sprintf("must be in (0, 2], got %g", *d.Optimizer.F)}
	}

	if d.Fitness.Name == "" {
		return &ConfigurationError{Field: "fitness.name", Reason: "cannot be empty"}
	}
	if d.Fitness.ObservedUncertainty < 0 {
		return &ConfigurationError{Field: "fitness.observed_uncertainty", Reason: "cannot be negative"}
	}

	if d.Resume && d.LogPath == "" {
		return &ConfigurationError{Field: "log_path", Reason: "resume requires a log path"}
	}
	if d.ArtifactStore != nil && d.ArtifactStore.Path == "" {
		return &ConfigurationError{Field: "artifact_store.path", Reason: "cannot be empty"}
	}

	if d.Workers.Parallelism < 0 {
		return &ConfigurationError{Field: "workers.parallelism", Reason: "cannot be negative"}
	}
	if d.Workers.PollTimeoutMs < 0 || d.Workers.MaxPollTimeoutMs < 0 {
		return &ConfigurationError{Field: "workers", Reason: "poll timeouts cannot be negative"}
	}
	switch d.Workers.PollBackoff {
	case "", "constant", "linear", "exponential":
	default:
		return &ConfigurationError{Field: "workers.poll_backoff", Reason: fmt.Sprintf("unknown strategy %q", d.Workers.PollBackoff)}
	}
	if c := d.Convergence; c != nil {
		switch c.Strategy {
		case "no_improvement", "plateau", "combined":
		default:
			return &ConfigurationError{Field: "convergence.strategy", Reason: fmt.Sprintf("unknown strategy %q", c.Strategy)}
		}
		if c.Patience < 0 || c.MinIterations < 0 || c.Tolerance < 0 {
			return &ConfigurationError{Field: "convergence", Reason: "patience, tolerance and min_iterations cannot be negative"}
		}
	}
	for i, addr := range d.Workers.Addresses {
		if addr == "" {
			return &ConfigurationError{Field: fmt.Sprintf("workers.addresses[%d]", i), Reason: "cannot be empty"}
		}
	}

	return nil
}
