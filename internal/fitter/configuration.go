// Package fitter holds the validated description of a fitting run and the
// engine that drives the evaluate, record, propose loop.
package fitter

import (
	"fmt"
	"math"
	"slices"

	"github.com/GoSim-25-26J-441/fitter-core/internal/collection"
	"github.com/GoSim-25-26J-441/fitter-core/internal/fitness"
	"github.com/GoSim-25-26J-441/fitter-core/internal/optimizer"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/config"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/utils"
)

// ResumeMismatchError indicates a resume log whose parameter columns differ
// from the configured parameter names.
type ResumeMismatchError struct {
	Expected []string
	Found    []string
}

func (e *ResumeMismatchError) Error() string {
	return fmt.Sprintf("resume log columns %v do not match parameters %v", e.Found, e.Expected)
}

func (e *ResumeMismatchError) Is(target error) bool {
	return target == config.ErrConfiguration
}

// Definition is the unvalidated input to FromDefinition.
type Definition struct {
	Names         []string
	Bounds        [][2]float64
	SampleCount   int
	MaxIterations int
	Optimizer     optimizer.Strategy
	Fitness       config.FitnessSpec
	// ResumeLog is the accumulated log of an earlier run, or nil.
	ResumeLog *collection.Collection
}

// Configuration is an immutable, validated fitter definition.
type Configuration struct {
	names            []string
	lower            []float64
	upper            []float64
	sampleCount      int
	maxIterations    int
	optimizer        optimizer.Strategy
	fitness          config.FitnessSpec
	resumeLog        *collection.Collection
	currentIteration int
}

// FromDefinition validates def. Every failure is a configuration error.
func FromDefinition(def Definition) (*Configuration, error) {
	if len(def.Names) == 0 {
		return nil, &config.ConfigurationError{Field: "parameters", Reason: "at least one parameter is required"}
	}
	if len(def.Bounds) != len(def.Names) {
		return nil, &config.ConfigurationError{
			Field:  "bounds",
			Reason: fmt.Sprintf("%d parameters but %d bounds", len(def.Names), len(def.Bounds)),
		}
	}
	seen := make(map[string]bool, len(def.Names))
	lower := make([]float64, len(def.Names))
	upper := make([]float64, len(def.Names))
	for i, name := range def.Names {
		if name == "" {
			return nil, &config.ConfigurationError{Field: fmt.Sprintf("parameters[%d]", i), Reason: "name cannot be empty"}
		}
		if collection.IsMetadata(name) {
			return nil, &config.ConfigurationError{Field: name, Reason: "parameter names cannot use the " + collection.MetadataPrefix + " prefix"}
		}
		if seen[name] {
			return nil, &config.ConfigurationError{Field: "parameters", Reason: "duplicate parameter " + name}
		}
		seen[name] = true
		lo, hi := def.Bounds[i][0], def.Bounds[i][1]
		if math.IsNaN(lo) || math.IsNaN(hi) || lo > hi {
			return nil, &config.ConfigurationError{Field: name, Reason: fmt.Sprintf("lower bound %g exceeds upper bound %g", lo, hi)}
		}
		lower[i], upper[i] = lo, hi
	}
	if def.SampleCount <= 0 {
		return nil, &config.ConfigurationError{Field: "sample_count", Reason: fmt.Sprintf("must be positive, got %d", def.SampleCount)}
	}
	if def.MaxIterations <= 0 {
		return nil, &config.ConfigurationError{Field: "max_iterations", Reason: fmt.Sprintf("must be positive, got %d", def.MaxIterations)}
	}
	if def.Optimizer == nil {
		return nil, &config.ConfigurationError{Field: "optimizer", Reason: "no optimizer bound"}
	}

	cfg := &Configuration{
		names:         slices.Clone(def.Names),
		lower:         lower,
		upper:         upper,
		sampleCount:   def.SampleCount,
		maxIterations: def.MaxIterations,
		optimizer:     def.Optimizer,
		fitness:       def.Fitness,
	}
	if def.ResumeLog != nil {
		next, err := resumeIteration(def.Names, def.ResumeLog)
		if err != nil {
			return nil, err
		}
		cfg.resumeLog = def.ResumeLog.Clone()
		cfg.currentIteration = next
	}
	return cfg, nil
}

// resumeIteration checks the log against names and returns the first
// iteration that is not yet in it.
func resumeIteration(names []string, log *collection.Collection) (int, error) {
	found := log.ParameterColumns()
	expected := slices.Clone(names)
	slices.Sort(found)
	slices.Sort(expected)
	if !slices.Equal(found, expected) {
		return 0, &ResumeMismatchError{Expected: names, Found: log.ParameterColumns()}
	}
	if !log.Has(collection.IterationColumn) {
		return 0, &config.ConfigurationError{Field: "resume", Reason: "log has no " + collection.IterationColumn + " column"}
	}
	if log.Len() == 0 {
		return 0, &config.ConfigurationError{Field: "resume", Reason: "log is empty"}
	}
	iterations, err := log.Column(collection.IterationColumn)
	if err != nil {
		return 0, err
	}
	return int(slices.Max(iterations)) + 1, nil
}

// FromDocument builds a configuration from a parsed fitter document. When
// the document resumes, the log at log_path is read back.
func FromDocument(doc *config.Document, rng *utils.RandSource) (*Configuration, error) {
	if err := fitness.CheckSpec(doc.Fitness); err != nil {
		return nil, err
	}
	lower, upper := doc.Bounds()
	space := optimizer.Space{Names: doc.Names(), Lower: lower, Upper: upper}
	opt, err := optimizer.FromSpec(doc.Optimizer, space, doc.SampleCount, rng)
	if err != nil {
		return nil, err
	}
	def := Definition{
		Names:         space.Names,
		Bounds:        make([][2]float64, space.Dim()),
		SampleCount:   doc.SampleCount,
		MaxIterations: doc.MaxIterations,
		Optimizer:     opt,
		Fitness:       doc.Fitness,
	}
	for i := range def.Bounds {
		def.Bounds[i] = [2]float64{lower[i], upper[i]}
	}
	if doc.Resume {
		log, err := collection.ReadFile(doc.LogPath)
		if err != nil {
			return nil, &config.ConfigurationError{Field: "resume", Reason: err.Error()}
		}
		def.ResumeLog = log
	}
	return FromDefinition(def)
}

// Names returns the parameter names in declaration order.
func (c *Configuration) Names() []string {
	return slices.Clone(c.names)
}

// CheckBase verifies that every parameter names a scalar leaf of base, so a
// misnamed or nested path fails before any job is dispatched.
func (c *Configuration) CheckBase(base *config.Tree) error {
	leaves := make(map[string]bool)
	for _, p := range base.Paths() {
		leaves[p] = true
	}
	for _, name := range c.names {
		if !leaves[name] {
			return &config.ConfigurationError{Field: name, Reason: "not a leaf of the base configuration"}
		}
	}
	return nil
}

// Space returns the feasible search box.
func (c *Configuration) Space() optimizer.Space {
	return optimizer.Space{Names: c.Names(), Lower: slices.Clone(c.lower), Upper: slices.Clone(c.upper)}
}

func (c *Configuration) SampleCount() int {
	return c.sampleCount
}

func (c *Configuration) MaxIterations() int {
	return c.maxIterations
}

func (c *Configuration) Optimizer() optimizer.Strategy {
	return c.optimizer
}

func (c *Configuration) Fitness() config.FitnessSpec {
	return c.fitness
}

// Resuming reports whether the configuration continues an earlier log.
func (c *Configuration) Resuming() bool {
	return c.resumeLog != nil
}

// ResumeLog returns a copy of the earlier log, or nil.
func (c *Configuration) ResumeLog() *collection.Collection {
	if c.resumeLog == nil {
		return nil
	}
	return c.resumeLog.Clone()
}

// CurrentIteration is the first iteration this run will evaluate.
func (c *Configuration) CurrentIteration() int {
	return c.currentIteration
}

// InitialCollection returns the first generation. A resumed run gets the
// rows of its last recorded iteration with every column kept; a fresh run
// gets SampleCount uniform draws inside the bounds.
func (c *Configuration) InitialCollection(rng *utils.RandSource) (*collection.Collection, error) {
	if c.resumeLog != nil {
		last := float64(c.currentIteration - 1)
		iterations, err := c.resumeLog.Column(collection.IterationColumn)
		if err != nil {
			return nil, err
		}
		return c.resumeLog.Filter(func(row int) bool { return iterations[row] == last }), nil
	}

	if rng == nil {
		rng = utils.Default()
	}
	columns := make([]collection.Column, len(c.names))
	for i, name := range c.names {
		values := make([]float64, c.sampleCount)
		for j := range values {
			values[j] = rng.UniformFloat64(c.lower[i], c.upper[i])
		}
		columns[i] = collection.Column{Name: name, Values: values}
	}
	initial, err := collection.New(columns...)
	if err != nil {
		return nil, err
	}
	initial.NormalizeAbundances()
	return initial, nil
}
