package fitter

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/fitter-core/pkg/config"
)

// IterationSummary is the per-iteration record convergence checks look at.
type IterationSummary struct {
	Iteration   int
	BestFitness float64
	Failures    int
}

// ConvergenceStrategy decides whether a run may stop before MaxIterations.
type ConvergenceStrategy interface {
	// CheckConvergence inspects the summaries of this run in order.
	CheckConvergence(history []IterationSummary) (bool, string)
	Name() string
}

// ConvergenceConfig holds the thresholds shared by the strategies.
type ConvergenceConfig struct {
	// Patience is the number of iterations without improvement, or the
	// length of the plateau window.
	Patience int
	// Tolerance is the absolute fitness change treated as no change.
	Tolerance float64
	// MinIterations must pass before convergence can be declared.
	MinIterations int
}

// DefaultConvergenceConfig returns the thresholds used when a document
// leaves them unset.
func DefaultConvergenceConfig() *ConvergenceConfig {
	return &ConvergenceConfig{
		Patience:      5,
		Tolerance:     1e-6,
		MinIterations: 3,
	}
}

// NewConvergence builds the strategy selected in a fitter document; nil
// spec means the run always goes to MaxIterations.
func NewConvergence(spec *config.ConvergenceSpec) (ConvergenceStrategy, error) {
	if spec == nil {
		return nil, nil
	}
	cfg := DefaultConvergenceConfig()
	if spec.Patience > 0 {
		cfg.Patience = spec.Patience
	}
	if spec.Tolerance > 0 {
		cfg.Tolerance = spec.Tolerance
	}
	if spec.MinIterations > 0 {
		cfg.MinIterations = spec.MinIterations
	}
	switch spec.Strategy {
	case "no_improvement":
		return NewNoImprovementStrategy(cfg), nil
	case "plateau":
		return NewPlateauStrategy(cfg), nil
	case "combined":
		return NewCombinedStrategy(cfg), nil
	default:
		return nil, &config.ConfigurationError{Field: "convergence.strategy", Reason: fmt.Sprintf("unknown strategy %q", spec.Strategy)}
	}
}

// NoImprovementStrategy converges once the running best has not improved by
// more than Tolerance for Patience iterations.
type NoImprovementStrategy struct {
	config *ConvergenceConfig
}

func NewNoImprovementStrategy(cfg *ConvergenceConfig) *NoImprovementStrategy {
	if cfg == nil {
		cfg = DefaultConvergenceConfig()
	}
	return &NoImprovementStrategy{config: cfg}
}

func (s *NoImprovementStrategy) Name() string {
	return "no_improvement"
}

func (s *NoImprovementStrategy) CheckConvergence(history []IterationSummary) (bool, string) {
	if len(history) < s.config.MinIterations {
		return false, ""
	}

	best := math.NaN()
	bestAt := -1
	for i, step := range history {
		if math.IsNaN(step.BestFitness) {
			continue
		}
		if bestAt < 0 || step.BestFitness < best-s.config.Tolerance {
			best = step.BestFitness
			bestAt = i
		}
	}
	if bestAt < 0 {
		return false, ""
	}

	since := len(history) - 1 - bestAt
	if since >= s.config.Patience {
		return true, fmt.Sprintf("no improvement for %d iterations (best %g at iteration %d)", since, best, history[bestAt].Iteration)
	}
	return false, ""
}

// PlateauStrategy converges when the best fitness of the last Patience
// iterations spans no more than Tolerance.
type PlateauStrategy struct {
	config *ConvergenceConfig
}

func NewPlateauStrategy(cfg *ConvergenceConfig) *PlateauStrategy {
	if cfg == nil {
		cfg = DefaultConvergenceConfig()
	}
	return &PlateauStrategy{config: cfg}
}

func (s *PlateauStrategy) Name() string {
	return "plateau"
}

func (s *PlateauStrategy) CheckConvergence(history []IterationSummary) (bool, string) {
	if len(history) < s.config.MinIterations || len(history) < s.config.Patience || s.config.Patience < 2 {
		return false, ""
	}

	recent := history[len(history)-s.config.Patience:]
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, step := range recent {
		if math.IsNaN(step.BestFitness) {
			return false, ""
		}
		lo = math.Min(lo, step.BestFitness)
		hi = math.Max(hi, step.BestFitness)
	}

	if spread := hi - lo; spread <= s.config.Tolerance {
		return true, fmt.Sprintf("fitness plateaued for %d iterations (range: %g)", s.config.Patience, spread)
	}
	return false, ""
}

// CombinedStrategy converges as soon as any of its strategies does.
type CombinedStrategy struct {
	strategies []ConvergenceStrategy
}

func NewCombinedStrategy(cfg *ConvergenceConfig) *CombinedStrategy {
	return &CombinedStrategy{
		strategies: []ConvergenceStrategy{
			NewNoImprovementStrategy(cfg),
			NewPlateauStrategy(cfg),
		},
	}
}

func (s *CombinedStrategy) Name() string {
	return "combined"
}

func (s *CombinedStrategy) CheckConvergence(history []IterationSummary) (bool, string) {
	for _, strategy := range s.strategies {
		if ok, reason := strategy.CheckConvergence(history); ok {
			return true, fmt.Sprintf("%s: %s", strategy.Name(), reason)
		}
	}
	return false, ""
}

// AddStrategy appends a custom strategy.
func (s *CombinedStrategy) AddStrategy(strategy ConvergenceStrategy) {
	s.strategies = append(s.strategies, strategy)
}
