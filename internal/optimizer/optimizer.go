// Package optimizer implements the search strategies that turn one evaluated
// generation into the next batch of candidate parameter sets.
package optimizer

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/fitter-core/internal/collection"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/config"
)

// Strategy proposes the next generation from an evaluated one.
// Implementations keep private state across calls and never mutate their
// input. The returned collection holds only the parameter columns of the
// Space, in order.
type Strategy interface {
	Name() string
	Propose(evaluated *collection.Collection) (*collection.Collection, error)
}

// Space is the feasible search box.
type Space struct {
	Names []string
	Lower []float64
	Upper []float64
}

// Dim returns the number of parameters.
func (s Space) Dim() int {
	return len(s.Names)
}

// Validate checks that the box is well formed.
func (s Space) Validate() error {
	if len(s.Names) == 0 {
		return &config.ConfigurationError{Field: "parameters", Reason: "at least one parameter is required"}
	}
	if len(s.Lower) != len(s.Names) || len(s.Upper) != len(s.Names) {
		return &config.ConfigurationError{
			Field:  "bounds",
			Reason: fmt.Sprintf("%d parameters but %d lower and %d upper bounds", len(s.Names), len(s.Lower), len(s.Upper)),
		}
	}
	seen := make(map[string]bool, len(s.Names))
	for i, name := range s.Names {
		if seen[name] {
			return &config.ConfigurationError{Field: "parameters", Reason: fmt.Sprintf("duplicate parameter %q", name)}
		}
		seen[name] = true
		if math.IsNaN(s.Lower[i]) || math.IsNaN(s.Upper[i]) || s.Lower[i] > s.Upper[i] {
			return &config.ConfigurationError{
				Field:  "bounds." + name,
				Reason: fmt.Sprintf("lower bound %g exceeds upper bound %g", s.Lower[i], s.Upper[i]),
			}
		}
	}
	return nil
}

// ConfigurationMismatchError reports an evaluated collection whose shape does
// not fit the optimizer.
type ConfigurationMismatchError struct {
	Optimizer string
	Reason    string
}

func (e *ConfigurationMismatchError) Error() string {
	return fmt.Sprintf("%s: evaluated collection does not match configuration: %s", e.Optimizer, e.Reason)
}

func (e *ConfigurationMismatchError) Is(target error) bool {
	return target == config.ErrConfiguration
}

// readEvaluated extracts the parameter vectors and, when needed, the fitness
// column from an evaluated collection.
func readEvaluated(name string, space Space, evaluated *collection.Collection, needFitness bool) ([][]float64, []float64, error) {
	if evaluated == nil {
		return nil, nil, &ConfigurationMismatchError{Optimizer: name, Reason: "no evaluated collection"}
	}
	for _, col := range space.Names {
		if !evaluated.Has(col) {
			return nil, nil, &ConfigurationMismatchError{Optimizer: name, Reason: fmt.Sprintf("missing parameter column %q", col)}
		}
	}
	rows := make([][]float64, evaluated.Len())
	for i := range rows {
		v, err := evaluated.Vector(i, space.Names)
		if err != nil {
			return nil, nil, err
		}
		rows[i] = v
	}
	if !needFitness {
		return rows, nil, nil
	}
	fitness, err := evaluated.Column(collection.FitnessColumn)
	if err != nil {
		return nil, nil, &ConfigurationMismatchError{Optimizer: name, Reason: "missing fitness column"}
	}
	return rows, fitness, nil
}

func build(space Space, rows [][]float64) (*collection.Collection, error) {
	return collection.FromRows(space.Names, rows)
}

// better reports whether candidate fitness a improves on b. NaN never
// improves and anything improves on NaN.
func better(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	return math.IsNaN(b) || a < b
}

func copyRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r...)
	}
	return out
}
