package optimizer

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/GoSim-25-26J-441/fitter-core/internal/collection"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/config"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/utils"
)

// Differential evolution defaults.
const (
	DefaultCR = 0.9
	DefaultF  = 0.5
)

// DifferentialEvolution is DE/rand/1/bin with a one-generation lag: trial
// vectors proposed by one call are selected against their parents on the
// next call.
type DifferentialEvolution struct {
	space       Space
	sampleCount int
	cr          float64
	f           float64
	rng         *utils.RandSource

	population [][]float64
	fitness    []float64
}

// NewDifferentialEvolution needs at least four members so that every member
// has three distinct partners.
func NewDifferentialEvolution(space Space, sampleCount int, cr, f float64, rng *utils.RandSource) (*DifferentialEvolution, error) {
	if sampleCount < 4 {
		return nil, &config.ConfigurationError{
			Field:  "sample_count",
			Reason: fmt.Sprintf("differential evolution needs at least 4 samples, got %d", sampleCount),
		}
	}
	if cr < 0 || cr > 1 {
		return nil, &config.ConfigurationError{Field: "optimizer.cr", Reason: fmt.Sprintf("%g is outside [0, 1]", cr)}
	}
	if f <= 0 || f > 2 {
		return nil, &config.ConfigurationError{Field: "optimizer.f", Reason: fmt.Sprintf("%g is outside (0, 2]", f)}
	}
	return &DifferentialEvolution{space: space, sampleCount: sampleCount, cr: cr, f: f, rng: rng}, nil
}

func (de *DifferentialEvolution) Name() string {
	return NameDifferentialEvolution
}

// Population returns a copy of the current parent generation.
func (de *DifferentialEvolution) Population() ([][]float64, []float64) {
	return copyRows(de.population), append([]float64(nil), de.fitness...)
}

// Propose selects survivors, then builds one trial vector per member.
func (de *DifferentialEvolution) Propose(evaluated *collection.Collection) (*collection.Collection, error) {
	rows, fitness, err := readEvaluated(de.Name(), de.space, evaluated, true)
	if err != nil {
		return nil, err
	}
	if de.population == nil {
		if len(rows) < 4 {
			return nil, &ConfigurationMismatchError{Optimizer: de.Name(), Reason: fmt.Sprintf("population of %d is smaller than 4", len(rows))}
		}
		de.population = copyRows(rows)
		de.fitness = append([]float64(nil), fitness...)
	} else {
		if len(rows) != len(de.population) {
			return nil, &ConfigurationMismatchError{
				Optimizer: de.Name(),
				Reason:    fmt.Sprintf("expected %d candidates, got %d", len(de.population), len(rows)),
			}
		}
		for i := range rows {
			if better(fitness[i], de.fitness[i]) {
				de.population[i] = append(de.population[i][:0], rows[i]...)
				de.fitness[i] = fitness[i]
			}
		}
	}

	dim := de.space.Dim()
	trials := make([][]float64, len(de.population))
	mutant := make([]float64, dim)
	for i, parent := range de.population {
		a, b, c := de.partners(i)
		floats.SubTo(mutant, de.population[b], de.population[c])
		floats.AddScaledTo(mutant, de.population[a], de.f, mutant)

		forced := de.rng.Intn(dim)
		trial := make([]float64, dim)
		for j := range trial {
			if j == forced || de.rng.Float64() < de.cr {
				trial[j] = mutant[j]
			} else {
				trial[j] = parent[j]
			}
		}
		if !utils.InBounds(trial, de.space.Lower, de.space.Upper) {
			copy(trial, parent)
		}
		trials[i] = trial
	}
	return build(de.space, trials)
}

// partners draws three distinct population indices other than i.
func (de *DifferentialEvolution) partners(i int) (int, int, int) {
	picked := make([]int, 0, 3)
	for _, j := range de.rng.Perm(len(de.population)) {
		if j == i {
			continue
		}
		picked = append(picked, j)
		if len(picked) == 3 {
			break
		}
	}
	return picked[0], picked[1], picked[2]
}
