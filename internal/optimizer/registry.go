package optimizer

import (
	"fmt"

	"github.com/GoSim-25-26J-441/fitter-core/pkg/config"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/utils"
)

// Registered strategy names.
const (
	NameRandomSampling        = "random_sampling"
	NameLocalPatternSearch    = "luus_jaakola"
	NameDifferentialEvolution = "devolution"
	NameParticleSwarm         = "pso"
	NameNoiseMeasurement      = "noise_measurement"
)

var aliases = map[string]string{
	"local_pattern_search":   NameLocalPatternSearch,
	"differential_evolution": NameDifferentialEvolution,
	"particle_swarm":         NameParticleSwarm,
}

// Params carries the free parameters of the strategies that have any.
type Params struct {
	CR float64
	F  float64
}

// DefaultParams returns CR = 0.9 and F = 0.5.
func DefaultParams() Params {
	return Params{CR: DefaultCR, F: DefaultF}
}

// ParamsFromSpec fills unset fields of spec with defaults.
func ParamsFromSpec(spec config.OptimizerSpec) Params {
	p := DefaultParams()
	if spec.CR != nil {
		p.CR = *spec.CR
	}
	if spec.F != nil {
		p.F = *spec.F
	}
	return p
}

// UnknownOptimizerError indicates an unregistered strategy name.
type UnknownOptimizerError struct {
	Name string
}

func (e *UnknownOptimizerError) Error() string {
	return "unknown optimizer: " + e.Name
}

func (e *UnknownOptimizerError) Is(target error) bool {
	return target == config.ErrConfiguration
}

// Canonical resolves aliases to the registered name.
func Canonical(name string) string {
	if c, ok := aliases[name]; ok {
		return c
	}
	return name
}

// New builds the named strategy over space.
func New(name string, space Space, sampleCount int, params Params, rng *utils.RandSource) (Strategy, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}
	if sampleCount <= 0 {
		return nil, &config.ConfigurationError{Field: "sample_count", Reason: "must be positive"}
	}
	if rng == nil {
		rng = utils.Default()
	}
	switch Canonical(name) {
	case NameRandomSampling:
		return NewRandomSampling(space, sampleCount, rng), nil
	case NameLocalPatternSearch:
		return NewLocalPatternSearch(space, sampleCount, rng), nil
	case NameDifferentialEvolution:
		return NewDifferentialEvolution(space, sampleCount, params.CR, params.F, rng)
	case NameParticleSwarm:
		return NewParticleSwarm(space, rng), nil
	case NameNoiseMeasurement:
		if len(space.Names) != 1 || space.Names[0] != SeedColumn {
			return nil, &config.ConfigurationError{
				Field:  "parameters",
				Reason: fmt.Sprintf("%s varies only %q, got %v", NameNoiseMeasurement, SeedColumn, space.Names),
			}
		}
		return NewNoiseMeasurement(sampleCount, rng), nil
	default:
		return nil, &UnknownOptimizerError{Name: name}
	}
}

// FromSpec builds the strategy described by a fitter document.
func FromSpec(spec config.OptimizerSpec, space Space, sampleCount int, rng *utils.RandSource) (Strategy, error) {
	return New(spec.Name, space, sampleCount, ParamsFromSpec(spec), rng)
}
