package fitness

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/GoSim-25-26J-441/fitter-core/pkg/config"
)

// Simulator produces a synthetic spectrum for one fully resolved job.
type Simulator interface {
	Name() string
	Simulate(ctx context.Context, job *config.Tree, shared Shared) (Spectrum, error)
}

// NameBlackBody is the built-in reference simulator.
const NameBlackBody = "blackbody"

// UnknownSimulatorError indicates an unregistered simulator.
type UnknownSimulatorError struct {
	Name string
}

func (e *UnknownSimulatorError) Error() string {
	return "unknown simulator: " + e.Name
}

func (e *UnknownSimulatorError) Is(target error) bool {
	return target == config.ErrConfiguration
}

// NewSimulator resolves a simulator by name; empty selects the black body.
func NewSimulator(name string) (Simulator, error) {
	switch name {
	case "", NameBlackBody:
		return &BlackBodySimulator{}, nil
	default:
		return nil, &UnknownSimulatorError{Name: name}
	}
}

// Physical constants in SI units.
const (
	planck    = 6.62607015e-34
	lightC    = 2.99792458e8
	boltzmann = 1.380649e-23
	angstrom  = 1e-10
)

// IntensityBlackBody returns the spectral energy density 8*pi*h*c/lambda^5 /
// (exp(h*c/(lambda*k*T)) - 1) for a wavelength in Angstrom and T in Kelvin.
func IntensityBlackBody(wavelengthAngstrom, temperature float64) float64 {
	lambda := wavelengthAngstrom * angstrom
	pref := 8 * math.Pi * planck * lightC / math.Pow(lambda, 5)
	return pref / math.Expm1(planck*lightC/(lambda*boltzmann*temperature))
}

// BlackBodySimulator renders a scaled black body on the observed grid, or on
// spectrum.start..spectrum.end with spectrum.bins samples when those keys
// are present. Reads:
//
//	model.t_inner           temperature in K
//	model.luminosity_scale  multiplicative scale (default 1)
//	model.noise             relative gaussian noise (default 0)
//	montecarlo.seed         seed for the noise draw (default 0)
type BlackBodySimulator struct{}

func (b *BlackBodySimulator) Name() string {
	return NameBlackBody
}

func (b *BlackBodySimulator) Simulate(ctx context.Context, job *config.Tree, shared Shared) (Spectrum, error) {
	if err := ctx.Err(); err != nil {
		return Spectrum{}, err
	}
	temperature, err := job.Float("model.t_inner")
	if err != nil {
		return Spectrum{}, err
	}
	if temperature <= 0 {
		return Spectrum{}, fmt.Errorf("model.t_inner must be positive, got %g", temperature)
	}
	scale := optionalFloat(job, "model.luminosity_scale", 1)
	noise := optionalFloat(job, "model.noise", 0)
	seed := int64(optionalFloat(job, "montecarlo.seed", 0))

	grid, err := wavelengthGrid(job, shared)
	if err != nil {
		return Spectrum{}, err
	}
	flux := make([]float64, len(grid))
	var rng *rand.Rand
	if noise > 0 {
		rng = rand.New(rand.NewSource(seed))
	}
	for i, w := range grid {
		flux[i] = scale * IntensityBlackBody(w, temperature)
		if rng != nil {
			flux[i] *= 1 + noise*rng.NormFloat64()
		}
	}
	return Spectrum{Wavelength: grid, Flux: flux}, nil
}

func wavelengthGrid(job *config.Tree, shared Shared) ([]float64, error) {
	if job.Has("spectrum.start") {
		start, err := job.Float("spectrum.start")
		if err != nil {
			return nil, err
		}
		end, err := job.Float("spectrum.end")
		if err != nil {
			return nil, err
		}
		bins := int(optionalFloat(job, "spectrum.bins", 1000))
		if bins < 2 || end <= start || start <= 0 {
			return nil, fmt.Errorf("invalid spectrum grid [%g, %g] with %d bins", start, end, bins)
		}
		grid := make([]float64, bins)
		step := (end - start) / float64(bins-1)
		for i := range grid {
			grid[i] = start + float64(i)*step
		}
		return grid, nil
	}
	if shared.Observed.Len() == 0 {
		return nil, fmt.Errorf("no spectrum grid configured and no observed spectrum shared")
	}
	return append([]float64(nil), shared.Observed.Wavelength...), nil
}

func optionalFloat(job *config.Tree, path string, fallback float64) float64 {
	v, err := job.Float(path)
	if err != nil {
		return fallback
	}
	return v
}
