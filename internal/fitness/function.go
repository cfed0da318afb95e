// Package fitness scores simulated spectra against an observation.
package fitness

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/GoSim-25-26J-441/fitter-core/pkg/config"
)

// Function scores one synthetic spectrum. Lower fitness is better. The
// artifact is the synthetic flux on the observed wavelength grid.
type Function interface {
	Name() string
	Evaluate(synthetic Spectrum) (fitness float64, artifact []float64, err error)
}

// Registered fitness function names.
const (
	NameSimpleRMS        = "simple_rms"
	NameNegLogLikelihood = "log_likelihood"
)

// UnknownFunctionError indicates an unregistered fitness function.
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return "unknown fitness function: " + e.Name
}

func (e *UnknownFunctionError) Is(target error) bool {
	return target == config.ErrConfiguration
}

// CheckSpec reports whether spec names a registered function and simulator
// without loading any observed data.
func CheckSpec(spec config.FitnessSpec) error {
	switch spec.Name {
	case NameSimpleRMS, NameNegLogLikelihood:
	default:
		return &UnknownFunctionError{Name: spec.Name}
	}
	_, err := NewSimulator(spec.Simulator)
	return err
}

// NewFunction builds the fitness function selected by spec against the
// observed spectrum in shared.
func NewFunction(spec config.FitnessSpec, shared Shared) (Function, error) {
	switch spec.Name {
	case NameSimpleRMS, NameNegLogLikelihood:
	default:
		return nil, &UnknownFunctionError{Name: spec.Name}
	}
	if err := shared.Observed.Validate(); err != nil {
		return nil, &config.ConfigurationError{Field: "fitness.observed", Reason: err.Error()}
	}
	observed := shared.Observed.Ascending()
	if spec.Name == NameSimpleRMS {
		return &SimpleRMS{observed: observed}, nil
	}
	if observed.Uncertainty == nil && spec.ObservedUncertainty <= 0 {
		return nil, &config.ConfigurationError{
			Field:  "fitness.observed_uncertainty",
			Reason: "log_likelihood needs an uncertainty column or a positive observed_uncertainty",
		}
	}
	return &NegLogLikelihood{observed: observed, sigma: spec.ObservedUncertainty}, nil
}

// SimpleRMS is the sum of squared flux residuals on the observed grid.
type SimpleRMS struct {
	observed Spectrum
}

// NewSimpleRMS creates the function for an observed spectrum.
func NewSimpleRMS(observed Spectrum) *SimpleRMS {
	return &SimpleRMS{observed: observed.Ascending()}
}

func (f *SimpleRMS) Name() string {
	return NameSimpleRMS
}

func (f *SimpleRMS) Evaluate(synthetic Spectrum) (float64, []float64, error) {
	if err := synthetic.Validate(); err != nil {
		return math.NaN(), nil, fmt.Errorf("synthetic spectrum: %w", err)
	}
	resampled, err := synthetic.ResampleOnto(f.observed.Wavelength)
	if err != nil {
		return math.NaN(), nil, fmt.Errorf("synthetic spectrum: %w", err)
	}
	residual := make([]float64, len(resampled.Flux))
	floats.SubTo(residual, resampled.Flux, f.observed.Flux)
	return floats.Dot(residual, residual), resampled.Flux, nil
}

// NegLogLikelihood is the Gaussian negative log likelihood
// 0.5 * sum((obs - syn)^2 / (sigma_syn^2 + sigma_obs^2)).
type NegLogLikelihood struct {
	observed Spectrum
	// sigma is used when the observation carries no uncertainty column.
	sigma float64
}

func (f *NegLogLikelihood) Name() string {
	return NameNegLogLikelihood
}

func (f *NegLogLikelihood) Evaluate(synthetic Spectrum) (float64, []float64, error) {
	if err := synthetic.Validate(); err != nil {
		return math.NaN(), nil, fmt.Errorf("synthetic spectrum: %w", err)
	}
	resampled, err := synthetic.ResampleOnto(f.observed.Wavelength)
	if err != nil {
		return math.NaN(), nil, fmt.Errorf("synthetic spectrum: %w", err)
	}
	sum := 0.0
	for i, obs := range f.observed.Flux {
		variance := f.sigma * f.sigma
		if f.observed.Uncertainty != nil {
			variance = f.observed.Uncertainty[i] * f.observed.Uncertainty[i]
		}
		if resampled.Uncertainty != nil {
			variance += resampled.Uncertainty[i] * resampled.Uncertainty[i]
		}
		if variance == 0 {
			return math.NaN(), nil, fmt.Errorf("zero variance at wavelength %g", f.observed.Wavelength[i])
		}
		r := obs - resampled.Flux[i]
		sum += r * r / variance
	}
	return 0.5 * sum, resampled.Flux, nil
}
