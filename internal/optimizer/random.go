package optimizer

import (
	"github.com/GoSim-25-26J-441/fitter-core/internal/collection"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/utils"
)

// RandomSampling draws a fresh uniform sample of the box on every call.
type RandomSampling struct {
	space       Space
	sampleCount int
	rng         *utils.RandSource
}

// NewRandomSampling creates a random sampler.
func NewRandomSampling(space Space, sampleCount int, rng *utils.RandSource) *RandomSampling {
	return &RandomSampling{space: space, sampleCount: sampleCount, rng: rng}
}

func (r *RandomSampling) Name() string {
	return NameRandomSampling
}

// Sample draws sampleCount abundance-normalized rows.
func (r *RandomSampling) Sample() (*collection.Collection, error) {
	rows := make([][]float64, r.sampleCount)
	for i := range rows {
		rows[i] = r.rng.UniformVector(r.space.Lower, r.space.Upper)
	}
	out, err := build(r.space, rows)
	if err != nil {
		return nil, err
	}
	out.NormalizeAbundances()
	return out, nil
}

// Propose ignores the evaluated fitness.
func (r *RandomSampling) Propose(*collection.Collection) (*collection.Collection, error) {
	return r.Sample()
}
