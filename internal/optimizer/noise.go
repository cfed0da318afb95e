package optimizer

import (
	"github.com/GoSim-25-26J-441/fitter-core/internal/collection"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/utils"
)

// SeedColumn is the single parameter varied by NoiseMeasurement.
const SeedColumn = "montecarlo.seed"

// seedLimit bounds the drawn seeds to [0, 2^16).
const seedLimit = 1 << 16

// NoiseMeasurement re-runs a fixed configuration under fresh Monte Carlo
// seeds so that the spread of fitness values measures simulation noise.
type NoiseMeasurement struct {
	sampleCount int
	rng         *utils.RandSource
}

// NewNoiseMeasurement creates a seed sampler.
func NewNoiseMeasurement(sampleCount int, rng *utils.RandSource) *NoiseMeasurement {
	return &NoiseMeasurement{sampleCount: sampleCount, rng: rng}
}

func (n *NoiseMeasurement) Name() string {
	return NameNoiseMeasurement
}

// Propose ignores the evaluated fitness.
func (n *NoiseMeasurement) Propose(*collection.Collection) (*collection.Collection, error) {
	seeds := make([]float64, n.sampleCount)
	for i := range seeds {
		seeds[i] = float64(n.rng.Intn(seedLimit))
	}
	return collection.New(collection.Column{Name: SeedColumn, Values: seeds})
}
