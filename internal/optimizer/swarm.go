package optimizer

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/GoSim-25-26J-441/fitter-core/internal/collection"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/utils"
)

// Acceleration coefficients of the constricted swarm.
const (
	C1 = 2.05
	C2 = 2.05
)

// Constriction returns the Clerc-Kennedy constriction coefficient for
// phi = c1 + c2 > 4.
func Constriction(c1, c2 float64) float64 {
	phi := c1 + c2
	return 2 / (phi - 2 + math.Sqrt(phi*phi-4*phi))
}

// ParticleSwarm is a constricted particle swarm where each particle is
// attracted to the best personal best among all other particles.
type ParticleSwarm struct {
	space Space
	chi   float64
	rng   *utils.RandSource

	x  [][]float64
	v  [][]float64
	px [][]float64
	py []float64
}

// NewParticleSwarm creates a swarm with c1 = c2 = 2.05.
func NewParticleSwarm(space Space, rng *utils.RandSource) *ParticleSwarm {
	return &ParticleSwarm{space: space, chi: Constriction(C1, C2), rng: rng}
}

func (p *ParticleSwarm) Name() string {
	return NameParticleSwarm
}

// Chi returns the constriction coefficient in use.
func (p *ParticleSwarm) Chi() float64 {
	return p.chi
}

// PersonalBest returns copies of the personal-best positions and fitness.
func (p *ParticleSwarm) PersonalBest() ([][]float64, []float64) {
	return copyRows(p.px), append([]float64(nil), p.py...)
}

// Velocities returns a copy of the current velocities.
func (p *ParticleSwarm) Velocities() [][]float64 {
	return copyRows(p.v)
}

// Propose updates personal bests from evaluated and moves every particle.
func (p *ParticleSwarm) Propose(evaluated *collection.Collection) (*collection.Collection, error) {
	rows, fitness, err := readEvaluated(p.Name(), p.space, evaluated, true)
	if err != nil {
		return nil, err
	}
	if p.x == nil {
		if len(rows) == 0 {
			return nil, &ConfigurationMismatchError{Optimizer: p.Name(), Reason: "empty swarm"}
		}
		p.x = copyRows(rows)
		p.px = copyRows(rows)
		p.py = append([]float64(nil), fitness...)
		p.v = make([][]float64, len(rows))
		for i := range p.v {
			p.v[i] = make([]float64, p.space.Dim())
		}
	} else {
		if len(rows) != len(p.x) {
			return nil, &ConfigurationMismatchError{
				Optimizer: p.Name(),
				Reason:    fmt.Sprintf("expected %d particles, got %d", len(p.x), len(rows)),
			}
		}
		for i := range rows {
			copy(p.x[i], rows[i])
			if better(fitness[i], p.py[i]) {
				copy(p.px[i], rows[i])
				p.py[i] = fitness[i]
			}
		}
	}

	dim := p.space.Dim()
	cognitive := make([]float64, dim)
	social := make([]float64, dim)
	for i := range p.x {
		gx := p.px[p.neighbourhoodBest(i)]
		floats.SubTo(cognitive, p.px[i], p.x[i])
		floats.SubTo(social, gx, p.x[i])
		for j := 0; j < dim; j++ {
			r1 := p.rng.Float64()
			r2 := p.rng.Float64()
			p.v[i][j] = p.chi * (p.v[i][j] + C1*r1*cognitive[j] + C2*r2*social[j])
		}
		floats.Add(p.x[i], p.v[i])
		if !utils.InBounds(p.x[i], p.space.Lower, p.space.Upper) {
			copy(p.x[i], p.px[i])
		}
	}
	return build(p.space, copyRows(p.x))
}

// neighbourhoodBest returns the index of the best personal best among all
// particles except i. A lone particle is its own neighbourhood.
func (p *ParticleSwarm) neighbourhoodBest(i int) int {
	best := -1
	for j := range p.py {
		if j == i {
			continue
		}
		if best < 0 || better(p.py[j], p.py[best]) {
			best = j
		}
	}
	if best < 0 {
		return i
	}
	return best
}
