package optimizer

import (
	"gonum.org/v1/gonum/floats"

	"github.com/GoSim-25-26J-441/fitter-core/internal/collection"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/utils"
)

// ShrinkFactor scales the search radius after every proposal.
const ShrinkFactor = 0.95

// LocalPatternSearch is a Luus-Jaakola style search around the incumbent
// with a geometrically shrinking box.
type LocalPatternSearch struct {
	space       Space
	sampleCount int
	rng         *utils.RandSource

	x []float64
	d []float64
}

// NewLocalPatternSearch centres the search on the midpoint of the box with
// a radius of half its width.
func NewLocalPatternSearch(space Space, sampleCount int, rng *utils.RandSource) *LocalPatternSearch {
	d := make([]float64, space.Dim())
	floats.SubTo(d, space.Upper, space.Lower)
	floats.Scale(0.5, d)
	return &LocalPatternSearch{
		space:       space,
		sampleCount: sampleCount,
		rng:         rng,
		x:           utils.Midpoint(space.Lower, space.Upper),
		d:           d,
	}
}

func (l *LocalPatternSearch) Name() string {
	return NameLocalPatternSearch
}

// Center returns a copy of the current incumbent.
func (l *LocalPatternSearch) Center() []float64 {
	return append([]float64(nil), l.x...)
}

// Radius returns a copy of the current half-width vector.
func (l *LocalPatternSearch) Radius() []float64 {
	return append([]float64(nil), l.d...)
}

// Propose returns the incumbent as row 0 followed by sampleCount uniform
// draws around it, then shrinks the radius.
func (l *LocalPatternSearch) Propose(evaluated *collection.Collection) (*collection.Collection, error) {
	rows, _, err := readEvaluated(l.Name(), l.space, evaluated, true)
	if err != nil {
		return nil, err
	}
	best, err := evaluated.SelectBest(collection.FitnessColumn, collection.Minimize)
	if err != nil {
		return nil, err
	}
	l.x = append(l.x[:0], rows[best]...)

	lo := make([]float64, len(l.x))
	hi := make([]float64, len(l.x))
	floats.SubTo(lo, l.x, l.d)
	floats.AddTo(hi, l.x, l.d)
	lo = utils.ClipVector(lo, l.space.Lower, l.space.Upper)
	hi = utils.ClipVector(hi, l.space.Lower, l.space.Upper)

	out := make([][]float64, 0, l.sampleCount+1)
	out = append(out, append([]float64(nil), l.x...))
	for i := 0; i < l.sampleCount; i++ {
		out = append(out, l.rng.UniformVector(lo, hi))
	}
	proposal, err := build(l.space, out)
	if err != nil {
		return nil, err
	}
	proposal.NormalizeAbundances()

	floats.Scale(ShrinkFactor, l.d)
	return proposal, nil
}
