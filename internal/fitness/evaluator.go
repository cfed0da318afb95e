package fitness

import (
	"context"
	"fmt"

	"github.com/GoSim-25-26J-441/fitter-core/pkg/config"
)

// Evaluator runs the simulator for a job and scores the result. It is what
// a worker executes for every task.
type Evaluator struct {
	simulator Simulator
	function  Function
	shared    Shared
}

// NewEvaluator resolves the simulator and fitness function named in the
// shared resource.
func NewEvaluator(shared Shared) (*Evaluator, error) {
	sim, err := NewSimulator(shared.Fitness.Simulator)
	if err != nil {
		return nil, err
	}
	fn, err := NewFunction(shared.Fitness, shared)
	if err != nil {
		return nil, err
	}
	return &Evaluator{simulator: sim, function: fn, shared: shared}, nil
}

// NewEvaluatorWith composes an explicit simulator and function.
func NewEvaluatorWith(sim Simulator, fn Function, shared Shared) *Evaluator {
	return &Evaluator{simulator: sim, function: fn, shared: shared}
}

// Evaluate simulates job and returns its fitness and artifact.
func (e *Evaluator) Evaluate(ctx context.Context, job *config.Tree) (float64, []float64, error) {
	spectrum, err := e.simulator.Simulate(ctx, job, e.shared)
	if err != nil {
		return 0, nil, fmt.Errorf("%s simulation failed: %w", e.simulator.Name(), err)
	}
	fitness, artifact, err := e.function.Evaluate(spectrum)
	if err != nil {
		return 0, nil, fmt.Errorf("%s evaluation failed: %w", e.function.Name(), err)
	}
	return fitness, artifact, nil
}
