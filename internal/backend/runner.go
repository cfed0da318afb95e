// Package backend runs batches of evaluation jobs with bounded parallelism
// and tracks per-task status.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/GoSim-25-26J-441/fitter-core/pkg/config"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrBatchPending = errors.New("batch has unfinished tasks")
	ErrNoRunner     = errors.New("executor has no runner")
)

// Outcome is what a runner reports for one finished job.
type Outcome struct {
	Fitness  float64
	Artifact []float64
	EngineID int
}

// Runner evaluates one fully resolved job. slot identifies the executor
// lane the job occupies and lies in [0, parallelism).
type Runner interface {
	Run(ctx context.Context, slot int, job *config.Tree) (Outcome, error)
}

// Evaluator is the in-process scoring contract of a job.
type Evaluator interface {
	Evaluate(ctx context.Context, job *config.Tree) (float64, []float64, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, job *config.Tree) (float64, []float64, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, job *config.Tree) (float64, []float64, error) {
	return f(ctx, job)
}

// LocalRunner evaluates jobs in-process. The engine id is the lane.
type LocalRunner struct {
	evaluator Evaluator
}

func NewLocalRunner(evaluator Evaluator) *LocalRunner {
	return &LocalRunner{evaluator: evaluator}
}

func (r *LocalRunner) Run(ctx context.Context, slot int, job *config.Tree) (Outcome, error) {
	fitness, artifact, err := r.evaluator.Evaluate(ctx, job)
	if err != nil {
		return Outcome{EngineID: slot}, err
	}
	return Outcome{Fitness: fitness, Artifact: artifact, EngineID: slot}, nil
}

// RemoteEvaluationError is the per-task error of a job that failed on the
// backend.
type RemoteEvaluationError struct {
	TaskID   string
	Index    int
	EngineID int
	Err      error
}

func (e *RemoteEvaluationError) Error() string {
	return fmt.Sprintf("task %s (index %d, engine %d) failed: %v", e.TaskID, e.Index, e.EngineID, e.Err)
}

func (e *RemoteEvaluationError) Unwrap() error {
	return e.Err
}
