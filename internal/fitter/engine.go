package fitter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/fitter-core/internal/collection"
	"github.com/GoSim-25-26J-441/fitter-core/internal/dispatch"
	"github.com/GoSim-25-26J-441/fitter-core/internal/metrics"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/logger"
)

// State is the lifecycle of an Engine.
type State int

const (
	StateInitialized State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrAlreadyRun is returned when Run is called on an engine that left the
// initialized state.
var ErrAlreadyRun = errors.New("engine already ran")

// IterationError wraps the failure that aborted a run together with the
// iteration and the parameter sets it was working on.
type IterationError struct {
	Iteration int
	Params    *collection.Collection
	Err       error
}

func (e *IterationError) Error() string {
	rows := 0
	if e.Params != nil {
		rows = e.Params.Len()
	}
	return fmt.Sprintf("iteration %d (%d parameter sets): %v", e.Iteration, rows, e.Err)
}

func (e *IterationError) Unwrap() error {
	return e.Err
}

// Evaluator turns a parameter collection into an evaluated generation.
// *dispatch.Dispatcher implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, params *collection.Collection, iteration int) (*dispatch.Result, error)
}

// ArtifactWriter persists per-row artifacts keyed by accumulated-log row
// index. *artifact.SpectralStore implements it.
type ArtifactWriter interface {
	StoreBatch(ctx context.Context, artifacts map[int][]float64) error
}

// Engine drives the evaluate, record, propose loop for one configuration.
type Engine struct {
	cfg         *Configuration
	evaluator   Evaluator
	artifacts   ArtifactWriter
	logPath     string
	convergence ConvergenceStrategy
	metrics     *metrics.Collector

	mu        sync.RWMutex
	state     State
	current   int
	log       *collection.Collection
	params    *collection.Collection
	history   []IterationSummary
	stopCause string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogPath persists the accumulated log to path after every iteration.
func WithLogPath(path string) EngineOption {
	return func(e *Engine) {
		e.logPath = path
	}
}

// WithArtifacts stores the artifact of every evaluated row.
func WithArtifacts(w ArtifactWriter) EngineOption {
	return func(e *Engine) {
		e.artifacts = w
	}
}

// WithConvergence allows the run to stop before MaxIterations.
func WithConvergence(s ConvergenceStrategy) EngineOption {
	return func(e *Engine) {
		e.convergence = s
	}
}

// WithMetrics records iteration durations and best fitness on c.
func WithMetrics(c *metrics.Collector) EngineOption {
	return func(e *Engine) {
		e.metrics = c
	}
}

// NewEngine creates an engine in the initialized state. A resumed
// configuration seeds the accumulated log with the earlier rows.
func NewEngine(cfg *Configuration, evaluator Evaluator, opts ...EngineOption) *Engine {
	e := &Engine{
		cfg:       cfg,
		evaluator: evaluator,
		state:     StateInitialized,
		current:   cfg.CurrentIteration(),
		log:       collection.Empty(),
	}
	if cfg.Resuming() {
		e.log = cfg.ResumeLog()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run evaluates generations until MaxIterations is reached, the
// convergence strategy stops the run, or an error occurs. Cancelling ctx
// aborts the in-flight iteration; completed iterations stay in the log.
func (e *Engine) Run(ctx context.Context, initial *collection.Collection) error {
	e.mu.Lock()
	if e.state != StateInitialized {
		e.mu.Unlock()
		return ErrAlreadyRun
	}
	e.state = StateRunning
	e.mu.Unlock()

	opt := e.cfg.Optimizer()
	next := initial
	if initial.Has(collection.FitnessColumn) {
		e.mu.Lock()
		e.params = initial.Clone()
		e.mu.Unlock()
		// Already evaluated rows warm the optimizer instead of being re-run.
		// A finished budget leaves nothing to propose for.
		if e.CurrentIteration() < e.cfg.MaxIterations() {
			proposal, err := opt.Propose(initial)
			if err != nil {
				return e.fail(&IterationError{Iteration: e.CurrentIteration() - 1, Params: initial, Err: fmt.Errorf("warm start %s: %w", opt.Name(), err)})
			}
			next = proposal
		}
	}

	logger.Info("fitter run started",
		"optimizer", opt.Name(),
		"first_iteration", e.CurrentIteration(),
		"max_iterations", e.cfg.MaxIterations(),
		"sample_count", e.cfg.SampleCount())

	for {
		iteration := e.CurrentIteration()
		if iteration >= e.cfg.MaxIterations() {
			e.stop(fmt.Sprintf("max iterations reached (%d)", e.cfg.MaxIterations()))
			break
		}
		if err := ctx.Err(); err != nil {
			return e.fail(&IterationError{Iteration: iteration, Params: next, Err: err})
		}

		proposal, err := e.step(ctx, iteration, next)
		if err != nil {
			return e.fail(&IterationError{Iteration: iteration, Params: next, Err: err})
		}
		next = proposal

		if e.convergence != nil {
			e.mu.RLock()
			ok, reason := e.convergence.CheckConvergence(e.history)
			e.mu.RUnlock()
			if ok {
				e.stop(reason)
				break
			}
		}
	}

	e.mu.Lock()
	e.state = StateCompleted
	reason := e.stopCause
	e.mu.Unlock()
	logger.Info("fitter run completed", "iterations", e.CurrentIteration(), "reason", reason)
	return nil
}

// step evaluates one generation, records it and returns the next proposal.
func (e *Engine) step(ctx context.Context, iteration int, params *collection.Collection) (*collection.Collection, error) {
	log := logger.ForIteration(iteration)
	log.Info("iteration started", "parameter_sets", params.Len())
	started := time.Now()

	res, err := e.evaluator.Evaluate(ctx, params, iteration)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	evaluated := res.Evaluated

	e.mu.RLock()
	accumulated, err := e.log.Append(evaluated)
	e.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	offset := accumulated.Len() - evaluated.Len()

	if e.artifacts != nil {
		batch := make(map[int][]float64, len(res.Artifacts))
		for i, a := range res.Artifacts {
			if a != nil {
				batch[offset+i] = a
			}
		}
		if len(batch) > 0 {
			if err := e.artifacts.StoreBatch(ctx, batch); err != nil {
				return nil, fmt.Errorf("store artifacts: %w", err)
			}
		}
	}

	if e.logPath != "" {
		if err := accumulated.WriteFile(e.logPath); err != nil {
			return nil, fmt.Errorf("persist log: %w", err)
		}
	}

	summary := IterationSummary{Iteration: iteration, Failures: res.Failures}
	best, err := evaluated.SelectBest(collection.FitnessColumn, collection.Minimize)
	if err != nil {
		return nil, err
	}
	summary.BestFitness, _ = evaluated.Value(best, collection.FitnessColumn)

	e.mu.Lock()
	e.log = accumulated
	e.params = evaluated
	e.history = append(e.history, summary)
	e.mu.Unlock()

	if e.metrics != nil {
		metrics.RecordIteration(e.metrics, iteration, time.Since(started).Seconds(), summary.BestFitness, time.Now())
	}
	log.Info("iteration finished",
		"best_fitness", summary.BestFitness,
		"failures", summary.Failures,
		"log_rows", accumulated.Len(),
		"duration", time.Since(started))

	proposal, err := e.cfg.Optimizer().Propose(evaluated)
	if err != nil {
		return nil, fmt.Errorf("propose: %w", err)
	}

	e.mu.Lock()
	e.current = iteration + 1
	e.mu.Unlock()
	return proposal, nil
}

func (e *Engine) fail(err error) error {
	e.mu.Lock()
	e.state = StateFailed
	e.mu.Unlock()
	logger.Error("fitter run failed", "error", err)
	return err
}

func (e *Engine) stop(reason string) {
	e.mu.Lock()
	e.stopCause = reason
	e.mu.Unlock()
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// CurrentIteration returns the next iteration to evaluate.
func (e *Engine) CurrentIteration() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// Log returns a copy of the accumulated log.
func (e *Engine) Log() *collection.Collection {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.log.Clone()
}

// CurrentParameters returns a copy of the last evaluated generation, or nil
// before the first one.
func (e *Engine) CurrentParameters() *collection.Collection {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.params == nil {
		return nil
	}
	return e.params.Clone()
}

// Best returns the lowest-fitness row of the accumulated log.
func (e *Engine) Best() (*collection.Collection, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.log.BestRow(collection.FitnessColumn, collection.Minimize)
}

// History returns the per-iteration summaries of this run.
func (e *Engine) History() []IterationSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]IterationSummary(nil), e.history...)
}

// StopReason explains why a completed run stopped.
func (e *Engine) StopReason() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stopCause
}
