// Package dispatch bridges parameter collections and the evaluation
// backend: it materializes jobs, submits them as one batch, polls until the
// batch drains and assembles the evaluated collection.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/GoSim-25-26J-441/fitter-core/internal/backend"
	"github.com/GoSim-25-26J-441/fitter-core/internal/collection"
	"github.com/GoSim-25-26J-441/fitter-core/internal/metrics"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/config"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/logger"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/utils"
)

// Backend accepts batches of jobs.
type Backend interface {
	Submit(ctx context.Context, jobs []*config.Tree) (*backend.Batch, error)
	Progress(batchID string) backend.Progress
	Cancel(batchID string) bool
	Release(batchID string)
}

// ProgressFunc observes polling progress.
type ProgressFunc func(iteration, completed, total int)

// Result is one evaluated generation.
type Result struct {
	// Evaluated holds the parameter columns followed by the fitness,
	// elapsed seconds, engine id and iteration columns.
	Evaluated *collection.Collection
	// Artifacts is aligned to the rows of Evaluated; failed rows are nil.
	Artifacts [][]float64
	// Failures counts the rows whose evaluation failed.
	Failures int
}

// Dispatcher evaluates parameter collections on a Backend.
type Dispatcher struct {
	backend  Backend
	base     *config.Tree
	backoff  utils.BackoffStrategy
	progress ProgressFunc
	metrics  *metrics.Collector
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBackoff sets the growth of the polling window.
func WithBackoff(b utils.BackoffStrategy) Option {
	return func(d *Dispatcher) {
		d.backoff = b
	}
}

// WithProgress registers a progress observer.
func WithProgress(fn ProgressFunc) Option {
	return func(d *Dispatcher) {
		d.progress = fn
	}
}

// WithMetrics records per-task timings and failures on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(d *Dispatcher) {
		d.metrics = c
	}
}

// New creates a dispatcher that expands every row into a copy of base.
func New(b Backend, base *config.Tree, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		backend: b,
		base:    base,
		backoff: utils.BackoffFromConfig("exponential", 500*time.Millisecond, 10*time.Second),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Evaluate runs every row of params and returns the evaluated collection.
// A failed row is kept with NaN fitness and elapsed time. Its engine id is
// the engine that reported the failure, or -1 when none is known.
func (d *Dispatcher) Evaluate(ctx context.Context, params *collection.Collection, iteration int) (*Result, error) {
	clean := params.DropMetadata()
	jobs, err := clean.ToConfig(d.base)
	if err != nil {
		return nil, err
	}

	batch, err := d.backend.Submit(ctx, jobs)
	if err != nil {
		return nil, fmt.Errorf("submit batch: %w", err)
	}
	defer d.backend.Release(batch.ID())

	log := logger.ForIteration(iteration).With("batch_id", batch.ID())
	log.Info("batch submitted", "tasks", batch.Total())

	for attempt := 0; ; attempt++ {
		if _, err := batch.Wait(ctx, d.backoff.NextDelay(attempt)); err != nil {
			d.backend.Cancel(batch.ID())
			log.Warn("batch abandoned", "completed", batch.CompletedCount(), "total", batch.Total(), "error", err)
			return nil, err
		}
		completed := batch.CompletedCount()
		p := d.backend.Progress(batch.ID())
		log.Info("waiting for batch",
			"completed", completed,
			"total", batch.Total(),
			"running", p.Running,
			"failed", p.Failed)
		if d.progress != nil {
			d.progress(iteration, completed, batch.Total())
		}
		if drained(batch) {
			break
		}
	}

	results, err := batch.Results()
	if err != nil {
		return nil, err
	}
	return d.assemble(clean, results, iteration, log)
}

func drained(b *backend.Batch) bool {
	select {
	case <-b.Done():
		return true
	default:
		return false
	}
}

func (d *Dispatcher) assemble(params *collection.Collection, results []backend.TaskResult, iteration int, log *slog.Logger) (*Result, error) {
	n := params.Len()
	if len(results) != n {
		return nil, fmt.Errorf("backend returned %d results for %d jobs", len(results), n)
	}
	fitness := make([]float64, n)
	elapsed := make([]float64, n)
	engines := make([]float64, n)
	iterations := make([]float64, n)
	artifacts := make([][]float64, n)
	failures := 0

	for i, res := range results {
		iterations[i] = float64(iteration)
		if res.Err != nil {
			failures++
			fitness[i] = math.NaN()
			elapsed[i] = math.NaN()
			row, _ := params.Row(i)
			engineID := -1
			var remote *backend.RemoteEvaluationError
			if errors.As(res.Err, &remote) {
				engineID = remote.EngineID
				log.Warn("evaluation failed", "index", i, "engine_id", remote.EngineID, "params", row, "error", remote.Err)
			} else {
				log.Warn("evaluation failed", "index", i, "params", row, "error", res.Err)
			}
			engines[i] = float64(engineID)
			if d.metrics != nil {
				metrics.RecordFailure(d.metrics, engineID, res.Completed)
			}
			continue
		}
		fitness[i] = res.Fitness
		elapsed[i] = res.Elapsed().Seconds()
		engines[i] = float64(res.EngineID)
		artifacts[i] = res.Artifact
		if d.metrics != nil {
			metrics.RecordEvaluation(d.metrics, elapsed[i], res.EngineID, res.Completed)
		}
	}

	out := params.Clone()
	for _, col := range []collection.Column{
		{Name: collection.FitnessColumn, Values: fitness},
		{Name: collection.ElapsedColumn, Values: elapsed},
		{Name: collection.EngineIDColumn, Values: engines},
		{Name: collection.IterationColumn, Values: iterations},
	} {
		if err := out.SetColumn(col.Name, col.Values); err != nil {
			return nil, err
		}
	}
	return &Result{Evaluated: out, Artifacts: artifacts, Failures: failures}, nil
}
