package backend

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/GoSim-25-26J-441/fitter-core/pkg/config"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/logger"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/utils"
)

// Executor launches batches of jobs on a Runner with bounded parallelism.
// A failing job never aborts its batch and is never retried.
type Executor struct {
	store       *TaskStore
	runner      Runner
	parallelism int

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewExecutor creates an executor. A non-positive parallelism uses
// GOMAXPROCS.
func NewExecutor(store *TaskStore, runner Runner, parallelism int) *Executor {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	return &Executor{
		store:       store,
		runner:      runner,
		parallelism: parallelism,
		cancels:     make(map[string]context.CancelFunc),
	}
}

// Parallelism returns the number of lanes.
func (e *Executor) Parallelism() int {
	return e.parallelism
}

// Progress counts the tasks of a batch by status.
type Progress struct {
	Pending   int
	Running   int
	Completed int
	Failed    int
}

// Progress reports the task states of a live batch. A released or unknown
// batch reports zero tasks.
func (e *Executor) Progress(batchID string) Progress {
	var p Progress
	for _, rec := range e.store.List(batchID) {
		switch rec.Status {
		case StatusPending:
			p.Pending++
		case StatusRunning:
			p.Running++
		case StatusCompleted:
			p.Completed++
		case StatusFailed:
			p.Failed++
		}
	}
	return p
}

// Submit registers jobs and starts them in the background. Jobs keep
// running when ctx is cancelled after Submit returns; use Cancel or Close to
// stop them.
func (e *Executor) Submit(ctx context.Context, jobs []*config.Tree) (*Batch, error) {
	if e.runner == nil {
		return nil, ErrNoRunner
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := newBatch(utils.GenerateBatchID(), len(jobs))
	ids := make([]string, len(jobs))
	for i := range jobs {
		rec, err := e.store.Create(batch.id, i)
		if err != nil {
			e.store.Release(batch.id)
			return nil, err
		}
		ids[i] = rec.ID
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.mu.Lock()
	e.cancels[batch.id] = cancel
	e.mu.Unlock()

	logger.Debug("batch submitted", "batch_id", batch.id, "tasks", len(jobs), "parallelism", e.parallelism)
	go e.runBatch(runCtx, batch, ids, jobs)
	return batch, nil
}

// Cancel stops the unfinished tasks of a batch. Cancelled tasks fail with
// the context error.
func (e *Executor) Cancel(batchID string) bool {
	e.mu.Lock()
	cancel, ok := e.cancels[batchID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Release drops the task records of a drained batch.
func (e *Executor) Release(batchID string) {
	e.store.Release(batchID)
}

// Close cancels every live batch.
func (e *Executor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, cancel := range e.cancels {
		cancel()
		delete(e.cancels, id)
	}
}

func (e *Executor) cleanup(batchID string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[batchID]; ok {
		cancel()
		delete(e.cancels, batchID)
	}
	e.mu.Unlock()
}

func (e *Executor) runBatch(ctx context.Context, batch *Batch, ids []string, jobs []*config.Tree) {
	defer e.cleanup(batch.id)

	slots := make(chan int, e.parallelism)
	for i := 0; i < e.parallelism; i++ {
		slots <- i
	}

	var g errgroup.Group
	g.SetLimit(e.parallelism)
	for i := range jobs {
		g.Go(func() error {
			slot := <-slots
			defer func() { slots <- slot }()
			batch.finish(e.runTask(ctx, slot, ids[i], i, jobs[i]))
			return nil
		})
	}
	_ = g.Wait()
	logger.Debug("batch drained", "batch_id", batch.id, "tasks", batch.total)
}

func (e *Executor) runTask(ctx context.Context, slot int, id string, index int, job *config.Tree) (res TaskResult) {
	res = TaskResult{Index: index, TaskID: id, EngineID: slot}
	if err := e.store.SetRunning(id, slot); err != nil {
		logger.Error("failed to mark task running", "task_id", id, "error", err)
	}
	rec, _ := e.store.Get(id)
	res.Started = rec.StartedAt

	defer func() {
		if r := recover(); r != nil {
			res.Err = &RemoteEvaluationError{TaskID: id, Index: index, EngineID: slot, Err: fmt.Errorf("job panicked: %v", r)}
			e.fail(&res)
		}
	}()

	out, err := e.runner.Run(ctx, slot, job)
	if err != nil {
		res.EngineID = out.EngineID
		res.Err = &RemoteEvaluationError{TaskID: id, Index: index, EngineID: out.EngineID, Err: err}
		e.fail(&res)
		return res
	}
	if err := e.store.Complete(id, out); err != nil {
		logger.Error("failed to record task result", "task_id", id, "error", err)
	}
	rec, _ = e.store.Get(id)
	res.Fitness = out.Fitness
	res.Artifact = out.Artifact
	res.EngineID = out.EngineID
	res.Completed = rec.CompletedAt
	return res
}

func (e *Executor) fail(res *TaskResult) {
	if err := e.store.Fail(res.TaskID, res.Err.Error()); err != nil {
		logger.Error("failed to record task failure", "task_id", res.TaskID, "error", err)
	}
	rec, _ := e.store.Get(res.TaskID)
	res.Completed = rec.CompletedAt
	var remote *RemoteEvaluationError
	if errors.As(res.Err, &remote) {
		logger.Warn("task failed", "task_id", res.TaskID, "index", res.Index, "engine_id", remote.EngineID, "error", remote.Err)
	}
}
