package backend

import (
	"context"
	"sync"
	"time"
)

// TaskResult is the result of one job, at its submission index. Err is a
// *RemoteEvaluationError when the job failed.
type TaskResult struct {
	Index     int
	TaskID    string
	Fitness   float64
	Artifact  []float64
	EngineID  int
	Started   time.Time
	Completed time.Time
	Err       error
}

// Elapsed returns the wall time the task spent running.
func (r TaskResult) Elapsed() time.Duration {
	if r.Started.IsZero() || r.Completed.IsZero() {
		return 0
	}
	return r.Completed.Sub(r.Started)
}

// Batch is the handle of one submitted set of jobs.
type Batch struct {
	id    string
	total int

	mu        sync.Mutex
	results   []TaskResult
	finished  []bool
	completed int
	pending   []int
	done      chan struct{}
}

func newBatch(id string, total int) *Batch {
	b := &Batch{
		id:       id,
		total:    total,
		results:  make([]TaskResult, total),
		finished: make([]bool, total),
		done:     make(chan struct{}),
	}
	if total == 0 {
		close(b.done)
	}
	return b
}

// ID returns the batch identifier.
func (b *Batch) ID() string {
	return b.id
}

// Total returns the number of submitted jobs.
func (b *Batch) Total() int {
	return b.total
}

// CompletedCount returns how many jobs have finished, successfully or not.
func (b *Batch) CompletedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.completed
}

// Done is closed once every job has finished.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

func (b *Batch) finish(res TaskResult) {
	b.mu.Lock()
	if b.finished[res.Index] {
		b.mu.Unlock()
		return
	}
	b.results[res.Index] = res
	b.finished[res.Index] = true
	b.completed++
	b.pending = append(b.pending, res.Index)
	last := b.completed == b.total
	b.mu.Unlock()

	if last {
		close(b.done)
	}
}

// Wait blocks until the batch drains, timeout elapses or ctx ends, and
// returns the results finished since the previous Wait, in completion order.
// It never blocks past timeout.
func (b *Batch) Wait(ctx context.Context, timeout time.Duration) ([]TaskResult, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-b.done:
	case <-timer.C:
	case <-ctx.Done():
		return b.drainPending(), ctx.Err()
	}
	return b.drainPending(), nil
}

func (b *Batch) drainPending() []TaskResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]TaskResult, len(b.pending))
	for i, idx := range b.pending {
		out[i] = b.results[idx]
	}
	b.pending = b.pending[:0]
	return out
}

// Results returns every result aligned to submission order once the batch
// has drained.
func (b *Batch) Results() ([]TaskResult, error) {
	select {
	case <-b.done:
	default:
		return nil, ErrBatchPending
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]TaskResult(nil), b.results...), nil
}
