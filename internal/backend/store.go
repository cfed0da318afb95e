package backend

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/fitter-core/pkg/utils"
)

// TaskStatus is the lifecycle state of one submitted job.
type TaskStatus int

const (
	StatusPending TaskStatus = iota
	StatusRunning
	StatusCompleted
	StatusFailed
)

func (s TaskStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("TaskStatus(%d)", int(s))
	}
}

// TaskRecord is the bookkeeping for one job.
type TaskRecord struct {
	ID          string
	BatchID     string
	Index       int
	Status      TaskStatus
	Fitness     float64
	Artifact    []float64
	EngineID    int
	Error       string
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// TaskStore keeps task records for every live batch.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*TaskRecord
}

func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[string]*TaskRecord),
	}
}

// Create registers a pending task at index of batchID.
func (s *TaskStore) Create(batchID string, index int) (*TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := utils.GenerateTaskID(batchID, index)
	if _, exists := s.tasks[id]; exists {
		return nil, fmt.Errorf("task already exists: %s", id)
	}
	rec := &TaskRecord{
		ID:        id,
		BatchID:   batchID,
		Index:     index,
		Status:    StatusPending,
		EngineID:  -1,
		CreatedAt: time.Now().UTC(),
	}
	s.tasks[id] = rec
	return rec, nil
}

// Get returns a copy of the record.
func (s *TaskStore) Get(id string) (TaskRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tasks[id]
	if !ok {
		return TaskRecord{}, false
	}
	return *rec, true
}

// SetRunning marks the task as started on engineID.
func (s *TaskStore) SetRunning(id string, engineID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	rec.Status = StatusRunning
	rec.EngineID = engineID
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	return nil
}

// Complete records a successful outcome.
func (s *TaskStore) Complete(id string, out Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	rec.Status = StatusCompleted
	rec.Fitness = out.Fitness
	rec.Artifact = out.Artifact
	rec.EngineID = out.EngineID
	rec.CompletedAt = time.Now().UTC()
	return nil
}

// Fail records a job failure.
func (s *TaskStore) Fail(id string, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	rec.Status = StatusFailed
	rec.Error = errMsg
	rec.CompletedAt = time.Now().UTC()
	return nil
}

// List returns copies of the batch's records ordered by index.
func (s *TaskStore) List(batchID string) []TaskRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []TaskRecord
	for _, rec := range s.tasks {
		if rec.BatchID == batchID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Release drops every record of a batch.
func (s *TaskStore) Release(batchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.tasks {
		if rec.BatchID == batchID {
			delete(s.tasks, id)
		}
	}
}
