package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/fitter-core/internal/backend"
	"github.com/GoSim-25-26J-441/fitter-core/internal/fitness"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/config"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/logger"
)

// EvaluatorFactory builds the per-worker evaluator from the broadcast
// resource.
type EvaluatorFactory func(shared fitness.Shared) (backend.Evaluator, error)

// DefaultEvaluatorFactory resolves the simulator and fitness function named
// in the shared resource.
func DefaultEvaluatorFactory(shared fitness.Shared) (backend.Evaluator, error) {
	return fitness.NewEvaluator(shared)
}

// Stats is a snapshot of the worker's counters.
type Stats struct {
	Ready       bool      `json:"ready"`
	BroadcastAt time.Time `json:"broadcast_at,omitzero"`
	InFlight    int64     `json:"in_flight"`
	Completed   int64     `json:"completed"`
	Failed      int64     `json:"failed"`
}

// Server implements WorkerServer on top of an evaluator built at broadcast.
type Server struct {
	factory EvaluatorFactory

	mu          sync.RWMutex
	evaluator   backend.Evaluator
	broadcastAt time.Time

	inFlight  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// NewServer creates a worker. A nil factory uses DefaultEvaluatorFactory.
func NewServer(factory EvaluatorFactory) *Server {
	if factory == nil {
		factory = DefaultEvaluatorFactory
	}
	return &Server{factory: factory}
}

func (s *Server) Broadcast(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "shared resource is required")
	}
	shared, err := fitness.SharedFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evaluator != nil {
		return nil, status.Error(codes.FailedPrecondition, "shared resource already broadcast")
	}
	ev, err := s.factory(shared)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.evaluator = ev
	s.broadcastAt = time.Now().UTC()

	logger.Info("shared resource received",
		"fitness", shared.Fitness.Name,
		"simulator", shared.Fitness.Simulator,
		"observed_samples", shared.Observed.Len(),
		"dataset_bytes", len(shared.Dataset))
	return &structpb.Struct{}, nil
}

func (s *Server) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.mu.RLock()
	ev := s.evaluator
	s.mu.RUnlock()
	if ev == nil {
		return nil, status.Error(codes.FailedPrecondition, "no shared resource broadcast yet")
	}
	if req == nil || len(req.GetFields()) == 0 {
		return nil, status.Error(codes.InvalidArgument, "job is required")
	}

	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	job := config.TreeFromStruct(req)
	start := time.Now()
	fit, artifact, err := ev.Evaluate(ctx, job)
	if err != nil {
		s.failed.Add(1)
		logger.Warn("evaluation failed", "error", err)
		return nil, evaluationStatus(err)
	}
	s.completed.Add(1)
	logger.Debug("evaluation completed", "fitness", fit, "duration", time.Since(start))

	return encodeOutcome(fit, artifact, time.Since(start)), nil
}

// Ready reports whether a shared resource has been installed.
func (s *Server) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evaluator != nil
}

// Stats returns a snapshot of the counters.
func (s *Server) Stats() Stats {
	s.mu.RLock()
	st := Stats{Ready: s.evaluator != nil, BroadcastAt: s.broadcastAt}
	s.mu.RUnlock()
	st.InFlight = s.inFlight.Load()
	st.Completed = s.completed.Load()
	st.Failed = s.failed.Load()
	return st
}

func evaluationStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, config.ErrConfiguration):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func encodeOutcome(fit float64, artifact []float64, elapsed time.Duration) *structpb.Struct {
	values := make([]*structpb.Value, len(artifact))
	for i, v := range artifact {
		values[i] = structpb.NewNumberValue(v)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"fitness":         structpb.NewNumberValue(fit),
		"artifact":        structpb.NewListValue(&structpb.ListValue{Values: values}),
		"elapsed_seconds": structpb.NewNumberValue(elapsed.Seconds()),
	}}
}

func decodeOutcome(st *structpb.Struct) (float64, []float64) {
	fields := st.GetFields()
	list := fields["artifact"].GetListValue().GetValues()
	var artifact []float64
	if len(list) > 0 {
		artifact = make([]float64, len(list))
		for i, v := range list {
			artifact[i] = v.GetNumberValue()
		}
	}
	return fields["fitness"].GetNumberValue(), artifact
}
