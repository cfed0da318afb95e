package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/fitter-core/internal/backend"
	"github.com/GoSim-25-26J-441/fitter-core/internal/fitness"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/config"
)

const bufSize = 1 << 20

// startWorkers serves n workers over in-memory listeners and returns a
// connected client.
func startWorkers(t *testing.T, n int, factory EvaluatorFactory) (*Client, []*Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	listeners := make(map[string]*bufconn.Listener, n)
	servers := make([]*Server, n)
	addrs := make([]string, n)
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		lis := bufconn.Listen(bufSize)
		addr := "passthrough:///worker-" + string(rune('a'+i))
		listeners[addr[len("passthrough:///"):]] = lis
		addrs[i] = addr
		servers[i] = NewServer(factory)
		go func(srv *Server) {
			if err := Serve(ctx, lis, srv); err != nil {
				t.Errorf("Serve: %v", err)
			}
			done <- struct{}{}
		}(servers[i])
	}
	dialer := grpc.WithContextDialer(func(ctx context.Context, target string) (net.Conn, error) {
		lis, ok := listeners[target]
		if !ok {
			return nil, errors.New("unknown target " + target)
		}
		return lis.DialContext(ctx)
	})
	client, err := Dial(addrs, dialer)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
		cancel()
		for i := 0; i < n; i++ {
			<-done
		}
	})
	return client, servers
}

func squareFactory(fitness.Shared) (backend.Evaluator, error) {
	return backend.EvaluatorFunc(func(ctx context.Context, job *config.Tree) (float64, []float64, error) {
		x, err := job.Float("x")
		if err != nil {
			return 0, nil, err
		}
		if x > 100 {
			return 0, nil, errors.New("simulation diverged")
		}
		return x * x, []float64{x, 2 * x}, nil
	}), nil
}

func tree(t *testing.T, text string) *config.Tree {
	t.Helper()
	tr, err := config.ParseTreeYAML([]byte(text))
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestEvaluateBeforeBroadcast(t *testing.T) {
	client, _ := startWorkers(t, 1, squareFactory)
	_, err := client.Run(context.Background(), 0, tree(t, "x: 2\n"))
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", err)
	}
}

func TestBroadcastThenEvaluate(t *testing.T) {
	client, servers := startWorkers(t, 2, squareFactory)
	ctx := context.Background()
	if err := client.Broadcast(ctx, fitness.Shared{}); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	for _, srv := range servers {
		if !srv.Ready() {
			t.Fatal("worker not ready after broadcast")
		}
	}

	out, err := client.Run(ctx, 3, tree(t, "x: 3\n"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Fitness != 9 || out.EngineID != 1 || len(out.Artifact) != 2 || out.Artifact[1] != 6 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if servers[1].Stats().Completed != 1 || servers[0].Stats().Completed != 0 {
		t.Fatal("slot 3 should be served by worker 1")
	}
}

func TestSecondBroadcastRejected(t *testing.T) {
	client, _ := startWorkers(t, 1, squareFactory)
	ctx := context.Background()
	if err := client.Broadcast(ctx, fitness.Shared{}); err != nil {
		t.Fatal(err)
	}
	err := client.Broadcast(ctx, fitness.Shared{})
	if status.Code(errors.Unwrap(err)) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", err)
	}
}

func TestEvaluateErrors(t *testing.T) {
	client, servers := startWorkers(t, 1, squareFactory)
	ctx := context.Background()
	if err := client.Broadcast(ctx, fitness.Shared{}); err != nil {
		t.Fatal(err)
	}

	_, err := client.Run(ctx, 0, tree(t, "x: 1000\n"))
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal for a failing simulation, got %v", err)
	}
	_, err = client.Run(ctx, 0, tree(t, "y: 1\n"))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for a job without x, got %v", err)
	}
	_, err = client.Run(ctx, 0, config.NewTree(nil))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for an empty job, got %v", err)
	}
	if servers[0].Stats().Failed != 2 {
		t.Fatalf("expected 2 failures, got %d", servers[0].Stats().Failed)
	}
}

func TestBroadcastBuildsDefaultEvaluator(t *testing.T) {
	srv := NewServer(nil)
	grid := []float64{3000, 5000, 7000}
	shared := fitness.Shared{
		Fitness:  config.FitnessSpec{Name: fitness.NameSimpleRMS, Simulator: fitness.NameBlackBody},
		Observed: fitness.Spectrum{Wavelength: grid, Flux: []float64{1, 1, 1}},
	}
	payload, err := shared.Struct()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := srv.Broadcast(context.Background(), payload); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	job, err := tree(t, "model:\n  t_inner: 8000\n").Struct()
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Evaluate(context.Background(), job)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	fit, artifact := decodeOutcome(resp)
	if fit <= 0 || len(artifact) != len(grid) {
		t.Fatalf("unexpected outcome %g %v", fit, artifact)
	}

	bad := NewServer(nil)
	unknown, _ := fitness.Shared{Fitness: config.FitnessSpec{Name: "nope"}}.Struct()
	if _, err := bad.Broadcast(context.Background(), unknown); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for unknown fitness, got %v", err)
	}
	if bad.Ready() {
		t.Fatal("a rejected broadcast must not make the worker ready")
	}
}

func TestClientAsExecutorRunner(t *testing.T) {
	client, _ := startWorkers(t, 2, squareFactory)
	if err := client.Broadcast(context.Background(), fitness.Shared{}); err != nil {
		t.Fatal(err)
	}
	ex := backend.NewExecutor(backend.NewTaskStore(), client, client.Size())
	jobs := []*config.Tree{tree(t, "x: 1\n"), tree(t, "x: 500\n"), tree(t, "x: 3\n")}
	b, err := ex.Submit(context.Background(), jobs)
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-b.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("batch did not drain")
	}
	res, err := b.Results()
	if err != nil {
		t.Fatal(err)
	}
	var remote *backend.RemoteEvaluationError
	if res[0].Fitness != 1 || res[2].Fitness != 9 || !errors.As(res[1].Err, &remote) {
		t.Fatalf("unexpected results %+v", res)
	}
}

func TestDialWithoutAddresses(t *testing.T) {
	if _, err := Dial(nil); !errors.Is(err, ErrNoWorkers) {
		t.Fatalf("expected ErrNoWorkers, got %v", err)
	}
}

func TestHTTPStatus(t *testing.T) {
	srv := NewServer(squareFactory)
	h := NewHTTPHandler(srv)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before broadcast, got %d", rec.Code)
	}

	if _, err := srv.Broadcast(context.Background(), &structpb.Struct{}); err != nil {
		t.Fatal(err)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after broadcast, got %d", rec.Code)
	}
	var st Stats
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if !st.Ready {
		t.Fatal("status should report ready")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz returned %d", rec.Code)
	}
}
