package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/fitter-core/internal/artifact"
	"github.com/GoSim-25-26J-441/fitter-core/internal/backend"
	"github.com/GoSim-25-26J-441/fitter-core/internal/dispatch"
	"github.com/GoSim-25-26J-441/fitter-core/internal/fitness"
	"github.com/GoSim-25-26J-441/fitter-core/internal/fitter"
	"github.com/GoSim-25-26J-441/fitter-core/internal/metrics"
	"github.com/GoSim-25-26J-441/fitter-core/internal/worker"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/config"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/logger"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/utils"
)

func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a fit described by a YAML document",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := config.LoadDocument(configPath)
			if err != nil {
				return err
			}
			if logLevel == "" {
				logger.SetDefault(logger.NewWithFormat(logFormat, doc.LogLevel, os.Stdout))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			eng, err := runFit(ctx, doc)
			if err != nil {
				return err
			}
			return printBest(cmd.OutOrStdout(), eng)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "fitter document (required)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

// runFit wires the backend, dispatcher, stores and engine for doc and runs
// it to completion.
func runFit(ctx context.Context, doc *config.Document) (*fitter.Engine, error) {
	rng := utils.NewRandSource(doc.Seed)
	cfg, err := fitter.FromDocument(doc, rng)
	if err != nil {
		return nil, err
	}
	shared, err := fitness.LoadShared(doc)
	if err != nil {
		return nil, err
	}

	base, err := baseTree(doc)
	if err != nil {
		return nil, err
	}
	if err := cfg.CheckBase(base); err != nil {
		return nil, err
	}

	runner, parallelism, closeRunner, err := newRunner(ctx, doc, shared)
	if err != nil {
		return nil, err
	}
	defer closeRunner()

	executor := backend.NewExecutor(backend.NewTaskStore(), runner, parallelism)
	defer executor.Close()

	backoff := utils.BackoffFromConfig(doc.Workers.PollBackoff, doc.Workers.PollTimeout(), doc.Workers.MaxPollTimeout())
	collector := metrics.NewCollector()
	disp := dispatch.New(executor, base, dispatch.WithBackoff(backoff), dispatch.WithMetrics(collector))

	opts := []fitter.EngineOption{fitter.WithMetrics(collector)}
	if doc.LogPath != "" {
		opts = append(opts, fitter.WithLogPath(doc.LogPath))
	}
	if doc.ArtifactStore != nil {
		store, err := artifact.Open(ctx, doc.ArtifactStore.Path, doc.Resume)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		opts = append(opts, fitter.WithArtifacts(store))
	}
	conv, err := fitter.NewConvergence(doc.Convergence)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		opts = append(opts, fitter.WithConvergence(conv))
	}

	initial, err := cfg.InitialCollection(rng)
	if err != nil {
		return nil, err
	}
	runLog := logger.With("run_id", utils.GenerateRunID())
	runLog.Info("run configured",
		"parameters", cfg.Names(),
		"resume", cfg.Resuming(),
		"first_iteration", cfg.CurrentIteration(),
		"log_path", doc.LogPath)
	eng := fitter.NewEngine(cfg, disp, opts...)
	collector.Start()
	err = eng.Run(ctx, initial)
	collector.Stop()

	report := metrics.BuildRunReport(collector)
	runLog.Info("run summary",
		"evaluations", report.Evaluations,
		"failures", report.Failures,
		"iterations", report.Iterations,
		"best_fitness", report.BestFitness,
		"evaluation_p50_seconds", report.EvaluationP50,
		"evaluation_p95_seconds", report.EvaluationP95,
		"evaluations_per_second", report.EvaluationsPerSec)
	for id, e := range report.Engines {
		runLog.Debug("engine summary", "engine_id", id, "evaluations", e.Evaluations, "failures", e.Failures, "mean_seconds", e.MeanSeconds)
	}
	return eng, err
}

// baseTree loads base_config, or builds a tree holding every parameter at
// its lower bound when the document names none.
func baseTree(doc *config.Document) (*config.Tree, error) {
	if doc.BaseConfig != "" {
		return config.LoadTree(doc.BaseConfig)
	}
	values := make(map[string]any, len(doc.Parameters))
	for _, p := range doc.Parameters {
		values[p.Name] = p.Lower
	}
	return config.TreeFromPaths(values)
}

// newRunner evaluates in-process when the document lists no workers and
// otherwise dials the pool and broadcasts the shared resource once.
func newRunner(ctx context.Context, doc *config.Document, shared fitness.Shared) (backend.Runner, int, func(), error) {
	if len(doc.Workers.Addresses) == 0 {
		ev, err := fitness.NewEvaluator(shared)
		if err != nil {
			return nil, 0, nil, err
		}
		logger.Info("evaluating in-process", "parallelism", doc.Workers.Parallelism)
		return backend.NewLocalRunner(ev), doc.Workers.Parallelism, func() {}, nil
	}

	client, err := worker.Dial(doc.Workers.Addresses)
	if err != nil {
		return nil, 0, nil, err
	}
	if err := client.Broadcast(ctx, shared); err != nil {
		client.Close()
		return nil, 0, nil, fmt.Errorf("broadcast shared resource: %w", err)
	}
	parallelism := doc.Workers.Parallelism
	if parallelism == 0 {
		parallelism = client.Size()
	}
	logger.Info("worker pool ready", "workers", client.Size(), "parallelism", parallelism)
	return client, parallelism, func() { client.Close() }, nil
}

func printBest(w io.Writer, eng *fitter.Engine) error {
	best, err := eng.Best()
	if err != nil {
		return err
	}
	return best.WriteTable(w)
}
