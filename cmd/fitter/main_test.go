package main

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/fitter-core/internal/collection"
	"github.com/GoSim-25-26J-441/fitter-core/internal/fitness"
	"github.com/GoSim-25-26J-441/fitter-core/internal/fitter"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/config"
)

// writeFixture lays out an observed black body at 8000 K and a document
// fitting its temperature in-process.
func writeFixture(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()

	var observed strings.Builder
	observed.WriteString("# wavelength flux\n")
	for w := 3000.0; w <= 9000; w += 500 {
		fmt.Fprintf(&observed, "%g %g\n", w, fitness.IntensityBlackBody(w, 8000))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "observed.dat"), []byte(observed.String()), 0o644))

	doc := `
log_level: warn
parameters:
  - name: model.t_inner
    lower: 5000
    upper: 11000
sample_count: 6
max_iterations: 3
seed: 42
optimizer:
  name: luus_jaakola
fitness:
  name: simple_rms
  simulator: blackbody
  observed: observed.dat
log_path: fitter_log.csv
artifact_store:
  path: spectra.db
workers:
  parallelism: 2
  poll_timeout_ms: 5
  max_poll_timeout_ms: 20
` + extra
	path := filepath.Join(dir, "fit.yml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestRunFitInProcess(t *testing.T) {
	path := writeFixture(t, "")
	doc, err := config.LoadDocument(path)
	require.NoError(t, err)

	eng, err := runFit(context.Background(), doc)
	require.NoError(t, err)
	require.Equal(t, fitter.StateCompleted, eng.State())

	log, err := collection.ReadFile(doc.LogPath)
	require.NoError(t, err)
	require.Equal(t, 6+7+7, log.Len())
	fit, _ := log.Column(collection.FitnessColumn)
	for _, f := range fit {
		require.False(t, math.IsNaN(f))
	}

	var out bytes.Buffer
	require.NoError(t, printBest(&out, eng))
	require.Contains(t, out.String(), "model.t_inner")
}

func TestRunFitResumes(t *testing.T) {
	path := writeFixture(t, "")
	doc, err := config.LoadDocument(path)
	require.NoError(t, err)
	_, err = runFit(context.Background(), doc)
	require.NoError(t, err)

	// A second fresh run refuses to overwrite the spectral store.
	_, err = runFit(context.Background(), doc)
	require.Error(t, err)

	doc.Resume = true
	doc.MaxIterations = 5
	eng, err := runFit(context.Background(), doc)
	require.NoError(t, err)
	require.Equal(t, 5, eng.CurrentIteration())

	log := eng.Log()
	iterations, _ := log.Column(collection.IterationColumn)
	require.Equal(t, 4.0, iterations[len(iterations)-1])
	require.Equal(t, 6+7+7+7+7, log.Len())
}

func TestRunFitOnWorkerPool(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 2)
	var addrs []string
	for range 2 {
		lis, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addrs = append(addrs, lis.Addr().String())
		go func() { errs <- serveWorker(ctx, lis, "") }()
	}

	path := writeFixture(t, "")
	doc, err := config.LoadDocument(path)
	require.NoError(t, err)
	doc.Workers.Addresses = addrs

	eng, err := runFit(context.Background(), doc)
	require.NoError(t, err)
	require.Equal(t, fitter.StateCompleted, eng.State())

	engines, _ := eng.Log().Column(collection.EngineIDColumn)
	require.Len(t, engines, 6+7+7)
	for _, id := range engines {
		require.Contains(t, []float64{0, 1}, id)
	}

	cancel()
	for range 2 {
		require.NoError(t, <-errs)
	}
}

func TestBestCommand(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "fitter_log.csv")
	log := collection.Must(
		collection.Column{Name: "x", Values: []float64{3, 1, 2, 4}},
		collection.Column{Name: collection.FitnessColumn, Values: []float64{9, 1, math.NaN(), 16}},
	)
	require.NoError(t, log.WriteFile(logPath))

	rows, err := bestRows(log, 4)
	require.NoError(t, err)
	require.Equal(t, []int{1, 0, 3, 2}, rows)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"best", "--log", logPath, "--top", "2"})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[1], "1 "), "got %q", lines[1])
	require.True(t, strings.HasPrefix(lines[2], "3 "), "got %q", lines[2])
}

func TestRunCommandRequiresConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run"})
	require.Error(t, cmd.Execute())
}
