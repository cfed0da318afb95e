package fitter

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/fitter-core/internal/collection"
	"github.com/GoSim-25-26J-441/fitter-core/internal/optimizer"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/config"
	"github.com/GoSim-25-26J-441/fitter-core/pkg/utils"
)

func lineSpace() optimizer.Space {
	return optimizer.Space{Names: []string{"x"}, Lower: []float64{-10}, Upper: []float64{10}}
}

func validDefinition() Definition {
	return Definition{
		Names:         []string{"x"},
		Bounds:        [][2]float64{{-10, 10}},
		SampleCount:   5,
		MaxIterations: 3,
		Optimizer:     optimizer.NewRandomSampling(lineSpace(), 5, utils.NewRandSource(1)),
		Fitness:       config.FitnessSpec{Name: "simple_rms"},
	}
}

// threeIterationLog mimics a log holding iterations 0, 1 and 2 of two rows.
func threeIterationLog() *collection.Collection {
	return collection.Must(
		collection.Column{Name: "x", Values: []float64{1, 2, 3, 4, 5, 6}},
		collection.Column{Name: collection.FitnessColumn, Values: []float64{1, 4, 9, 16, 25, 36}},
		collection.Column{Name: collection.ElapsedColumn, Values: []float64{0.1}},
		collection.Column{Name: collection.EngineIDColumn, Values: []float64{0, 1}},
		collection.Column{Name: collection.IterationColumn, Values: []float64{0, 0, 1, 1, 2, 2}},
	)
}

func TestFromDefinitionValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Definition)
	}{
		{"no names", func(d *Definition) { d.Names = nil; d.Bounds = nil }},
		{"bounds length", func(d *Definition) { d.Bounds = append(d.Bounds, [2]float64{0, 1}) }},
		{"inverted bounds", func(d *Definition) { d.Bounds[0] = [2]float64{1, -1} }},
		{"duplicate names", func(d *Definition) {
			d.Names = []string{"x", "x"}
			d.Bounds = [][2]float64{{0, 1}, {0, 1}}
		}},
		{"reserved prefix", func(d *Definition) { d.Names = []string{collection.FitnessColumn} }},
		{"zero samples", func(d *Definition) { d.SampleCount = 0 }},
		{"zero iterations", func(d *Definition) { d.MaxIterations = 0 }},
		{"no optimizer", func(d *Definition) { d.Optimizer = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(&def)
			_, err := FromDefinition(def)
			require.Error(t, err)
			require.ErrorIs(t, err, config.ErrConfiguration)
		})
	}
}

func TestFreshInitialCollection(t *testing.T) {
	cfg, err := FromDefinition(validDefinition())
	require.NoError(t, err)
	require.False(t, cfg.Resuming())
	require.Equal(t, 0, cfg.CurrentIteration())

	initial, err := cfg.InitialCollection(utils.NewRandSource(7))
	require.NoError(t, err)
	require.Equal(t, 5, initial.Len())
	require.Equal(t, []string{"x"}, initial.Columns())
	xs, _ := initial.Column("x")
	for _, x := range xs {
		require.GreaterOrEqual(t, x, -10.0)
		require.LessOrEqual(t, x, 10.0)
	}
}

func TestFreshInitialCollectionNormalizesAbundances(t *testing.T) {
	def := validDefinition()
	def.Names = []string{"model.abundances.O", "model.abundances.Si"}
	def.Bounds = [][2]float64{{0.1, 1}, {0.1, 1}}
	cfg, err := FromDefinition(def)
	require.NoError(t, err)

	initial, err := cfg.InitialCollection(utils.NewRandSource(3))
	require.NoError(t, err)
	for i := 0; i < initial.Len(); i++ {
		row, _ := initial.Row(i)
		require.InDelta(t, 1.0, row["model.abundances.O"]+row["model.abundances.Si"], 1e-12)
	}
}

func TestResumeContinuesIterationNumbering(t *testing.T) {
	def := validDefinition()
	def.ResumeLog = threeIterationLog()
	cfg, err := FromDefinition(def)
	require.NoError(t, err)
	require.True(t, cfg.Resuming())
	require.Equal(t, 3, cfg.CurrentIteration())

	initial, err := cfg.InitialCollection(nil)
	require.NoError(t, err)
	require.Equal(t, 2, initial.Len())
	xs, _ := initial.Column("x")
	require.Equal(t, []float64{5, 6}, xs)
	require.True(t, initial.Has(collection.FitnessColumn))
}

func TestResumeMismatch(t *testing.T) {
	def := validDefinition()
	def.ResumeLog = collection.Must(
		collection.Column{Name: "y", Values: []float64{1}},
		collection.Column{Name: collection.IterationColumn, Values: []float64{0}},
	)
	_, err := FromDefinition(def)
	var mismatch *ResumeMismatchError
	require.True(t, errors.As(err, &mismatch), "got %v", err)
	require.ErrorIs(t, err, config.ErrConfiguration)
	require.Equal(t, []string{"y"}, mismatch.Found)
}

func TestResumeNeedsIterationColumn(t *testing.T) {
	def := validDefinition()
	def.ResumeLog = collection.Must(collection.Column{Name: "x", Values: []float64{1}})
	_, err := FromDefinition(def)
	require.ErrorIs(t, err, config.ErrConfiguration)
}

func TestFromDocument(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "fitter_log.csv")
	require.NoError(t, threeIterationLog().WriteFile(logPath))

	doc := &config.Document{
		LogLevel:      "info",
		Parameters:    []config.ParameterSpec{{Name: "x", Lower: -10, Upper: 10}},
		SampleCount:   2,
		MaxIterations: 5,
		Optimizer:     config.OptimizerSpec{Name: "pso"},
		Fitness:       config.FitnessSpec{Name: "simple_rms"},
		Resume:        true,
		LogPath:       logPath,
	}
	cfg, err := FromDocument(doc, utils.NewRandSource(1))
	require.NoError(t, err)
	require.Equal(t, "pso", cfg.Optimizer().Name())
	require.Equal(t, 3, cfg.CurrentIteration())
	require.Equal(t, optimizer.Space{Names: []string{"x"}, Lower: []float64{-10}, Upper: []float64{10}}, cfg.Space())

	require.NoError(t, os.Remove(logPath))
	_, err = FromDocument(doc, utils.NewRandSource(1))
	require.ErrorIs(t, err, config.ErrConfiguration)

	doc.Resume = false
	doc.Optimizer.Name = "simulated_annealing"
	_, err = FromDocument(doc, utils.NewRandSource(1))
	require.ErrorIs(t, err, config.ErrConfiguration)
}

func TestCheckBase(t *testing.T) {
	def := validDefinition()
	def.Names = []string{"model.t_inner", "model.abundances"}
	def.Bounds = [][2]float64{{5000, 11000}, {0, 1}}
	cfg, err := FromDefinition(def)
	require.NoError(t, err)

	base, err := config.ParseTreeYAML([]byte("model:\n  t_inner: 9000\n  abundances:\n    Fe: 0.2\n    Si: 0.8\n"))
	require.NoError(t, err)
	err = cfg.CheckBase(base)
	require.ErrorIs(t, err, config.ErrConfiguration)
	require.Contains(t, err.Error(), "model.abundances")

	ok, err := config.TreeFromPaths(map[string]any{"model.t_inner": 9000.0, "model.abundances": 0.5})
	require.NoError(t, err)
	require.NoError(t, cfg.CheckBase(ok))
}
