package fitter

import (
	"math"
	"strings"
	"testing"

	"github.com/GoSim-25-26J-441/fitter-core/pkg/config"
)

func summaries(best ...float64) []IterationSummary {
	out := make([]IterationSummary, len(best))
	for i, b := range best {
		out[i] = IterationSummary{Iteration: i, BestFitness: b}
	}
	return out
}

func TestNoImprovementStrategy(t *testing.T) {
	s := NewNoImprovementStrategy(&ConvergenceConfig{Patience: 3, Tolerance: 0.01, MinIterations: 2})

	tests := []struct {
		name    string
		history []IterationSummary
		want    bool
	}{
		{"too short", summaries(5), false},
		{"still improving", summaries(5, 4, 3, 2), false},
		{"stalled", summaries(5, 1, 1, 1, 1), true},
		{"tiny gains ignored", summaries(5, 1, 0.999, 0.998, 0.997), true},
		{"nan ignored", summaries(math.NaN(), 2, math.NaN(), 1), false},
		{"all nan", summaries(math.NaN(), math.NaN(), math.NaN(), math.NaN()), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := s.CheckConvergence(tt.history)
			if got != tt.want {
				t.Fatalf("CheckConvergence = %v (%q), want %v", got, reason, tt.want)
			}
		})
	}
}

func TestPlateauStrategy(t *testing.T) {
	s := NewPlateauStrategy(&ConvergenceConfig{Patience: 3, Tolerance: 0.1, MinIterations: 1})
	if ok, _ := s.CheckConvergence(summaries(9, 3, 2)); ok {
		t.Fatalf("expected no plateau")
	}
	ok, reason := s.CheckConvergence(summaries(9, 2, 2.05, 2.01))
	if !ok || !strings.Contains(reason, "plateaued") {
		t.Fatalf("expected plateau, got %v %q", ok, reason)
	}
	if ok, _ := s.CheckConvergence(summaries(2, math.NaN(), 2)); ok {
		t.Fatalf("NaN iterations cannot form a plateau")
	}
}

func TestCombinedStrategyReportsMember(t *testing.T) {
	s := NewCombinedStrategy(&ConvergenceConfig{Patience: 2, Tolerance: 0, MinIterations: 1})
	ok, reason := s.CheckConvergence(summaries(3, 1, 1, 1))
	if !ok || !strings.HasPrefix(reason, "no_improvement:") {
		t.Fatalf("unexpected result %v %q", ok, reason)
	}
}

func TestNewConvergence(t *testing.T) {
	s, err := NewConvergence(nil)
	if err != nil || s != nil {
		t.Fatalf("expected nil strategy for nil spec, got %v %v", s, err)
	}
	s, err = NewConvergence(&config.ConvergenceSpec{Strategy: "plateau", Patience: 7})
	if err != nil {
		t.Fatalf("NewConvergence error: %v", err)
	}
	if s.Name() != "plateau" || s.(*PlateauStrategy).config.Patience != 7 {
		t.Fatalf("unexpected strategy %#v", s)
	}
	if _, err := NewConvergence(&config.ConvergenceSpec{Strategy: "forever"}); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}
