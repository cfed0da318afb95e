package metrics

import (
	"math"
	"strconv"
	"time"
)

// Metric names recorded by the fitter.
const (
	MetricEvaluationSeconds = "evaluation_seconds"
	MetricEvaluationFailure = "evaluation_failure"
	MetricIterationSeconds  = "iteration_seconds"
	MetricBestFitness       = "best_fitness"
)

// EngineLabels labels a series with the engine that produced it.
func EngineLabels(engineID int) map[string]string {
	return map[string]string{"engine_id": strconv.Itoa(engineID)}
}

// RecordEvaluation records the wall time of one successful evaluation.
func RecordEvaluation(c *Collector, seconds float64, engineID int, timestamp time.Time) {
	c.Record(MetricEvaluationSeconds, seconds, timestamp, EngineLabels(engineID))
}

// RecordFailure records one failed evaluation.
func RecordFailure(c *Collector, engineID int, timestamp time.Time) {
	c.Record(MetricEvaluationFailure, 1, timestamp, EngineLabels(engineID))
}

// RecordIteration records the duration and best fitness of an iteration.
// A NaN best fitness is not recorded.
func RecordIteration(c *Collector, iteration int, seconds, bestFitness float64, timestamp time.Time) {
	labels := map[string]string{"iteration": strconv.Itoa(iteration)}
	c.Record(MetricIterationSeconds, seconds, timestamp, labels)
	if !math.IsNaN(bestFitness) {
		c.Record(MetricBestFitness, bestFitness, timestamp, labels)
	}
}

// EngineReport aggregates the evaluations of a single engine.
type EngineReport struct {
	Evaluations int64   `json:"evaluations"`
	Failures    int64   `json:"failures"`
	MeanSeconds float64 `json:"mean_seconds"`
}

// RunReport is the end-of-run summary.
type RunReport struct {
	Evaluations       int64                    `json:"evaluations"`
	Failures          int64                    `json:"failures"`
	EvaluationP50     float64                  `json:"evaluation_p50_seconds"`
	EvaluationP95     float64                  `json:"evaluation_p95_seconds"`
	EvaluationMean    float64                  `json:"evaluation_mean_seconds"`
	EvaluationsPerSec float64                  `json:"evaluations_per_second"`
	Iterations        int64                    `json:"iterations"`
	BestFitness       float64                  `json:"best_fitness"`
	Engines           map[string]*EngineReport `json:"engines"`
}

// BuildRunReport aggregates everything recorded on c.
func BuildRunReport(c *Collector) *RunReport {
	report := &RunReport{
		BestFitness: math.NaN(),
		Engines:     make(map[string]*EngineReport),
	}
	engine := func(labels map[string]string) *EngineReport {
		id := labels["engine_id"]
		if report.Engines[id] == nil {
			report.Engines[id] = &EngineReport{}
		}
		return report.Engines[id]
	}

	if agg := c.AggregationAll(MetricEvaluationSeconds); agg != nil {
		report.Evaluations = agg.Count
		report.EvaluationP50 = agg.P50
		report.EvaluationP95 = agg.P95
		report.EvaluationMean = agg.Mean
	}
	for _, labels := range c.LabelsForMetric(MetricEvaluationSeconds) {
		if agg := c.Aggregation(MetricEvaluationSeconds, labels); agg != nil {
			e := engine(labels)
			e.Evaluations = agg.Count
			e.MeanSeconds = agg.Mean
		}
	}
	for _, labels := range c.LabelsForMetric(MetricEvaluationFailure) {
		if agg := c.Aggregation(MetricEvaluationFailure, labels); agg != nil {
			engine(labels).Failures = int64(agg.Sum)
			report.Failures += int64(agg.Sum)
		}
	}
	if agg := c.AggregationAll(MetricIterationSeconds); agg != nil {
		report.Iterations = agg.Count
	}
	if agg := c.AggregationAll(MetricBestFitness); agg != nil {
		report.BestFitness = agg.Min
	}
	if d := c.Duration(); d > 0 {
		report.EvaluationsPerSec = float64(report.Evaluations) / d.Seconds()
	}
	return report
}
