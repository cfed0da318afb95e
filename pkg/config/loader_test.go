package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validDocument = `
log_level: info
parameters:
  - name: model.t_inner
    lower: 5000
    upper: 15000
  - name: model.abundances.Fe
    lower: 0
    upper: 1
sample_count: 8
max_iterations: 20
optimizer:
  name: devolution
  cr: 0.8
fitness:
  name: simple_rms
  simulator: blackbody
  observed: observed.dat
log_path: fitter_log.csv
artifact_store:
  path: spectra.db
base_config: base.yml
workers:
  addresses: ["localhost:50051"]
  poll_timeout_ms: 250
`

func TestParseDocumentYAML(t *testing.T) {
	doc, err := ParseDocumentYAML([]byte(validDocument))
	if err != nil {
		t.Fatalf("ParseDocumentYAML error: %v", err)
	}
	if doc.SampleCount != 8 || doc.MaxIterations != 20 {
		t.Fatalf("unexpected counts: %+v", doc)
	}
	if doc.Optimizer.CR == nil || *doc.Optimizer.CR != 0.8 {
		t.Fatalf("expected cr 0.8")
	}
	if doc.Optimizer.F != nil {
		t.Fatalf("expected f unset")
	}
	lower, upper := doc.Bounds()
	if lower[0] != 5000 || upper[1] != 1 {
		t.Fatalf("unexpected bounds %v %v", lower, upper)
	}
	if got := doc.Names(); got[1] != "model.abundances.Fe" {
		t.Fatalf("unexpected names %v", got)
	}
	if doc.Workers.PollTimeout().Milliseconds() != 250 {
		t.Fatalf("unexpected poll timeout %v", doc.Workers.PollTimeout())
	}
}

func TestParseDocumentYAMLValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{"bad log level", func(s string) string { return strings.Replace(s, "log_level: info", "log_level: loud", 1) }, "log_level"},
		{"inverted bounds", func(s string) string { return strings.Replace(s, "lower: 5000", "lower: 50000", 1) }, "exceeds upper bound"},
		{"zero samples", func(s string) string { return strings.Replace(s, "sample_count: 8", "sample_count: 0", 1) }, "sample_count"},
		{"zero iterations", func(s string) string { return strings.Replace(s, "max_iterations: 20", "max_iterations: 0", 1) }, "max_iterations"},
		{"bad cr", func(s string) string { return strings.Replace(s, "cr: 0.8", "cr: 1.5", 1) }, "optimizer.cr"},
		{"duplicate name", func(s string) string { return strings.Replace(s, "model.abundances.Fe", "model.t_inner", 1) }, "duplicate"},
		{"bad poll backoff", func(s string) string { return s + "  poll_backoff: random\n" }, "workers.poll_backoff"},
		{"bad convergence", func(s string) string { return s + "convergence:\n  strategy: never\n" }, "convergence.strategy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDocumentYAML([]byte(tt.mutate(validDocument)))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseDocumentConvergence(t *testing.T) {
	doc, err := ParseDocumentYAML([]byte(validDocument + "convergence:\n  strategy: plateau\n  patience: 4\n  tolerance: 0.01\n"))
	if err != nil {
		t.Fatalf("ParseDocumentYAML error: %v", err)
	}
	if doc.Convergence == nil || doc.Convergence.Strategy != "plateau" || doc.Convergence.Patience != 4 {
		t.Fatalf("unexpected convergence %+v", doc.Convergence)
	}
}

func TestParseDocumentResumeNeedsLogPath(t *testing.T) {
	doc := strings.Replace(validDocument, "log_path: fitter_log.csv", "resume: true", 1)
	if _, err := ParseDocumentYAML([]byte(doc)); err == nil || !strings.Contains(err.Error(), "log_path") {
		t.Fatalf("expected log_path error, got %v", err)
	}
}

func TestLoadDocumentResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fit.yml")
	if err := os.WriteFile(path, []byte(validDocument), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	doc, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("LoadDocument(%s) failed: %v", path, err)
	}
	if doc.BaseConfig != filepath.Join(dir, "base.yml") {
		t.Fatalf("base config not resolved: %s", doc.BaseConfig)
	}
	if doc.ArtifactStore.Path != filepath.Join(dir, "spectra.db") {
		t.Fatalf("artifact path not resolved: %s", doc.ArtifactStore.Path)
	}
}

func TestLoadDocumentMissingFile(t *testing.T) {
	if _, err := LoadDocument(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
